package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
	workflowx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/workflow"
	storex "github.com/kmaneesh/Corporate-Travel-Approval-Agent/store"
)

func (r *Registry) registerTRFTools() {
	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name: "create_trf_draft",
			Desc: "Create a draft travel requisition form (TRF). Drafts are saved with DRAFT status and can be submitted later with submit_trf.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"travel_type":      {Type: schema.String, Desc: "domestic or international", Required: true},
				"purpose":          {Type: schema.String, Desc: "Business purpose of the trip", Required: true},
				"origin_city":      {Type: schema.String, Desc: "City the trip starts from", Required: true},
				"destination_city": {Type: schema.String, Desc: "Destination city", Required: true},
				"departure_date":   {Type: schema.String, Desc: "Departure date, YYYY-MM-DD", Required: true},
				"return_date":      {Type: schema.String, Desc: "Return date, YYYY-MM-DD"},
				"estimated_cost":   {Type: schema.Number, Desc: "Estimated trip cost"},
				"employee_phone":   {Type: schema.String, Desc: "Contact phone"},
				"employee_department": {
					Type: schema.String, Desc: "Department name",
				},
				"employee_designation": {
					Type: schema.String, Desc: "Job designation",
				},
				"employee_location": {
					Type: schema.String, Desc: "Base office location",
				},
			}),
		},
		Mutating: true,
		run:      runCreateTRFDraft,
	})

	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name: "submit_trf",
			Desc: "Submit a draft TRF into the approval workflow. The DRAFT- prefix is dropped and the TRF moves to pending IRM review.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"trf_number": {Type: schema.String, Desc: "Draft TRF number, e.g. DRAFT-TRF202600012", Required: true},
			}),
		},
		Mutating: true,
		run:      runSubmitTRF,
	})

	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name: "list_employee_drafts",
			Desc: "List the calling employee's draft TRFs.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"employee_id": {Type: schema.String, Desc: "Employee id; defaults to the caller"},
			}),
		},
		run: runListEmployeeDrafts,
	})

	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name: "list_employee_trfs",
			Desc: "List an employee's TRFs across all statuses, optionally filtered by status.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"employee_id":   {Type: schema.String, Desc: "Employee id; defaults to the caller"},
				"status_filter": {Type: schema.String, Desc: "Optional status, e.g. pending_irm, rejected"},
			}),
		},
		run: runListEmployeeTRFs,
	})

	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name: "get_trf_status",
			Desc: "Get the current status and summary of a TRF by number.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"trf_number": {Type: schema.String, Desc: "TRF number", Required: true},
			}),
		},
		run: runGetTRFStatus,
	})

	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name: "get_trf_approval_details",
			Desc: "Get full approval context for a TRF: travel details, approval chain history, the next approver level, and any bookings. Call this before approve_trf or reject_trf.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"trf_number": {Type: schema.String, Desc: "TRF number", Required: true},
			}),
		},
		run: runGetTRFApprovalDetails,
	})
}

func runCreateTRFDraft(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
	travelTypeRaw, err := stringArg(args, "travel_type", true)
	if err != nil {
		return nil, "", err
	}
	travelType := storex.TravelDomestic
	if travelTypeRaw == string(storex.TravelInternational) {
		travelType = storex.TravelInternational
	} else if travelTypeRaw != string(storex.TravelDomestic) {
		return nil, "", fmt.Errorf("%w: travel_type must be domestic or international", contractx.ErrValidation)
	}

	purpose, err := stringArg(args, "purpose", true)
	if err != nil {
		return nil, "", err
	}
	origin, err := stringArg(args, "origin_city", true)
	if err != nil {
		return nil, "", err
	}
	destination, err := stringArg(args, "destination_city", true)
	if err != nil {
		return nil, "", err
	}
	departure, _, err := dateArg(args, "departure_date", true)
	if err != nil {
		return nil, "", err
	}
	returnDate, hasReturn, err := dateArg(args, "return_date", false)
	if err != nil {
		return nil, "", err
	}
	if hasReturn && !returnDate.After(departure) {
		return nil, "", fmt.Errorf("%w: return_date must be after departure_date", contractx.ErrValidation)
	}
	estimatedCost, _, err := floatArg(args, "estimated_cost")
	if err != nil {
		return nil, "", err
	}
	phone, _ := stringArg(args, "employee_phone", false)
	department, _ := stringArg(args, "employee_department", false)
	designation, _ := stringArg(args, "employee_designation", false)
	location, _ := stringArg(args, "employee_location", false)

	count, err := deps.Store.CountTRFs(ctx)
	if err != nil {
		return nil, "", err
	}
	now := deps.Now()
	trf := &storex.TRF{
		TRFNumber:           workflowx.DraftNumber(now, count+1),
		EmployeeID:          id.UserID,
		EmployeeName:        id.Name,
		EmployeeEmail:       id.Email,
		EmployeePhone:       phone,
		EmployeeDepartment:  department,
		EmployeeDesignation: designation,
		EmployeeLocation:    location,
		TravelType:          travelType,
		Purpose:             purpose,
		OriginCity:          origin,
		DestinationCity:     destination,
		DepartureDate:       departure,
		EstimatedCost:       estimatedCost,
		Status:              storex.StatusDraft,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if hasReturn {
		trf.ReturnDate = &returnDate
	}
	if err := deps.Store.CreateTRF(ctx, trf); err != nil {
		return nil, "", err
	}

	data := map[string]any{
		"trf_number": trf.TRFNumber,
		"status":     trf.Status,
		"travel":     fmt.Sprintf("%s to %s", origin, destination),
		"departure":  departure.Format(dateLayout),
		"next_steps": []string{
			"Edit: update any details before submission",
			fmt.Sprintf("Submit: use submit_trf(%q) when ready", trf.TRFNumber),
			"View: use list_employee_drafts to see all drafts",
		},
	}
	return data, fmt.Sprintf("Draft TRF created: %s", trf.TRFNumber), nil
}

func runSubmitTRF(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
	trfNumber, err := stringArg(args, "trf_number", true)
	if err != nil {
		return nil, "", err
	}
	if !workflowx.IsDraftNumber(trfNumber) {
		return nil, "", fmt.Errorf("%w: %s is not a draft TRF number", contractx.ErrValidation, trfNumber)
	}
	trf, err := deps.Machine.Submit(ctx, trfNumber)
	if err != nil {
		return nil, "", notFound(err, fmt.Sprintf("TRF %s not found", trfNumber))
	}
	data := map[string]any{
		"trf_number": trf.TRFNumber,
		"status":     trf.Status,
		"submitted":  true,
	}
	return data, fmt.Sprintf("TRF %s submitted, now pending IRM review", trf.TRFNumber), nil
}

func runListEmployeeDrafts(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
	employeeID, err := stringArg(args, "employee_id", false)
	if err != nil {
		return nil, "", err
	}
	if employeeID == "" {
		employeeID = id.UserID
	}
	trfs, err := deps.Store.ListTRFs(ctx, storex.TRFFilter{
		EmployeeID: employeeID,
		Statuses:   []storex.Status{storex.StatusDraft},
	})
	if err != nil {
		return nil, "", err
	}
	return map[string]any{
		"employee_id": employeeID,
		"drafts":      summarizeTRFs(trfs),
	}, fmt.Sprintf("Found %d draft TRFs", len(trfs)), nil
}

func runListEmployeeTRFs(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
	employeeID, err := stringArg(args, "employee_id", false)
	if err != nil {
		return nil, "", err
	}
	if employeeID == "" {
		employeeID = id.UserID
	}
	filter := storex.TRFFilter{EmployeeID: employeeID}
	statusFilter, err := stringArg(args, "status_filter", false)
	if err != nil {
		return nil, "", err
	}
	if statusFilter != "" {
		filter.Statuses = []storex.Status{storex.Status(statusFilter)}
	}
	trfs, err := deps.Store.ListTRFs(ctx, filter)
	if err != nil {
		return nil, "", err
	}
	return map[string]any{
		"employee_id":   employeeID,
		"status_filter": statusFilter,
		"trfs":          summarizeTRFs(trfs),
	}, fmt.Sprintf("Found %d TRFs", len(trfs)), nil
}

func runGetTRFStatus(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
	trfNumber, err := stringArg(args, "trf_number", true)
	if err != nil {
		return nil, "", err
	}
	trf, err := deps.Store.GetTRF(ctx, trfNumber)
	if err != nil {
		return nil, "", notFound(err, fmt.Sprintf("TRF %s not found", trfNumber))
	}
	data := summarizeTRF(trf)
	if role, ok := workflowx.ApproverFor(trf.Status); ok {
		data["waiting_on"] = role
	}
	return data, fmt.Sprintf("TRF %s is %s", trf.TRFNumber, trf.Status), nil
}

func runGetTRFApprovalDetails(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
	trfNumber, err := stringArg(args, "trf_number", true)
	if err != nil {
		return nil, "", err
	}
	trf, err := deps.Store.GetTRF(ctx, trfNumber)
	if err != nil {
		return nil, "", notFound(err, fmt.Sprintf("TRF %s not found", trfNumber))
	}

	data := summarizeTRF(trf)
	data["approval_chain"] = approvalChain(trf)
	if role, ok := workflowx.ApproverFor(trf.Status); ok {
		data["next_approver_level"] = role
	}
	if trf.Status == storex.StatusRejected {
		data["rejected_by"] = trf.RejectedBy
		data["rejection_reason"] = trf.RejectionReason
	}

	bookings, err := deps.Store.TravelBookingsForTRF(ctx, trf.ID)
	if err != nil {
		return nil, "", err
	}
	if len(bookings) > 0 {
		data["bookings"] = bookings
	}
	return data, fmt.Sprintf("Approval details for %s", trf.TRFNumber), nil
}

// summarizeTRF is the common read projection of a TRF.
func summarizeTRF(trf *storex.TRF) map[string]any {
	data := map[string]any{
		"trf_number":       trf.TRFNumber,
		"status":           trf.Status,
		"employee_id":      trf.EmployeeID,
		"employee_name":    trf.EmployeeName,
		"travel_type":      trf.TravelType,
		"purpose":          trf.Purpose,
		"origin_city":      trf.OriginCity,
		"destination_city": trf.DestinationCity,
		"departure_date":   trf.DepartureDate.Format(dateLayout),
		"estimated_cost":   trf.EstimatedCost,
		"created_at":       trf.CreatedAt,
	}
	if trf.ReturnDate != nil {
		data["return_date"] = trf.ReturnDate.Format(dateLayout)
	}
	return data
}

func summarizeTRFs(trfs []*storex.TRF) []map[string]any {
	out := make([]map[string]any, 0, len(trfs))
	for _, trf := range trfs {
		out = append(out, summarizeTRF(trf))
	}
	return out
}

// approvalChain reports each stage's outcome in workflow order.
func approvalChain(trf *storex.TRF) []map[string]any {
	type stage struct {
		role       contractx.Role
		approvedAt *time.Time
		comments   string
	}
	stages := []stage{
		{contractx.RoleIRM, trf.IRMApprovedAt, trf.IRMComments},
		{contractx.RoleSRM, trf.SRMApprovedAt, trf.SRMComments},
		{contractx.RoleBUH, trf.BUHApprovedAt, trf.BUHComments},
		{contractx.RoleSSUH, trf.SSUHApprovedAt, trf.SSUHComments},
		{contractx.RoleBGH, trf.BGHApprovedAt, trf.BGHComments},
		{contractx.RoleSSGH, trf.SSGHApprovedAt, trf.SSGHComments},
		{contractx.RoleCFO, trf.CFOApprovedAt, trf.CFOComments},
		{contractx.RoleTravelDesk, trf.TravelDeskApprovedAt, trf.TravelDeskComments},
	}
	out := make([]map[string]any, 0, len(stages))
	for _, s := range stages {
		entry := map[string]any{"level": s.role}
		if s.approvedAt != nil {
			entry["approved_at"] = *s.approvedAt
		}
		if s.comments != "" {
			entry["comments"] = s.comments
		}
		out = append(out, entry)
	}
	return out
}
