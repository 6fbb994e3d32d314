package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
	workflowx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/workflow"
	storex "github.com/kmaneesh/Corporate-Travel-Approval-Agent/store"
)

const minRejectionReasonLen = 10

func (r *Registry) registerApprovalTools() {
	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name: "approve_trf",
			Desc: "Approve a TRF at the caller's approval level and move it to the next workflow stage. Call get_trf_approval_details first to confirm the TRF is waiting on you.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"trf_number":     {Type: schema.String, Desc: "TRF number", Required: true},
				"approver_level": {Type: schema.String, Desc: "Approval level acting: irm, srm, buh, ssuh, bgh, ssgh, cfo or travel_desk", Required: true},
				"comments":       {Type: schema.String, Desc: "Optional approval comments"},
			}),
		},
		Mutating: true,
		run:      runApproveTRF,
	})

	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name: "reject_trf",
			Desc: "Reject a TRF at the caller's approval level. The rejection reason is mandatory and must be at least 10 characters for the audit trail.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"trf_number":       {Type: schema.String, Desc: "TRF number", Required: true},
				"approver_level":   {Type: schema.String, Desc: "Approval level acting", Required: true},
				"rejection_reason": {Type: schema.String, Desc: "Why the TRF is rejected, at least 10 characters", Required: true},
			}),
		},
		Mutating: true,
		run:      runRejectTRF,
	})

	for _, role := range contractx.ApprovalChain {
		role := role
		r.register(Descriptor{
			Info: &schema.ToolInfo{
				Name:        fmt.Sprintf("get_pending_%s_applications", role),
				Desc:        fmt.Sprintf("List TRFs waiting on %s review.", strings.ToUpper(string(role))),
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
			},
			run: func(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
				return runPendingApplications(ctx, deps, role)
			},
		})
	}

	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name: "get_approved_for_travel_desk",
			Desc: "List TRFs that cleared the approval chain and are waiting on the travel desk for booking, including ones already in processing.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"limit": {Type: schema.Integer, Desc: "Maximum results, default 20"},
			}),
		},
		run: runApprovedForTravelDesk,
	})

	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name:        "track_all_applications",
			Desc:        "Track every TRF in the system grouped by workflow status. Travel desk overview tool.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		run: runTrackAllApplications,
	})
}

// approverLevel validates the level argument against the caller's role:
// an approver can only act at their own level.
func approverLevel(id contractx.Identity, args map[string]any) (contractx.Role, error) {
	raw, err := stringArg(args, "approver_level", true)
	if err != nil {
		return "", err
	}
	level, err := contractx.ParseRole(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid approver_level %q", contractx.ErrValidation, raw)
	}
	if level != id.Role {
		return "", fmt.Errorf("%w: role %s cannot act at level %s", contractx.ErrUnauthorized, id.Role, level)
	}
	return level, nil
}

func runApproveTRF(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
	trfNumber, err := stringArg(args, "trf_number", true)
	if err != nil {
		return nil, "", err
	}
	level, err := approverLevel(id, args)
	if err != nil {
		return nil, "", err
	}
	comments, err := stringArg(args, "comments", false)
	if err != nil {
		return nil, "", err
	}

	trf, err := deps.Machine.Approve(ctx, trfNumber, level, comments)
	if err != nil {
		return nil, "", notFound(err, fmt.Sprintf("TRF %s not found", trfNumber))
	}

	data := summarizeTRF(trf)
	data["new_status"] = trf.Status
	msg := fmt.Sprintf("TRF %s approved at %s level, now %s", trf.TRFNumber, strings.ToUpper(string(level)), trf.Status)
	if trf.Status == storex.StatusPendingTravelDesk {
		msg = fmt.Sprintf("TRF %s approved by CFO, ready for travel desk booking", trf.TRFNumber)
	}
	if trf.Status == storex.StatusCompleted {
		msg = fmt.Sprintf("TRF %s fully approved, travel completed", trf.TRFNumber)
	}
	return data, msg, nil
}

func runRejectTRF(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
	trfNumber, err := stringArg(args, "trf_number", true)
	if err != nil {
		return nil, "", err
	}
	level, err := approverLevel(id, args)
	if err != nil {
		return nil, "", err
	}
	reason, err := stringArg(args, "rejection_reason", true)
	if err != nil {
		return nil, "", err
	}
	if len(reason) < minRejectionReasonLen {
		return nil, "", fmt.Errorf("%w: rejection reason must be at least %d characters", contractx.ErrValidation, minRejectionReasonLen)
	}

	trf, err := deps.Machine.Reject(ctx, trfNumber, level, reason)
	if err != nil {
		return nil, "", notFound(err, fmt.Sprintf("TRF %s not found", trfNumber))
	}

	data := summarizeTRF(trf)
	data["rejection_reason"] = trf.RejectionReason
	data["rejected_by"] = trf.RejectedBy
	return data, fmt.Sprintf("TRF %s rejected at %s level", trf.TRFNumber, strings.ToUpper(string(level))), nil
}

func runPendingApplications(ctx context.Context, deps Deps, role contractx.Role) (any, string, error) {
	status, err := workflowx.ExpectedStatus(role)
	if err != nil {
		return nil, "", err
	}
	trfs, err := deps.Store.ListTRFs(ctx, storex.TRFFilter{Statuses: []storex.Status{status}})
	if err != nil {
		return nil, "", err
	}
	return map[string]any{
		"level":        role,
		"applications": summarizeTRFs(trfs),
	}, fmt.Sprintf("%d TRFs pending %s review", len(trfs), strings.ToUpper(string(role))), nil
}

func runApprovedForTravelDesk(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
	limit, err := intArg(args, "limit", 20)
	if err != nil {
		return nil, "", err
	}
	trfs, err := deps.Store.ListTRFs(ctx, storex.TRFFilter{
		Statuses: []storex.Status{storex.StatusPendingTravelDesk, storex.StatusProcessing},
		Limit:    limit,
	})
	if err != nil {
		return nil, "", err
	}
	return map[string]any{
		"applications": summarizeTRFs(trfs),
	}, fmt.Sprintf("%d TRFs ready for booking", len(trfs)), nil
}

func runTrackAllApplications(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
	trfs, err := deps.Store.ListTRFs(ctx, storex.TRFFilter{})
	if err != nil {
		return nil, "", err
	}
	byStatus := make(map[storex.Status][]map[string]any)
	for _, trf := range trfs {
		byStatus[trf.Status] = append(byStatus[trf.Status], summarizeTRF(trf))
	}
	return map[string]any{
		"total":     len(trfs),
		"by_status": byStatus,
	}, fmt.Sprintf("Tracking %d TRFs", len(trfs)), nil
}
