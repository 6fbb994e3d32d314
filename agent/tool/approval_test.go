package tool

import (
	"context"
	"testing"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
	storex "github.com/kmaneesh/Corporate-Travel-Approval-Agent/store"
)

// submittedTRF creates and submits a TRF, returning its number.
func submittedTRF(t *testing.T, h *harness) string {
	t.Helper()
	id := employee("EMP001")
	return submitDraft(t, h, id, createDraft(t, h, id))
}

// approveUpTo drives the chain until the given role's queue.
func approveUpTo(t *testing.T, h *harness, number string, until contractx.Role) {
	t.Helper()
	for _, role := range contractx.ApprovalChain {
		if role == until {
			return
		}
		if _, err := h.machine.Approve(context.Background(), number, role, ""); err != nil {
			t.Fatalf("Approve(%s) error = %v", role, err)
		}
	}
}

func TestApproveTRFTool(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	number := submittedTRF(t, h)

	env := h.exec(t, asRole(contractx.RoleIRM), "approve_trf", map[string]any{
		"trf_number":     number,
		"approver_level": "irm",
		"comments":       "travel justified",
	})
	d := data(t, env)
	if d["new_status"] != storex.StatusPendingSRM {
		t.Fatalf("new status = %v", d["new_status"])
	}

	trf, _ := h.store.GetTRF(context.Background(), number)
	if trf.IRMComments != "travel justified" {
		t.Fatalf("comments not stored: %q", trf.IRMComments)
	}
	if trf.IRMApprovedAt == nil {
		t.Fatalf("stage timestamp not stored")
	}
}

func TestApproveTRFLevelMustMatchCaller(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	number := submittedTRF(t, h)

	// SRM cannot claim to act at IRM level.
	env := h.execErr(t, asRole(contractx.RoleSRM), "approve_trf", map[string]any{
		"trf_number":     number,
		"approver_level": "irm",
	})
	if env.Error != contractx.CodeAuthorization {
		t.Fatalf("error code = %s, want authorization", env.Error)
	}

	// Acting at one's own level on someone else's queue is a state
	// conflict, not an authorization failure.
	env = h.execErr(t, asRole(contractx.RoleSRM), "approve_trf", map[string]any{
		"trf_number":     number,
		"approver_level": "srm",
	})
	if env.Error != contractx.CodeStateConflict {
		t.Fatalf("error code = %s, want state conflict", env.Error)
	}

	env = h.execErr(t, asRole(contractx.RoleIRM), "approve_trf", map[string]any{
		"trf_number":     number,
		"approver_level": "supervisor",
	})
	if env.Error != contractx.CodeValidation {
		t.Fatalf("error code = %s, want validation", env.Error)
	}
}

func TestRejectTRFTool(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	number := submittedTRF(t, h)

	env := h.exec(t, asRole(contractx.RoleIRM), "reject_trf", map[string]any{
		"trf_number":       number,
		"approver_level":   "irm",
		"rejection_reason": "insufficient business justification",
	})
	d := data(t, env)
	if d["rejection_reason"] != "[IRM] insufficient business justification" {
		t.Fatalf("rejection reason = %v", d["rejection_reason"])
	}
	if d["rejected_by"] != "irm" {
		t.Fatalf("rejected_by = %v", d["rejected_by"])
	}
}

func TestRejectTRFReasonTooShort(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	number := submittedTRF(t, h)

	env := h.execErr(t, asRole(contractx.RoleIRM), "reject_trf", map[string]any{
		"trf_number":       number,
		"approver_level":   "irm",
		"rejection_reason": "too pricy",
	})
	if env.Error != contractx.CodeValidation {
		t.Fatalf("error code = %s, want validation", env.Error)
	}

	// Nothing changed.
	trf, _ := h.store.GetTRF(context.Background(), number)
	if trf.Status != storex.StatusPendingIRM {
		t.Fatalf("status changed despite validation failure: %s", trf.Status)
	}
}

func TestPendingApplicationsPerLevel(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	first := submittedTRF(t, h)
	submittedTRF(t, h)
	approveUpTo(t, h, first, contractx.RoleBUH)

	env := h.exec(t, asRole(contractx.RoleBUH), "get_pending_buh_applications", map[string]any{})
	apps, _ := data(t, env)["applications"].([]map[string]any)
	if len(apps) != 1 {
		t.Fatalf("buh queue has %d, want 1", len(apps))
	}
	if apps[0]["trf_number"] != first {
		t.Fatalf("wrong TRF in buh queue: %v", apps[0]["trf_number"])
	}

	env = h.exec(t, asRole(contractx.RoleIRM), "get_pending_irm_applications", map[string]any{})
	apps, _ = data(t, env)["applications"].([]map[string]any)
	if len(apps) != 1 {
		t.Fatalf("irm queue has %d, want 1", len(apps))
	}
}

func TestApprovedForTravelDesk(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	first := submittedTRF(t, h)
	submittedTRF(t, h)
	for _, role := range contractx.ApprovalChain {
		if _, err := h.machine.Approve(context.Background(), first, role, ""); err != nil {
			t.Fatalf("Approve(%s) error = %v", role, err)
		}
	}

	env := h.exec(t, asRole(contractx.RoleTravelDesk), "get_approved_for_travel_desk", map[string]any{})
	apps, _ := data(t, env)["applications"].([]map[string]any)
	if len(apps) != 1 {
		t.Fatalf("travel desk queue has %d, want 1", len(apps))
	}

	// Requests that moved to processing stay visible.
	if _, err := h.machine.StartProcessing(context.Background(), first); err != nil {
		t.Fatalf("StartProcessing() error = %v", err)
	}
	env = h.exec(t, asRole(contractx.RoleTravelDesk), "get_approved_for_travel_desk", map[string]any{})
	apps, _ = data(t, env)["applications"].([]map[string]any)
	if len(apps) != 1 {
		t.Fatalf("processing TRF dropped from queue")
	}
}

func TestTrackAllApplications(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	submittedTRF(t, h)
	number := submittedTRF(t, h)
	if _, err := h.machine.Reject(context.Background(), number, contractx.RoleIRM, "duplicate travel request"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	env := h.exec(t, asRole(contractx.RoleTravelDesk), "track_all_applications", map[string]any{})
	d := data(t, env)
	if total, _ := d["total"].(int); total != 2 {
		t.Fatalf("total = %v", d["total"])
	}
	byStatus, _ := d["by_status"].(map[storex.Status][]map[string]any)
	if len(byStatus[storex.StatusPendingIRM]) != 1 || len(byStatus[storex.StatusRejected]) != 1 {
		t.Fatalf("grouping wrong: %v", byStatus)
	}
}
