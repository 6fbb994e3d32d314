package prompt

import (
	"errors"
	"strings"
	"testing"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
)

func TestSystemPromptForEveryRole(t *testing.T) {
	t.Parallel()

	for _, role := range contractx.KnownRoles() {
		got, err := SystemPrompt(role)
		if err != nil {
			t.Fatalf("SystemPrompt(%s) error = %v", role, err)
		}
		if strings.TrimSpace(got) == "" {
			t.Fatalf("SystemPrompt(%s) is empty", role)
		}
		if strings.Contains(got, "{{") {
			t.Fatalf("SystemPrompt(%s) has unrendered template vars", role)
		}
	}
}

func TestSystemPromptApproverVars(t *testing.T) {
	t.Parallel()

	got, err := SystemPrompt(contractx.RoleSRM)
	if err != nil {
		t.Fatalf("SystemPrompt() error = %v", err)
	}
	for _, want := range []string{"SRM", "pending_srm", "get_pending_srm_applications", "BUH"} {
		if !strings.Contains(got, want) {
			t.Errorf("srm prompt missing %q", want)
		}
	}

	// The last approver hands off to the travel desk, not another level.
	got, err = SystemPrompt(contractx.RoleCFO)
	if err != nil {
		t.Fatalf("SystemPrompt() error = %v", err)
	}
	if !strings.Contains(got, "Travel Desk") {
		t.Errorf("cfo prompt does not mention the travel desk handoff")
	}
}

func TestSystemPromptUnknownRole(t *testing.T) {
	t.Parallel()

	if _, err := SystemPrompt(contractx.Role("contractor")); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
