package policy

import (
	"errors"
	"testing"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
)

func TestToolsForCopiesTheList(t *testing.T) {
	t.Parallel()

	tools, err := ToolsFor(contractx.RoleEmployee)
	if err != nil {
		t.Fatalf("ToolsFor() error = %v", err)
	}
	if len(tools) == 0 {
		t.Fatalf("employee has no tools")
	}

	tools[0] = "tampered"
	again, _ := ToolsFor(contractx.RoleEmployee)
	if again[0] == "tampered" {
		t.Fatalf("ToolsFor leaked the backing slice")
	}
}

func TestToolsForUnknownRole(t *testing.T) {
	t.Parallel()

	if _, err := ToolsFor(contractx.Role("intern")); !errors.Is(err, contractx.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestAllowed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role contractx.Role
		tool string
		want bool
	}{
		{contractx.RoleEmployee, "create_trf_draft", true},
		{contractx.RoleEmployee, "approve_trf", false},
		{contractx.RoleEmployee, "confirm_flight_booking", false},
		{contractx.RoleIRM, "approve_trf", true},
		{contractx.RoleIRM, "get_pending_irm_applications", true},
		{contractx.RoleIRM, "get_pending_cfo_applications", false},
		{contractx.RoleIRM, "create_trf_draft", false},
		{contractx.RoleCFO, "list_employee_trfs", true},
		{contractx.RoleBUH, "list_employee_trfs", false},
		{contractx.RoleTravelDesk, "confirm_hotel_booking", true},
		{contractx.RoleTravelDesk, "create_trf_draft", false},
		{contractx.Role("intern"), "policy_qa", false},
	}
	for _, tc := range cases {
		if got := Allowed(tc.role, tc.tool); got != tc.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", tc.role, tc.tool, got, tc.want)
		}
	}
}

func TestEveryRoleHasPolicyQA(t *testing.T) {
	t.Parallel()

	for _, role := range contractx.KnownRoles() {
		if !Allowed(role, "policy_qa") {
			t.Errorf("role %s cannot ask policy questions", role)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	all := func(string) bool { return true }
	if err := Validate(all); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	none := func(string) bool { return false }
	if err := Validate(none); err == nil {
		t.Fatalf("expected error when no tool resolves")
	}
}
