// Package policy defines role-based tool authorization. The mapping is
// a static table checked against the tool catalogue at startup; a role
// can only ever see and invoke the tools listed for it.
package policy

import (
	"fmt"
	"sort"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
)

// RoleToolMap lists the tool names each role may invoke.
var RoleToolMap = map[contractx.Role][]string{
	contractx.RoleEmployee: {
		"create_trf_draft",
		"submit_trf",
		"list_employee_drafts",
		"get_trf_approval_details",
		"get_trf_status",
		"list_employee_trfs",
		"policy_qa",
	},
	contractx.RoleIRM: {
		"get_pending_irm_applications",
		"get_trf_approval_details",
		"get_trf_status",
		"approve_trf",
		"policy_qa",
		"reject_trf",
	},
	contractx.RoleSRM: {
		"get_pending_srm_applications",
		"get_trf_approval_details",
		"get_trf_status",
		"approve_trf",
		"policy_qa",
		"reject_trf",
		"list_employee_trfs",
	},
	contractx.RoleBUH: {
		"get_pending_buh_applications",
		"get_trf_approval_details",
		"get_trf_status",
		"policy_qa",
		"approve_trf",
		"reject_trf",
	},
	contractx.RoleSSUH: {
		"get_pending_ssuh_applications",
		"get_trf_approval_details",
		"get_trf_status",
		"policy_qa",
		"approve_trf",
		"reject_trf",
	},
	contractx.RoleBGH: {
		"get_pending_bgh_applications",
		"get_trf_approval_details",
		"get_trf_status",
		"policy_qa",
		"approve_trf",
		"reject_trf",
	},
	contractx.RoleSSGH: {
		"get_pending_ssgh_applications",
		"get_trf_approval_details",
		"get_trf_status",
		"policy_qa",
		"approve_trf",
		"reject_trf",
	},
	contractx.RoleCFO: {
		"get_pending_cfo_applications",
		"get_trf_approval_details",
		"get_trf_status",
		"approve_trf",
		"reject_trf",
		"policy_qa",
		"list_employee_trfs",
	},
	contractx.RoleTravelDesk: {
		"get_approved_for_travel_desk",
		"track_all_applications",
		"approve_trf",
		"search_flights",
		"search_alternate_flights",
		"confirm_flight_booking",
		"search_hotels",
		"search_alternate_hotels",
		"confirm_hotel_booking",
		"mark_trf_completed",
		"get_trf_status",
		"list_employee_trfs",
		"policy_qa",
	},
}

// ToolsFor returns the tool names the role may invoke, in a stable order.
func ToolsFor(role contractx.Role) ([]string, error) {
	names, ok := RoleToolMap[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contractx.ErrUnknownRole, role)
	}
	out := make([]string, len(names))
	copy(out, names)
	return out, nil
}

// Allowed reports whether the role may invoke the named tool.
func Allowed(role contractx.Role, tool string) bool {
	for _, name := range RoleToolMap[role] {
		if name == tool {
			return true
		}
	}
	return false
}

// Validate checks the map against the tool catalogue: every role must be
// known and every mapped name must resolve to a registered tool. Called
// once at startup; a failure here is a programming error, not a runtime
// condition.
func Validate(known func(name string) bool) error {
	for _, role := range contractx.KnownRoles() {
		if _, ok := RoleToolMap[role]; !ok {
			return fmt.Errorf("role %s has no tool mapping", role)
		}
	}
	roles := make([]contractx.Role, 0, len(RoleToolMap))
	for role := range RoleToolMap {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	for _, role := range roles {
		seen := make(map[string]struct{})
		for _, name := range RoleToolMap[role] {
			if _, dup := seen[name]; dup {
				return fmt.Errorf("role %s lists tool %s twice", role, name)
			}
			seen[name] = struct{}{}
			if !known(name) {
				return fmt.Errorf("role %s maps unknown tool %s", role, name)
			}
		}
	}
	return nil
}
