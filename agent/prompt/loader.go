// Package prompt loads the role system prompts. Templates are embedded
// at compile time; the approver template is shared across the seven
// approval levels and parameterized per role.
package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
	workflowx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/workflow"
)

var (
	//go:embed template/employee.txt
	employeeRaw string

	//go:embed template/approver.txt
	approverRaw string

	//go:embed template/travel_desk.txt
	travelDeskRaw string
)

var approverTmpl = template.Must(template.New("approver").Parse(approverRaw))

type approverVars struct {
	Level         string
	LevelUpper    string
	PendingStatus string
	PendingTool   string
	NextStage     string
}

// SystemPrompt returns the system prompt for a role.
func SystemPrompt(role contractx.Role) (string, error) {
	switch role {
	case contractx.RoleEmployee:
		return strings.TrimSpace(employeeRaw), nil
	case contractx.RoleTravelDesk:
		return strings.TrimSpace(travelDeskRaw), nil
	}

	pending, err := workflowx.ExpectedStatus(role)
	if err != nil {
		return "", fmt.Errorf("no prompt for role %s: %w", role, err)
	}
	vars := approverVars{
		Level:         string(role),
		LevelUpper:    strings.ToUpper(string(role)),
		PendingStatus: string(pending),
		PendingTool:   fmt.Sprintf("get_pending_%s_applications", role),
		NextStage:     nextStageName(role),
	}
	var b strings.Builder
	if err := approverTmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("render approver prompt: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

func nextStageName(role contractx.Role) string {
	for i, r := range contractx.ApprovalChain {
		if r != role {
			continue
		}
		if i+1 < len(contractx.ApprovalChain) {
			return strings.ToUpper(string(contractx.ApprovalChain[i+1]))
		}
		return "Travel Desk"
	}
	return "the next stage"
}
