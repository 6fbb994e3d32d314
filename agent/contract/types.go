package contract

import (
	"strings"
	"time"
)

// Role identifies who is speaking to the agent. The approval chain is a
// total order from IRM up to CFO, with the travel desk as the execution
// role at the end.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleIRM        Role = "irm"
	RoleSRM        Role = "srm"
	RoleBUH        Role = "buh"
	RoleSSUH       Role = "ssuh"
	RoleBGH        Role = "bgh"
	RoleSSGH       Role = "ssgh"
	RoleCFO        Role = "cfo"
	RoleTravelDesk Role = "travel_desk"
)

// ApprovalChain lists the approver roles in workflow order. Index k is
// approval level k+1; the travel desk handles the execution stage after
// the last approval.
var ApprovalChain = []Role{
	RoleIRM,
	RoleSRM,
	RoleBUH,
	RoleSSUH,
	RoleBGH,
	RoleSSGH,
	RoleCFO,
}

// KnownRoles returns every role the system accepts, requester first.
func KnownRoles() []Role {
	roles := make([]Role, 0, len(ApprovalChain)+2)
	roles = append(roles, RoleEmployee)
	roles = append(roles, ApprovalChain...)
	roles = append(roles, RoleTravelDesk)
	return roles
}

// ParseRole normalizes and validates a role string.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range KnownRoles() {
		if role == known {
			return role, nil
		}
	}
	return "", ErrUnknownRole
}

// Identity is what the token layer hands to the orchestrator. Trusted
// unconditionally once the token has been verified.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult carries the outcome of one tool call, correlated by call id.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Tool    string `json:"tool"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	IsError bool   `json:"is_error"`
}

// MessageRole is the role a message plays inside a conversation.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// Message is one append-only entry in a session's conversation log.
// Assistant messages may carry tool calls; tool messages carry the
// matching results.
type Message struct {
	Role        MessageRole  `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// ToolOutcome is the per-tool entry in turn metadata.
type ToolOutcome struct {
	CallID  string `json:"call_id"`
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
}

// ChatResult is the orchestrator's answer for one turn.
type ChatResult struct {
	Response   string        `json:"response"`
	SessionKey string        `json:"session_id"`
	History    []Message     `json:"chat_history"`
	Role       Role          `json:"role"`
	Tools      []ToolOutcome `json:"tools,omitempty"`
}

// PolicySource is one citation returned by the retrieval collaborator.
type PolicySource struct {
	Reference string  `json:"reference"`
	Score     float64 `json:"score"`
	Excerpt   string  `json:"excerpt,omitempty"`
}

// PolicyAnswer is the retrieval collaborator's response.
type PolicyAnswer struct {
	Text    string         `json:"answer"`
	Sources []PolicySource `json:"sources,omitempty"`
}
