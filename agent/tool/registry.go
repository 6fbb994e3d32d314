// Package tool holds the catalogue the model can call: travel request
// lifecycle, approval queue, booking and policy tools. Every tool body
// returns a JSON envelope so failures stay inside the conversation
// rather than aborting the turn.
package tool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
	workflowx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/workflow"
	storex "github.com/kmaneesh/Corporate-Travel-Approval-Agent/store"
)

const dateLayout = "2006-01-02"

// Deps carries the collaborators tool bodies run against.
type Deps struct {
	Store   storex.TravelStore
	Machine *workflowx.Machine
	Policy  contractx.PolicyAnswerer
	Now     func() time.Time
}

// runFunc is a tool body: returns payload data and a human message, or
// an error from the contract taxonomy.
type runFunc func(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error)

// Descriptor pairs a tool schema with its body. Mutating tools change
// travel request or booking state; read tools never do.
type Descriptor struct {
	Info     *schema.ToolInfo
	Mutating bool
	run      runFunc
}

// Registry is the full tool catalogue, keyed by tool name.
type Registry struct {
	deps  Deps
	tools map[string]Descriptor
}

func NewRegistry(deps Deps) *Registry {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	r := &Registry{deps: deps, tools: make(map[string]Descriptor)}
	r.registerTRFTools()
	r.registerApprovalTools()
	r.registerBookingTools()
	r.registerPolicyTools()
	return r
}

func (r *Registry) register(d Descriptor) {
	if _, dup := r.tools[d.Info.Name]; dup {
		panic(fmt.Sprintf("tool %s registered twice", d.Info.Name))
	}
	r.tools[d.Info.Name] = d
}

// Known reports whether the catalogue contains the named tool.
func (r *Registry) Known(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Infos returns the schemas for the given tool names, preserving order.
// Names not in the catalogue are skipped.
func (r *Registry) Infos(names []string) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(names))
	for _, name := range names {
		if d, ok := r.tools[name]; ok {
			infos = append(infos, d.Info)
		}
	}
	return infos
}

// envelope is the wire shape of every tool result, mirroring the
// success/message/data/error contract the prompts are written against.
type envelope struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Data         any    `json:"data,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorDetails string `json:"error_details,omitempty"`
}

// Execute runs one tool call and always returns a result; tool-level
// failures are encoded in the envelope, never as a Go error, so one bad
// call cannot sink the other calls in the same round.
func (r *Registry) Execute(ctx context.Context, id contractx.Identity, call contractx.ToolCall) contractx.ToolResult {
	d, ok := r.tools[call.Name]
	if !ok {
		return contractx.ToolResult{
			CallID:  call.ID,
			Tool:    call.Name,
			Error:   fmt.Sprintf("unknown tool: %s", call.Name),
			IsError: true,
			Result: envelope{
				Success: false,
				Message: fmt.Sprintf("unknown tool: %s", call.Name),
				Error:   contractx.CodeValidation,
			},
		}
	}

	data, msg, err := d.run(ctx, r.deps, id, call.Args)
	if err != nil {
		return contractx.ToolResult{
			CallID:  call.ID,
			Tool:    call.Name,
			Error:   err.Error(),
			IsError: true,
			Result: envelope{
				Success:      false,
				Message:      err.Error(),
				Error:        contractx.CodeOf(err),
				ErrorDetails: err.Error(),
			},
		}
	}
	return contractx.ToolResult{
		CallID: call.ID,
		Tool:   call.Name,
		Result: envelope{Success: true, Message: msg, Data: data},
	}
}

// Unauthorized builds the error result returned when a role asks for a
// tool outside its mapping. The call is never dispatched.
func Unauthorized(role contractx.Role, call contractx.ToolCall) contractx.ToolResult {
	msg := fmt.Sprintf("tool %s is not available for role %s", call.Name, role)
	return contractx.ToolResult{
		CallID:  call.ID,
		Tool:    call.Name,
		Error:   msg,
		IsError: true,
		Result: envelope{
			Success: false,
			Message: msg,
			Error:   contractx.CodeAuthorization,
		},
	}
}

// argument helpers. Tool args arrive as decoded JSON, so numbers are
// float64 and everything needs coercion before use.

func stringArg(args map[string]any, key string, required bool) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		if required {
			return "", fmt.Errorf("%w: missing required argument %q", contractx.ErrValidation, key)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %q must be a string", contractx.ErrValidation, key)
	}
	s = strings.TrimSpace(s)
	if required && s == "" {
		return "", fmt.Errorf("%w: argument %q is empty", contractx.ErrValidation, key)
	}
	return s, nil
}

func intArg(args map[string]any, key string, fallback int) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: argument %q must be an integer", contractx.ErrValidation, key)
		}
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: argument %q must be an integer", contractx.ErrValidation, key)
	}
}

func floatArg(args map[string]any, key string) (float64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case int:
		return float64(v), true, nil
	default:
		return 0, false, fmt.Errorf("%w: argument %q must be a number", contractx.ErrValidation, key)
	}
}

func dateArg(args map[string]any, key string, required bool) (time.Time, bool, error) {
	s, err := stringArg(args, key, required)
	if err != nil {
		return time.Time{}, false, err
	}
	if s == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: argument %q must be a YYYY-MM-DD date", contractx.ErrValidation, key)
	}
	return t, true, nil
}

func notFound(err error, msg string) error {
	if errors.Is(err, storex.ErrTRFNotFound) ||
		errors.Is(err, storex.ErrFlightNotFound) ||
		errors.Is(err, storex.ErrHotelNotFound) ||
		errors.Is(err, storex.ErrBookingNotFound) {
		return fmt.Errorf("%w: %s", contractx.ErrNotFound, msg)
	}
	return err
}
