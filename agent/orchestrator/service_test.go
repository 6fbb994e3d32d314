package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
	sessionx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/session"
	toolx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/tool"
	workflowx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/workflow"
	storex "github.com/kmaneesh/Corporate-Travel-Approval-Agent/store"
)

// fakeModel replays a scripted sequence of responses, one per Generate
// call, and records what it was asked.
type fakeModel struct {
	responses []*schema.Message
	err       error
	calls     int
	lastMsgs  []*schema.Message
	lastTools []*schema.ToolInfo
}

func (f *fakeModel) Generate(ctx context.Context, messages []*schema.Message, tools []*schema.ToolInfo) (*schema.Message, error) {
	f.calls++
	f.lastMsgs = messages
	f.lastTools = tools
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		return nil, fmt.Errorf("no scripted response left at call=%d", f.calls)
	}
	return f.responses[idx], nil
}

type fakePolicy struct{}

func (fakePolicy) Answer(ctx context.Context, question string) (contractx.PolicyAnswer, error) {
	return contractx.PolicyAnswer{Text: "policy answer"}, nil
}

func textResponse(content string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: content}
}

func toolResponse(calls ...schema.ToolCall) *schema.Message {
	return &schema.Message{Role: schema.Assistant, ToolCalls: calls}
}

func call(id, name string, args map[string]any) schema.ToolCall {
	raw, _ := json.Marshal(args)
	return schema.ToolCall{ID: id, Function: schema.FunctionCall{Name: name, Arguments: string(raw)}}
}

func newTestService(t *testing.T, model *fakeModel) (*Service, *sessionx.MemoryStore, *storex.MemoryStore) {
	t.Helper()
	sessions := sessionx.NewMemoryStore()
	store := storex.NewMemoryStore()
	registry := toolx.NewRegistry(toolx.Deps{
		Store:   store,
		Machine: workflowx.New(store),
		Policy:  fakePolicy{},
		Now:     func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) },
	})
	svc, err := New(model, sessions, registry)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc, sessions, store
}

func employee() contractx.Identity {
	return contractx.Identity{UserID: "EMP001", Role: contractx.RoleEmployee, Name: "Priya Sharma", Email: "priya@example.com"}
}

func TestHandleEmptyMessage(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, &fakeModel{})
	if _, err := svc.Handle(context.Background(), employee(), "   "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestHandleUnknownRole(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, &fakeModel{})
	id := contractx.Identity{UserID: "X", Role: contractx.Role("contractor")}
	if _, err := svc.Handle(context.Background(), id, "hello"); !errors.Is(err, contractx.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestHandlePlainReply(t *testing.T) {
	t.Parallel()

	model := &fakeModel{responses: []*schema.Message{textResponse("You have no draft TRFs.")}}
	svc, sessions, _ := newTestService(t, model)

	res, err := svc.Handle(context.Background(), employee(), "any drafts?")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Response != "You have no draft TRFs." {
		t.Fatalf("response = %q", res.Response)
	}
	if res.SessionKey != "EMP001" || res.Role != contractx.RoleEmployee {
		t.Fatalf("result identity = %+v", res)
	}
	if len(res.Tools) != 0 {
		t.Fatalf("unexpected tool outcomes: %+v", res.Tools)
	}

	// Session log: user message then assistant reply.
	history, _ := sessions.Read(context.Background(), "EMP001")
	if len(history) != 2 {
		t.Fatalf("history has %d messages, want 2", len(history))
	}
	if history[0].Role != contractx.MessageRoleUser || history[1].Role != contractx.MessageRoleAssistant {
		t.Fatalf("history order wrong: %+v", history)
	}

	// Tool surface offered to the model is the employee mapping.
	if len(model.lastTools) != 7 {
		t.Fatalf("employee surface has %d tools, want 7", len(model.lastTools))
	}
	for _, info := range model.lastTools {
		if info.Name == "approve_trf" {
			t.Fatalf("approval tool offered to an employee")
		}
	}

	// System prompt and identity context lead the wire messages.
	if model.lastMsgs[0].Role != schema.System || model.lastMsgs[1].Role != schema.System {
		t.Fatalf("system prefix missing")
	}
	if !strings.Contains(model.lastMsgs[1].Content, "EMP001") {
		t.Fatalf("identity context missing: %q", model.lastMsgs[1].Content)
	}
}

func TestHandleToolRound(t *testing.T) {
	t.Parallel()

	model := &fakeModel{responses: []*schema.Message{
		toolResponse(call("c1", "create_trf_draft", map[string]any{
			"travel_type":      "domestic",
			"purpose":          "client onboarding",
			"origin_city":      "Mumbai",
			"destination_city": "Delhi",
			"departure_date":   "2026-04-10",
		})),
		textResponse("Draft DRAFT-TRF202600001 created."),
	}}
	svc, sessions, store := newTestService(t, model)

	res, err := svc.Handle(context.Background(), employee(), "create a trip to Delhi on April 10")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Response != "Draft DRAFT-TRF202600001 created." {
		t.Fatalf("response = %q", res.Response)
	}
	if len(res.Tools) != 1 || !res.Tools[0].Success || res.Tools[0].Tool != "create_trf_draft" {
		t.Fatalf("tool outcomes = %+v", res.Tools)
	}

	// The tool really ran.
	if n, _ := store.CountTRFs(context.Background()); n != 1 {
		t.Fatalf("draft not created, count=%d", n)
	}

	// History: user, assistant w/ calls, tool results, final assistant.
	history, _ := sessions.Read(context.Background(), "EMP001")
	if len(history) != 4 {
		t.Fatalf("history has %d messages, want 4", len(history))
	}
	if len(history[1].ToolCalls) != 1 || history[1].ToolCalls[0].ID != "c1" {
		t.Fatalf("assistant tool calls not persisted: %+v", history[1])
	}
	if len(history[2].ToolResults) != 1 || history[2].ToolResults[0].CallID != "c1" {
		t.Fatalf("tool results not persisted: %+v", history[2])
	}

	// The second model call saw the tool result message.
	last := model.lastMsgs[len(model.lastMsgs)-1]
	if last.Role != schema.Tool || last.ToolCallID != "c1" {
		t.Fatalf("tool result not forwarded to model: %+v", last)
	}
}

func TestHandleUnauthorizedToolCall(t *testing.T) {
	t.Parallel()

	model := &fakeModel{responses: []*schema.Message{
		toolResponse(call("c1", "approve_trf", map[string]any{"trf_number": "TRF1", "approver_level": "irm"})),
		textResponse("I cannot approve requests on your behalf."),
	}}
	svc, _, store := newTestService(t, model)

	res, err := svc.Handle(context.Background(), employee(), "approve TRF1 for me")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(res.Tools) != 1 || res.Tools[0].Success {
		t.Fatalf("expected one failed outcome: %+v", res.Tools)
	}
	// The call never reached the store.
	if n, _ := store.CountTRFs(context.Background()); n != 0 {
		t.Fatalf("unauthorized call mutated state")
	}
}

func TestHandlePartialToolFailure(t *testing.T) {
	t.Parallel()

	model := &fakeModel{responses: []*schema.Message{
		toolResponse(
			call("c1", "get_trf_status", map[string]any{"trf_number": "TRF404"}),
			call("c2", "policy_qa", map[string]any{"question": "per diem?"}),
		),
		textResponse("TRF404 does not exist; the per diem policy says..."),
	}}
	svc, _, _ := newTestService(t, model)

	res, err := svc.Handle(context.Background(), employee(), "status of TRF404 and the per diem policy")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(res.Tools) != 2 {
		t.Fatalf("outcomes = %+v", res.Tools)
	}
	// Order matches the request order regardless of concurrency.
	if res.Tools[0].CallID != "c1" || res.Tools[1].CallID != "c2" {
		t.Fatalf("outcome order = %+v", res.Tools)
	}
	if res.Tools[0].Success || !res.Tools[1].Success {
		t.Fatalf("expected c1 failure and c2 success: %+v", res.Tools)
	}
}

func TestHandleRoundCap(t *testing.T) {
	t.Parallel()

	responses := make([]*schema.Message, 0, maxToolRounds)
	for i := 0; i < maxToolRounds; i++ {
		responses = append(responses, toolResponse(
			call(fmt.Sprintf("c%d", i), "list_employee_drafts", map[string]any{}),
		))
	}
	model := &fakeModel{responses: responses}
	svc, _, _ := newTestService(t, model)

	res, err := svc.Handle(context.Background(), employee(), "loop forever")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Response != fallbackReply {
		t.Fatalf("response = %q, want fallback", res.Response)
	}
	if model.calls != maxToolRounds {
		t.Fatalf("model called %d times, want %d", model.calls, maxToolRounds)
	}
	if len(res.Tools) != maxToolRounds {
		t.Fatalf("outcomes = %d, want %d", len(res.Tools), maxToolRounds)
	}
}

func TestHandleModelFailureKeepsUserMessage(t *testing.T) {
	t.Parallel()

	model := &fakeModel{err: errors.New("rate limited")}
	svc, sessions, _ := newTestService(t, model)

	if _, err := svc.Handle(context.Background(), employee(), "hello"); !errors.Is(err, contractx.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}

	// The user message survives for the retry.
	history, _ := sessions.Read(context.Background(), "EMP001")
	if len(history) != 1 || history[0].Role != contractx.MessageRoleUser {
		t.Fatalf("history = %+v", history)
	}
}

func TestHandleAssignsMissingCallIDs(t *testing.T) {
	t.Parallel()

	model := &fakeModel{responses: []*schema.Message{
		toolResponse(schema.ToolCall{Function: schema.FunctionCall{Name: "list_employee_drafts", Arguments: "{}"}}),
		textResponse("no drafts"),
	}}
	svc, _, _ := newTestService(t, model)

	res, err := svc.Handle(context.Background(), employee(), "drafts?")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(res.Tools) != 1 || res.Tools[0].CallID == "" {
		t.Fatalf("missing call id not backfilled: %+v", res.Tools)
	}
}

func TestParseToolCallsBadArguments(t *testing.T) {
	t.Parallel()

	calls := parseToolCalls(toolResponse(
		schema.ToolCall{ID: "c1", Function: schema.FunctionCall{Name: "get_trf_status", Arguments: "not json"}},
	))
	if len(calls) != 1 {
		t.Fatalf("calls = %+v", calls)
	}
	// Bad args degrade to an empty map; the tool reports the missing
	// argument itself.
	if len(calls[0].Args) != 0 {
		t.Fatalf("args = %+v", calls[0].Args)
	}
}

func TestParseToolCallsSkipsNamelessEntries(t *testing.T) {
	t.Parallel()

	calls := parseToolCalls(toolResponse(
		schema.ToolCall{ID: "c1", Function: schema.FunctionCall{Name: "  ", Arguments: "{}"}},
		schema.ToolCall{ID: "c2", Function: schema.FunctionCall{Name: "policy_qa", Arguments: `{"question":"x"}`}},
	))
	if len(calls) != 1 || calls[0].ID != "c2" {
		t.Fatalf("calls = %+v", calls)
	}
}
