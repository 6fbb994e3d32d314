// Package orchestrator runs one conversation turn: it binds the
// caller's role to its tool surface, loops model round-trips up to a
// fixed cap, dispatches requested tools concurrently, and persists the
// full exchange in the session log.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
	policyx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/policy"
	promptx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/prompt"
	toolx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/tool"
	logx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/pkg/logger"
)

// maxToolRounds caps model round-trips within one turn. A turn that
// still wants tools after the last round gets the fallback reply.
const maxToolRounds = 5

// fallbackReply is returned when the round cap is hit with the model
// still asking for tools.
const fallbackReply = "I could not finish processing that request within the allowed number of steps. " +
	"The tool results gathered so far are saved; please ask again or narrow the request."

type Service struct {
	model    contractx.ChatModel
	sessions contractx.SessionStore
	tools    *toolx.Registry

	now func() time.Time
}

func New(model contractx.ChatModel, sessions contractx.SessionStore, tools *toolx.Registry) (*Service, error) {
	if model == nil {
		return nil, errors.New("chat model is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if tools == nil {
		return nil, errors.New("tool registry is required")
	}
	if err := policyx.Validate(tools.Known); err != nil {
		return nil, fmt.Errorf("role tool map: %w", err)
	}
	return &Service{
		model:    model,
		sessions: sessions,
		tools:    tools,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Handle runs one turn for the identified caller. The user message is
// appended before the model is consulted, so a failed turn still leaves
// the message in the session for the retry.
func (s *Service) Handle(ctx context.Context, id contractx.Identity, message string) (contractx.ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return contractx.ChatResult{}, fmt.Errorf("%w: message is empty", contractx.ErrValidation)
	}
	allowed, err := policyx.ToolsFor(id.Role)
	if err != nil {
		return contractx.ChatResult{}, err
	}
	systemPrompt, err := promptx.SystemPrompt(id.Role)
	if err != nil {
		return contractx.ChatResult{}, err
	}

	sessionKey := id.UserID
	sess, err := s.sessions.GetOrCreate(ctx, sessionKey, id.Role)
	if err != nil {
		return contractx.ChatResult{}, fmt.Errorf("load session: %w", err)
	}

	userMsg := contractx.Message{
		Role:      contractx.MessageRoleUser,
		Content:   message,
		Timestamp: s.now(),
	}
	if err := s.sessions.Append(ctx, sessionKey, userMsg); err != nil {
		return contractx.ChatResult{}, fmt.Errorf("append user message: %w", err)
	}

	msgs := historyToSchema(systemPrompt, id, append(sess.Messages, userMsg))
	infos := s.tools.Infos(allowed)
	logger := logx.WithSession(sessionKey, string(id.Role))

	var outcomes []contractx.ToolOutcome
	for round := 0; round < maxToolRounds; round++ {
		resp, err := s.model.Generate(ctx, msgs, infos)
		if err != nil {
			logger.Error().Err(err).Int("round", round).Msg("model invoke failed")
			return contractx.ChatResult{}, fmt.Errorf("%w: %v", contractx.ErrUpstream, err)
		}

		calls := parseToolCalls(resp)
		if len(calls) == 0 {
			reply := strings.TrimSpace(resp.Content)
			if reply == "" {
				reply = fallbackReply
			}
			return s.finish(ctx, id, sessionKey, reply, outcomes)
		}

		assistantMsg := contractx.Message{
			Role:      contractx.MessageRoleAssistant,
			Content:   strings.TrimSpace(resp.Content),
			ToolCalls: calls,
			Timestamp: s.now(),
		}
		if err := s.sessions.Append(ctx, sessionKey, assistantMsg); err != nil {
			return contractx.ChatResult{}, fmt.Errorf("append assistant message: %w", err)
		}

		results := s.dispatch(ctx, id, calls)
		for _, res := range results {
			outcomes = append(outcomes, contractx.ToolOutcome{
				CallID:  res.CallID,
				Tool:    res.Tool,
				Success: !res.IsError,
			})
		}

		toolMsg := contractx.Message{
			Role:        contractx.MessageRoleTool,
			ToolResults: results,
			Timestamp:   s.now(),
		}
		if err := s.sessions.Append(ctx, sessionKey, toolMsg); err != nil {
			return contractx.ChatResult{}, fmt.Errorf("append tool results: %w", err)
		}

		msgs = append(msgs, resp)
		msgs = append(msgs, resultsToSchema(results)...)
	}

	logger.Warn().Msg("tool round cap reached")
	return s.finish(ctx, id, sessionKey, fallbackReply, outcomes)
}

// dispatch runs a round's tool calls concurrently, keeping request
// order in the result slice. Unauthorized calls are answered without
// being run; a failing tool never cancels its siblings.
func (s *Service) dispatch(ctx context.Context, id contractx.Identity, calls []contractx.ToolCall) []contractx.ToolResult {
	results := make([]contractx.ToolResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		if !policyx.Allowed(id.Role, call.Name) {
			results[i] = toolx.Unauthorized(id.Role, call)
			log.Warn().
				Str("tool", call.Name).
				Str("role", string(id.Role)).
				Msg("unauthorized tool call blocked")
			continue
		}
		g.Go(func() error {
			results[i] = s.tools.Execute(gctx, id, call)
			return nil
		})
	}
	// Workers never return errors; Wait is only a join point.
	_ = g.Wait()
	return results
}

func (s *Service) finish(ctx context.Context, id contractx.Identity, sessionKey, reply string, outcomes []contractx.ToolOutcome) (contractx.ChatResult, error) {
	assistantMsg := contractx.Message{
		Role:      contractx.MessageRoleAssistant,
		Content:   reply,
		Timestamp: s.now(),
	}
	if err := s.sessions.Append(ctx, sessionKey, assistantMsg); err != nil {
		return contractx.ChatResult{}, fmt.Errorf("append reply: %w", err)
	}
	history, err := s.sessions.Read(ctx, sessionKey)
	if err != nil {
		return contractx.ChatResult{}, fmt.Errorf("read session: %w", err)
	}
	return contractx.ChatResult{
		Response:   reply,
		SessionKey: sessionKey,
		History:    history,
		Role:       id.Role,
		Tools:      outcomes,
	}, nil
}

// parseToolCalls decodes the model's tool-call requests. Calls without
// an id get one assigned so results stay correlatable.
func parseToolCalls(msg *schema.Message) []contractx.ToolCall {
	if msg == nil || len(msg.ToolCalls) == 0 {
		return nil
	}
	calls := make([]contractx.ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		name := strings.TrimSpace(tc.Function.Name)
		if name == "" {
			continue
		}
		callID := strings.TrimSpace(tc.ID)
		if callID == "" {
			callID = uuid.NewString()
		}
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				log.Warn().Str("tool", name).Err(err).Msg("unparseable tool args")
				args = map[string]any{}
			}
		}
		calls = append(calls, contractx.ToolCall{ID: callID, Name: name, Args: args})
	}
	return calls
}

// historyToSchema converts the session log into the model's wire shape,
// prefixed by the system prompt and the caller's identity context.
func historyToSchema(systemPrompt string, id contractx.Identity, history []contractx.Message) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(systemPrompt))
	msgs = append(msgs, schema.SystemMessage(fmt.Sprintf(
		"Current user: %s (id=%s, role=%s, email=%s)", id.Name, id.UserID, id.Role, id.Email)))
	for _, m := range history {
		switch m.Role {
		case contractx.MessageRoleUser:
			msgs = append(msgs, schema.UserMessage(m.Content))
		case contractx.MessageRoleAssistant:
			am := &schema.Message{Role: schema.Assistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				raw, err := json.Marshal(tc.Args)
				if err != nil {
					raw = []byte("{}")
				}
				am.ToolCalls = append(am.ToolCalls, schema.ToolCall{
					ID: tc.ID,
					Function: schema.FunctionCall{
						Name:      tc.Name,
						Arguments: string(raw),
					},
				})
			}
			msgs = append(msgs, am)
		case contractx.MessageRoleTool:
			msgs = append(msgs, resultsToSchema(m.ToolResults)...)
		}
	}
	return msgs
}

// resultsToSchema renders each tool result as a tool message keyed by
// its call id.
func resultsToSchema(results []contractx.ToolResult) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(results))
	for _, res := range results {
		content, err := json.Marshal(res.Result)
		if err != nil {
			content = []byte(fmt.Sprintf(`{"success":false,"message":%q}`, err.Error()))
		}
		msgs = append(msgs, &schema.Message{
			Role:       schema.Tool,
			ToolCallID: res.CallID,
			Content:    string(content),
		})
	}
	return msgs
}
