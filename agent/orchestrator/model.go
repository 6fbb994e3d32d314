package orchestrator

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
)

// einoChatModel adapts an eino tool-calling model to the orchestrator's
// model contract: the tool surface is bound per call because it differs
// by role.
type einoChatModel struct {
	inner einomodel.ToolCallingChatModel
}

// WrapChatModel adapts an eino ToolCallingChatModel.
func WrapChatModel(inner einomodel.ToolCallingChatModel) contractx.ChatModel {
	return &einoChatModel{inner: inner}
}

func (m *einoChatModel) Generate(ctx context.Context, messages []*schema.Message, tools []*schema.ToolInfo) (*schema.Message, error) {
	target := m.inner
	if len(tools) > 0 {
		bound, err := m.inner.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
		target = bound
	}
	return target.Generate(ctx, messages)
}
