package contract

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
)

// ChatModel is the model capability: given a message history and the
// tool schemas offered for this turn, it returns either a final answer
// or an assistant message carrying tool-call requests.
type ChatModel interface {
	Generate(ctx context.Context, messages []*schema.Message, tools []*schema.ToolInfo) (*schema.Message, error)
}

// PolicyAnswerer is the retrieval/answer collaborator consumed as one
// opaque tool.
type PolicyAnswerer interface {
	Answer(ctx context.Context, question string) (PolicyAnswer, error)
}

// SessionStore owns conversational memory. Appends must be atomic per
// message; reads must see a consistent prefix of the log.
type SessionStore interface {
	GetOrCreate(ctx context.Context, key string, role Role) (*Session, error)
	Append(ctx context.Context, key string, msg Message) error
	Read(ctx context.Context, key string) ([]Message, error)
	Clear(ctx context.Context, key string) error
}

// Session is the per-conversation record held by the SessionStore.
type Session struct {
	Key       string    `json:"session_id"`
	Role      Role      `json:"role"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
