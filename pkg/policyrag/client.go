// Package policyrag answers travel policy questions. Retrieval runs
// against a vector search REST service; when an OpenAI-compatible
// client is attached the retrieved passages are synthesized into a
// grounded answer, otherwise the top passage is returned verbatim.
package policyrag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
)

const (
	defaultTopK          = 4
	maxResponseSizeBytes = 2 << 20

	answerSystemPrompt = "You answer corporate travel policy questions using only the provided policy excerpts. " +
		"Cite the excerpt references you used. If the excerpts do not cover the question, say so."
)

type Config struct {
	URL      string        `envconfig:"URL" split_words:"true" required:"true"`
	Token    string        `envconfig:"TOKEN" split_words:"true"`
	TopK     int           `envconfig:"TOP_K" split_words:"true" default:"4"`
	MinScore float64       `envconfig:"MIN_SCORE" split_words:"true" default:"0.35"`
	Timeout  time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
	Model    string        `envconfig:"MODEL" split_words:"true"`
}

// Client implements the policy answer collaborator.
type Client struct {
	baseURL    string
	token      string
	topK       int
	minScore   float64
	httpClient *http.Client

	openai *openaisdk.Client
	model  string
}

var _ contractx.PolicyAnswerer = (*Client)(nil)

type ClientOption func(*Client)

// WithOpenAI attaches a chat-completion client used to synthesize the
// final answer from retrieved passages.
func WithOpenAI(client *openaisdk.Client, model string) ClientOption {
	return func(c *Client) {
		c.openai = client
		c.model = strings.TrimSpace(model)
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("policy retrieval url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid policy retrieval url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	c := &Client{
		baseURL:  baseURL,
		token:    strings.TrimSpace(cfg.Token),
		topK:     topK,
		minScore: cfg.MinScore,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		model: strings.TrimSpace(cfg.Model),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type queryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type queryMatch struct {
	Text      string  `json:"text"`
	Reference string  `json:"reference"`
	Score     float64 `json:"score"`
}

type queryResponse struct {
	Matches []queryMatch `json:"matches"`
	Error   string       `json:"error,omitempty"`
}

// Answer retrieves relevant policy passages and builds the answer.
func (c *Client) Answer(ctx context.Context, question string) (contractx.PolicyAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return contractx.PolicyAnswer{}, errors.New("question is empty")
	}

	matches, err := c.retrieve(ctx, question)
	if err != nil {
		return contractx.PolicyAnswer{}, err
	}

	sources := make([]contractx.PolicySource, 0, len(matches))
	for _, m := range matches {
		if m.Score < c.minScore {
			continue
		}
		excerpt := m.Text
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		sources = append(sources, contractx.PolicySource{
			Reference: m.Reference,
			Score:     m.Score,
			Excerpt:   excerpt,
		})
	}
	if len(sources) == 0 {
		return contractx.PolicyAnswer{
			Text: "No policy passage covers this question. Please contact the travel desk directly.",
		}, nil
	}

	if c.openai == nil || c.model == "" {
		return contractx.PolicyAnswer{
			Text:    matches[0].Text,
			Sources: sources,
		}, nil
	}

	answer, err := c.synthesize(ctx, question, matches)
	if err != nil {
		return contractx.PolicyAnswer{}, err
	}
	return contractx.PolicyAnswer{Text: answer, Sources: sources}, nil
}

func (c *Client) retrieve(ctx context.Context, question string) ([]queryMatch, error) {
	body, err := json.Marshal(queryRequest{Question: question, TopK: c.topK})
	if err != nil {
		return nil, fmt.Errorf("marshal retrieval request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build retrieval request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute retrieval request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read retrieval response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("retrieval http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed queryResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode retrieval response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return parsed.Matches, nil
}

func (c *Client) synthesize(ctx context.Context, question string, matches []queryMatch) (string, error) {
	var b strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&b, "[%d] %s (score %.2f)\n%s\n\n", i+1, m.Reference, m.Score, m.Text)
	}

	completion, err := c.openai.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(answerSystemPrompt),
			openaisdk.UserMessage(fmt.Sprintf("Question: %s\n\nPolicy excerpts:\n%s", question, b.String())),
		},
	})
	if err != nil {
		return "", fmt.Errorf("synthesize policy answer: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
