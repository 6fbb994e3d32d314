package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
)

// fakeRedis serves the Upstash REST command protocol over an in-memory
// map: each request is a JSON array like ["GET", key] or
// ["SET", key, value, "EX", seconds].
type fakeRedis struct {
	mu       sync.Mutex
	values   map[string]string
	commands [][]any
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var cmd []any
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			t.Fatalf("decode command: %v", err)
		}
		f.mu.Lock()
		f.commands = append(f.commands, cmd)
		defer f.mu.Unlock()

		switch cmd[0] {
		case "GET":
			key := cmd[1].(string)
			value, ok := f.values[key]
			if !ok {
				fmt.Fprint(w, `{"result":null}`)
				return
			}
			out, _ := json.Marshal(value)
			fmt.Fprintf(w, `{"result":%s}`, out)
		case "SET":
			f.values[cmd[1].(string)] = cmd[2].(string)
			fmt.Fprint(w, `{"result":"OK"}`)
		default:
			fmt.Fprintf(w, `{"error":"unsupported command %v"}`, cmd[0])
		}
	}
}

func newUpstashStore(t *testing.T, opts ...StoreOption) (*UpstashRedisStore, *fakeRedis) {
	t.Helper()
	redis := newFakeRedis()
	server := httptest.NewServer(redis.handler(t))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		append([]StoreOption{WithHTTPClient(server.Client())}, opts...)...,
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}
	return store, redis
}

func TestUpstashStoreConfigValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewUpstashRedisStore(UpstashRedisConfig{Token: "token"}); err == nil {
		t.Fatalf("expected error for missing url")
	}
	if _, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "https://example.upstash.io"}); err == nil {
		t.Fatalf("expected error for missing token")
	}
	if _, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "https://example.upstash.io", Token: "t"}, WithTTL(-1)); err == nil {
		t.Fatalf("expected error for negative ttl")
	}
}

func TestUpstashStoreRedisKeyPrefix(t *testing.T) {
	t.Parallel()

	store, _ := newUpstashStore(t)
	got, err := store.redisKey("EMP001")
	if err != nil {
		t.Fatalf("redisKey() error = %v", err)
	}
	if got != "ctaa:session:EMP001" {
		t.Fatalf("redisKey() = %q", got)
	}

	custom, _ := newUpstashStore(t, WithKeyPrefix("travel:"))
	got, _ = custom.redisKey("EMP001")
	if got != "travel:EMP001" {
		t.Fatalf("custom prefix key = %q", got)
	}

	if _, err := store.redisKey("  "); err == nil {
		t.Fatalf("expected error for blank key")
	}
}

func TestUpstashStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, redis := newUpstashStore(t)

	sess, err := store.GetOrCreate(context.Background(), "EMP001", contractx.RoleEmployee)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if sess.Role != contractx.RoleEmployee {
		t.Fatalf("role = %s", sess.Role)
	}

	if err := store.Append(context.Background(), "EMP001", contractx.Message{
		Role:    contractx.MessageRoleUser,
		Content: "book my Delhi trip",
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	msgs, err := store.Read(context.Background(), "EMP001")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "book my Delhi trip" {
		t.Fatalf("messages = %+v", msgs)
	}

	// The stored value is one JSON session under the prefixed key.
	redis.mu.Lock()
	raw, ok := redis.values["ctaa:session:EMP001"]
	redis.mu.Unlock()
	if !ok {
		t.Fatalf("session not stored under prefixed key")
	}
	var stored contractx.Session
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("stored payload is not a session: %v", err)
	}
	if stored.Key != "EMP001" || len(stored.Messages) != 1 {
		t.Fatalf("stored session = %+v", stored)
	}
}

func TestUpstashStoreSetCarriesTTL(t *testing.T) {
	t.Parallel()

	store, redis := newUpstashStore(t)
	if _, err := store.GetOrCreate(context.Background(), "EMP001", contractx.RoleEmployee); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	redis.mu.Lock()
	defer redis.mu.Unlock()
	var set []any
	for _, cmd := range redis.commands {
		if cmd[0] == "SET" {
			set = cmd
		}
	}
	if set == nil {
		t.Fatalf("no SET command issued")
	}
	if len(set) != 5 || set[3] != "EX" {
		t.Fatalf("SET command missing TTL: %#v", set)
	}
	// Default 24h.
	if seconds, _ := set[4].(float64); seconds != 86400 {
		t.Fatalf("ttl seconds = %v", set[4])
	}
}

func TestUpstashStoreReadMissingSession(t *testing.T) {
	t.Parallel()

	store, _ := newUpstashStore(t)
	if _, err := store.Read(context.Background(), "nobody"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := store.Append(context.Background(), "nobody", contractx.Message{Role: contractx.MessageRoleUser}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("append on missing session: %v", err)
	}
}

func TestUpstashStoreClearKeepsSession(t *testing.T) {
	t.Parallel()

	store, _ := newUpstashStore(t)
	if _, err := store.GetOrCreate(context.Background(), "EMP001", contractx.RoleEmployee); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := store.Append(context.Background(), "EMP001", contractx.Message{Role: contractx.MessageRoleUser, Content: "hi"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Clear(context.Background(), "EMP001"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	msgs, err := store.Read(context.Background(), "EMP001")
	if err != nil {
		t.Fatalf("Read() after clear error = %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("messages survived clear")
	}
}

func TestUpstashStoreSurfacesRedisErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"WRONGPASS invalid password"}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "bad"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}
	if _, err := store.Read(context.Background(), "EMP001"); err == nil {
		t.Fatalf("expected redis error to surface")
	}
}
