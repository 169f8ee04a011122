package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	refdatax "github.com/piyachat/chainflow/refdata"
)

func TestRedisRESTStoreRedisKey(t *testing.T) {
	t.Parallel()

	store := &RedisRESTStore{keyPrefix: defaultStoreKeyPrefix}
	got, err := store.redisKey("abc")
	if err != nil {
		t.Fatalf("redisKey() error = %v", err)
	}
	if got != "chainflow:session:abc" {
		t.Fatalf("redisKey() = %q, want %q", got, "chainflow:session:abc")
	}
}

func TestRedisRESTStoreRedisKeyEmptySession(t *testing.T) {
	t.Parallel()

	store := &RedisRESTStore{keyPrefix: defaultStoreKeyPrefix}
	_, err := store.redisKey("   ")
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("redisKey() error = %v, want ErrInvalidSession", err)
	}
}

func TestRedisRESTStoreSaveCommand(t *testing.T) {
	t.Parallel()

	const wantKey = "chainflow:session:session-1"
	var gotCommand []any
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":"OK"}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewRedisRESTStore(
		RedisRESTConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewRedisRESTStore() error = %v", err)
	}

	sctx := NewContext("admin", refdatax.Snapshot{})
	sctx.AppendHistory(RoleUser, "hello")
	if err := store.Save(context.Background(), "session-1", sctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if gotAuth != "Bearer token" {
		t.Fatalf("Authorization = %q, want bearer token", gotAuth)
	}
	if len(gotCommand) != 5 {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
	if gotCommand[0] != "SET" {
		t.Fatalf("command[0] = %v, want SET", gotCommand[0])
	}
	if gotCommand[1] != wantKey {
		t.Fatalf("command[1] = %v, want %s", gotCommand[1], wantKey)
	}
	payload, ok := gotCommand[2].(string)
	if !ok || !strings.Contains(payload, `"hello"`) {
		t.Fatalf("command[2] = %v, want serialized context", gotCommand[2])
	}
	if gotCommand[3] != "EX" {
		t.Fatalf("command[3] = %v, want EX", gotCommand[3])
	}
	// 24h default TTL, JSON numbers decode as float64.
	if gotCommand[4] != float64(86400) {
		t.Fatalf("command[4] = %v, want 86400", gotCommand[4])
	}
}

func TestRedisRESTStoreSaveWithoutTTL(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":"OK"}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewRedisRESTStore(
		RedisRESTConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
		WithTTL(0),
	)
	if err != nil {
		t.Fatalf("NewRedisRESTStore() error = %v", err)
	}

	if err := store.Save(context.Background(), "session-1", NewContext("admin", refdatax.Snapshot{})); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(gotCommand) != 3 {
		t.Fatalf("expected bare SET without expiry, got %#v", gotCommand)
	}
}

func TestRedisRESTStoreLoadRoundTrip(t *testing.T) {
	t.Parallel()

	const wantKey = "chainflow:session:session-2"
	var gotCommand []any

	seed := NewContext("manager", refdatax.Snapshot{})
	seed.AppendHistory(RoleUser, "first question")
	seed.RoutingReason = "fleet keywords"
	payload, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	// The gateway returns the stored value as a JSON string.
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprintf(w, `{"result":%s}`, encoded)
	}))
	t.Cleanup(server.Close)

	store, err := NewRedisRESTStore(
		RedisRESTConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewRedisRESTStore() error = %v", err)
	}

	sctx, err := store.Load(context.Background(), "session-2")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sctx.Role != "manager" {
		t.Fatalf("Load().Role = %q, want manager", sctx.Role)
	}
	if len(sctx.ConversationHistory) != 1 || sctx.ConversationHistory[0].Content != "first question" {
		t.Fatalf("unexpected history: %+v", sctx.ConversationHistory)
	}
	if sctx.RoutingReason != "fleet keywords" {
		t.Fatalf("RoutingReason = %q", sctx.RoutingReason)
	}

	if len(gotCommand) != 2 {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
	if gotCommand[0] != "GET" {
		t.Fatalf("command[0] = %v, want GET", gotCommand[0])
	}
	if gotCommand[1] != wantKey {
		t.Fatalf("command[1] = %v, want %s", gotCommand[1], wantKey)
	}
}

func TestRedisRESTStoreLoadMissingSession(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewRedisRESTStore(
		RedisRESTConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewRedisRESTStore() error = %v", err)
	}

	_, err = store.Load(context.Background(), "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Load() error = %v, want ErrSessionNotFound", err)
	}
}

func TestRedisRESTStoreGatewayErrors(t *testing.T) {
	t.Parallel()

	t.Run("error field", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"error":"WRONGPASS invalid token"}`)
		}))
		t.Cleanup(server.Close)

		store, err := NewRedisRESTStore(
			RedisRESTConfig{URL: server.URL, Token: "token"},
			WithHTTPClient(server.Client()),
		)
		if err != nil {
			t.Fatalf("NewRedisRESTStore() error = %v", err)
		}

		_, err = store.Load(context.Background(), "session-1")
		if err == nil || !strings.Contains(err.Error(), "WRONGPASS") {
			t.Fatalf("Load() error = %v, want gateway error surfaced", err)
		}
	})

	t.Run("non-2xx status", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}))
		t.Cleanup(server.Close)

		store, err := NewRedisRESTStore(
			RedisRESTConfig{URL: server.URL, Token: "token"},
			WithHTTPClient(server.Client()),
		)
		if err != nil {
			t.Fatalf("NewRedisRESTStore() error = %v", err)
		}

		err = store.Save(context.Background(), "session-1", NewContext("admin", refdatax.Snapshot{}))
		if err == nil || !strings.Contains(err.Error(), "status=401") {
			t.Fatalf("Save() error = %v, want status error", err)
		}
	})
}

func TestRedisRESTStoreDeleteCommand(t *testing.T) {
	t.Parallel()

	const wantKey = "chainflow:session:session-3"
	var gotCommand []any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":1}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewRedisRESTStore(
		RedisRESTConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewRedisRESTStore() error = %v", err)
	}

	if err := store.Delete(context.Background(), "session-3"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if len(gotCommand) != 2 {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
	if gotCommand[0] != "DEL" {
		t.Fatalf("command[0] = %v, want DEL", gotCommand[0])
	}
	if gotCommand[1] != wantKey {
		t.Fatalf("command[1] = %v, want %s", gotCommand[1], wantKey)
	}
}

func TestTTLSecondsRoundsUp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ttl  time.Duration
		want int64
	}{
		{24 * time.Hour, 86400},
		{1500 * time.Millisecond, 2},
		{time.Second, 1},
		{time.Millisecond, 1},
	}
	for _, tc := range cases {
		if got := ttlSeconds(tc.ttl); got != tc.want {
			t.Fatalf("ttlSeconds(%v) = %d, want %d", tc.ttl, got, tc.want)
		}
	}
}
