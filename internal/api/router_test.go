package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/reciperag/session-cache/internal/config"
	"github.com/reciperag/session-cache/internal/domain"
	"github.com/reciperag/session-cache/internal/remote"
	"github.com/reciperag/session-cache/internal/security"
	"github.com/reciperag/session-cache/internal/storage"
	"github.com/reciperag/session-cache/internal/storage/memory"
)

const testJWTSecret = "test-secret-key-with-32-chars!!"

type fixture struct {
	server    *httptest.Server
	client    *http.Client
	ephemeral *memory.Provider
	persist   *memory.Provider
	upstream  *httptest.Server
	fetches   *atomic.Int64
}

// newFixture stands up the full router over memory backends, with a stub
// conversation API behind the remote client.
func newFixture(t *testing.T, upstream http.HandlerFunc) *fixture {
	t.Helper()

	fetches := &atomic.Int64{}
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		if upstream == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		upstream(w, r)
	}))
	t.Cleanup(up.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{MiddlewareTimeout: 10 * time.Second},
		Auth:   config.AuthConfig{JWTSecret: testJWTSecret, AccessTokenTTL: 15 * time.Minute},
	}

	eph := memory.New(storage.ClassEphemeral, 0)
	per := memory.New(storage.ClassPersistent, 0)
	router := NewRouter(cfg, Deps{
		Selector:     storage.Selector{Ephemeral: eph, Persistent: per},
		RemoteClient: remote.NewClient(up.URL, 5*time.Second),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	assert.NoError(t, err)

	return &fixture{
		server:    srv,
		client:    &http.Client{Jar: jar},
		ephemeral: eph,
		persist:   per,
		upstream:  up,
		fetches:   fetches,
	}
}

type envelope struct {
	Success bool                 `json:"success"`
	Data    domain.SessionRecord `json:"data"`
	Error   any                  `json:"error"`
}

func (f *fixture) do(t *testing.T, method, path string, body any, header http.Header) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.server.URL+"/api/v1"+path, reader)
	assert.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	assert.NoError(t, err)
	return resp, buf.Bytes()
}

func decodeSession(t *testing.T, raw []byte) domain.SessionRecord {
	t.Helper()
	var env envelope
	assert.NoError(t, json.Unmarshal(raw, &env))
	return env.Data
}

func TestRouter_Health(t *testing.T) {
	f := newFixture(t, nil)

	resp, _ := f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_GuestSessionLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	resp, _ := f.do(t, http.MethodGet, "/session", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw := f.do(t, http.MethodPost, "/session", map[string]any{"ingredients": []string{"egg", "flour"}}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeSession(t, raw)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []string{"egg", "flour"}, created.Ingredients)

	// The cookie jar carries the minted guest id, so the follow-up read
	// lands on the same record.
	resp, raw = f.do(t, http.MethodGet, "/session", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, decodeSession(t, raw).ID)

	// Guest data lives in the ephemeral backend only.
	assert.Equal(t, 1, f.ephemeral.Len())
	assert.Equal(t, 0, f.persist.Len())

	resp, _ = f.do(t, http.MethodDelete, "/session", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/session", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_SessionMutations(t *testing.T) {
	f := newFixture(t, nil)

	resp, raw := f.do(t, http.MethodPut, "/session/ingredients", map[string]any{"ingredients": []string{"tomato"}}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"tomato"}, decodeSession(t, raw).Ingredients)

	resp, raw = f.do(t, http.MethodPost, "/session/messages", map[string]any{"sender": "user", "content": "make pancakes"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decodeSession(t, raw)
	assert.Len(t, rec.Messages, 1)
	assert.Equal(t, domain.SenderUser, rec.Messages[0].Sender)
	assert.Equal(t, domain.StatusSent, rec.Messages[0].DeliveryStatus)

	resp, raw = f.do(t, http.MethodPut, "/session/recipe", map[string]any{
		"title":       "Omelette",
		"ingredients": []any{"2 eggs", map[string]any{"name": "butter", "quantity": "10g"}},
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	rec = decodeSession(t, raw)
	assert.Equal(t, "Omelette", rec.CurrentRecipe.Title)
	assert.Equal(t, []domain.Ingredient{
		{Name: "2 eggs"},
		{Name: "butter", Quantity: "10g"},
	}, rec.CurrentRecipe.Ingredients)

	resp, raw = f.do(t, http.MethodPost, "/session/refinements", map[string]any{"text": "less salt"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	rec = decodeSession(t, raw)
	assert.Len(t, rec.Refinements, 1)
	assert.Equal(t, "less salt", rec.Refinements[0].Text)
}

func TestRouter_MessageValidation(t *testing.T) {
	f := newFixture(t, nil)

	resp, _ := f.do(t, http.MethodPost, "/session/messages", map[string]any{"sender": "bot", "content": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/session/messages", map[string]any{"sender": "user"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_BearerTokenRoutesToPersistentBackend(t *testing.T) {
	f := newFixture(t, nil)

	token := signTestToken(t, uuid.New())
	header := http.Header{"Authorization": []string{"Bearer " + token}}

	resp, _ := f.do(t, http.MethodPost, "/session", nil, header)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, 0, f.ephemeral.Len())
	assert.Equal(t, 1, f.persist.Len())
}

func TestRouter_InvalidTokenDegradesToGuest(t *testing.T) {
	f := newFixture(t, nil)

	header := http.Header{"Authorization": []string{"Bearer not-a-token"}}
	resp, _ := f.do(t, http.MethodPost, "/session", nil, header)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, 1, f.ephemeral.Len())
	assert.Equal(t, 0, f.persist.Len())
}

func TestRouter_ChatMessageFlow(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat/message", r.URL.Path)
		w.Write([]byte(`{
			"message_id": "m-7",
			"response": "Here is a pancake recipe.",
			"recipe": {"title": "Pancakes", "ingredients": ["2 eggs"], "instructions": ["mix", "fry"]}
		}`))
	})

	resp, raw := f.do(t, http.MethodPost, "/chat/message", map[string]any{"message": "make pancakes"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var env struct {
		Data struct {
			Reply   string               `json:"reply"`
			Session domain.SessionRecord `json:"session"`
		} `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "Here is a pancake recipe.", env.Data.Reply)
	assert.Len(t, env.Data.Session.Messages, 2)
	assert.Equal(t, domain.SenderUser, env.Data.Session.Messages[0].Sender)
	assert.Equal(t, domain.SenderAI, env.Data.Session.Messages[1].Sender)
	assert.Equal(t, domain.StatusDelivered, env.Data.Session.Messages[1].DeliveryStatus)
	assert.Equal(t, "Pancakes", env.Data.Session.CurrentRecipe.Title)
}

func TestRouter_ChatUpstreamFailure(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	})

	resp, _ := f.do(t, http.MethodPost, "/chat/message", map[string]any{"message": "hi"}, nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	// The user's message is still recorded, but marked as a failed
	// delivery rather than a sent one.
	resp, raw := f.do(t, http.MethodGet, "/session", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decodeSession(t, raw)
	assert.Len(t, rec.Messages, 1)
	assert.Equal(t, domain.StatusError, rec.Messages[0].DeliveryStatus)
}

func TestRouter_ResumeImportsRemoteForUsers(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat/sessions/sess-42", r.URL.Path)
		w.Write([]byte(`{
			"session_id": "sess-42",
			"messages_history": [
				{"role": "user", "parts": ["hi"]},
				{"role": "model", "parts": ["hello", "!"]}
			]
		}`))
	})

	header := http.Header{"Authorization": []string{"Bearer " + signTestToken(t, uuid.New())}}
	resp, raw := f.do(t, http.MethodPost, "/session/resume/sess-42", nil, header)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	rec := decodeSession(t, raw)
	assert.Equal(t, "sess-42", rec.ID)
	assert.Len(t, rec.Messages, 2)
	assert.Equal(t, "hello !", rec.Messages[1].Content)
	assert.Equal(t, int64(1), f.fetches.Load())
}

func TestRouter_ResumeSkipsRemoteForGuests(t *testing.T) {
	f := newFixture(t, nil)

	resp, raw := f.do(t, http.MethodPost, "/session/resume/sess-42", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	rec := decodeSession(t, raw)
	assert.Equal(t, "sess-42", rec.ID)
	assert.Empty(t, rec.Messages)
	assert.Equal(t, int64(0), f.fetches.Load())
}

func signTestToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	mgr := security.NewJWTManager(testJWTSecret, 15*time.Minute)
	token, err := mgr.GenerateAccessToken(userID, "user@example.com")
	assert.NoError(t, err)
	return token
}
