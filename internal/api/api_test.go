package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/api"
	"github.com/yourname/focustracker/internal/auth"
	"github.com/yourname/focustracker/internal/storage"
)

// tokens maps bearer tokens to user ids.
type tokens map[string]string

func (t tokens) Authenticate(_ context.Context, token string) (*internal.User, error) {
	if id, ok := t[token]; ok {
		return &internal.User{ID: id}, nil
	}
	return nil, auth.ErrInvalidToken
}

type envelope struct {
	Data  json.RawMessage    `json:"data"`
	Meta  map[string]any     `json:"meta"`
	Error *internal.AppError `json:"error"`
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	repos, err := storage.NewFileRepositories(
		filepath.Join(dir, "sessions.json"),
		filepath.Join(dir, "events.json"),
		filepath.Join(dir, "users.json"),
		internal.NopLogger(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return api.NewRouter(api.NewApp(internal.NopLogger(), repos), tokens{"TOKEN-1": "U1", "TOKEN-2": "U2"})
}

func do(t *testing.T, r http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func createSession(t *testing.T, r http.Handler, token, body string) internal.Session {
	t.Helper()
	w, env := do(t, r, http.MethodPost, "/api/sessions", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var s internal.Session
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s
}

func TestHealthz(t *testing.T) {
	r := setupRouter(t)
	w, env := do(t, r, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDPropagated(t *testing.T) {
	r := setupRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestUnauthenticated(t *testing.T) {
	r := setupRouter(t)
	for _, path := range []string{"/api/sessions", "/api/events/x"} {
		w, env := do(t, r, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, 401, env.Error.Code)

		w, _ = do(t, r, http.MethodGet, path, "bogus", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}

func TestPostSession(t *testing.T) {
	r := setupRouter(t)

	s := createSession(t, r, "TOKEN-1", "")
	assert.Equal(t, internal.DefaultSessionTitle, s.Title)
	assert.Equal(t, "U1", s.UserID)

	s = createSession(t, r, "TOKEN-1", `{"title":"Essay","startTime":"2025-03-01T09:00:00Z","endTime":"2025-03-01T09:30:00Z","duration":1800,
		"distractions":[{"time":"2025-03-01T09:10:00Z","reason":"Email","duration":"1m 0s","durationMs":60000}],"warnings":1}`)
	assert.Equal(t, "Essay", s.Title)
	require.Len(t, s.Distractions, 1)
	assert.Equal(t, int64(60000), s.Distractions[0].DurationMs)
	assert.Empty(t, s.Check())

	w, env := do(t, r, http.MethodPost, "/api/sessions", "TOKEN-1", `{"warnings":-2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error.Message, "warnings")

	w, _ = do(t, r, http.MethodPost, "/api/sessions", "TOKEN-1", `{"warnings":"many"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostSessionClientPayload(t *testing.T) {
	r := setupRouter(t)

	// Shape written by the browser extension: locale clock strings for
	// distraction times and no consistency guarantees on duration.
	s := createSession(t, r, "TOKEN-1", `{"title":"Focus Session","duration":-5,"warnings":0,
		"startTime":"2025-03-01T09:00:00.000Z","endTime":"2025-03-01T09:25:00.000Z","date":"3/1/2025",
		"distractions":[{"time":"10:30:15 AM","reason":"Social Media","duration":"0m 45s","durationMs":45000}]}`)
	assert.Equal(t, int64(-5), s.Duration)
	assert.Equal(t, "3/1/2025", s.Date)
	require.Len(t, s.Distractions, 1)
	assert.Equal(t, "10:30:15 AM", s.Distractions[0].Time)

	w, env := do(t, r, http.MethodGet, "/api/sessions/"+s.ID, "TOKEN-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stored internal.Session
	require.NoError(t, json.Unmarshal(env.Data, &stored))
	assert.Equal(t, "10:30:15 AM", stored.Distractions[0].Time)
}

func TestListAndGetSessions(t *testing.T) {
	r := setupRouter(t)
	first := createSession(t, r, "TOKEN-1", `{"title":"one"}`)
	second := createSession(t, r, "TOKEN-1", `{"title":"two"}`)
	createSession(t, r, "TOKEN-2", `{"title":"other"}`)

	w, env := do(t, r, http.MethodGet, "/api/sessions", "TOKEN-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []internal.Session
	require.NoError(t, json.Unmarshal(env.Data, &sessions))
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID)
	assert.Equal(t, first.ID, sessions[1].ID)

	w, _ = do(t, r, http.MethodGet, "/api/sessions/"+first.ID, "TOKEN-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, r, http.MethodGet, "/api/sessions/"+first.ID, "TOKEN-2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, env = do(t, r, http.MethodGet, "/api/sessions", "TOKEN-3-unknown", "")
	assert.NotNil(t, env.Error)
}

func TestEmptyListsAreArrays(t *testing.T) {
	r := setupRouter(t)
	_, env := do(t, r, http.MethodGet, "/api/sessions", "TOKEN-1", "")
	assert.JSONEq(t, `[]`, string(env.Data))
	_, env = do(t, r, http.MethodGet, "/api/events/nothing", "TOKEN-1", "")
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestPostEventValidation(t *testing.T) {
	r := setupRouter(t)
	s := createSession(t, r, "TOKEN-1", "")

	cases := map[string]string{
		"missing session":  `{"type":"IDLE"}`,
		"missing type":     `{"sessionId":"` + s.ID + `"}`,
		"unknown type":     `{"sessionId":"` + s.ID + `","type":"NAP"}`,
		"bad severity":     `{"sessionId":"` + s.ID + `","type":"IDLE","severity":"urgent"}`,
		"meta not object":  `{"sessionId":"` + s.ID + `","type":"IDLE","meta":[1,2]}`,
		"message too long": `{"sessionId":"` + s.ID + `","type":"IDLE","message":"` + strings.Repeat("m", 501) + `"}`,
		"not json":         `{`,
		"far future":       `{"sessionId":"` + s.ID + `","type":"IDLE","timestamp":"2300-01-01T00:00:00Z"}`,
	}
	for name, body := range cases {
		w, env := do(t, r, http.MethodPost, "/api/events", "TOKEN-1", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.NotNil(t, env.Error, name)
	}

	w, _ := do(t, r, http.MethodPost, "/api/events", "TOKEN-1", `{"sessionId":"missing","type":"IDLE"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResolveEvent(t *testing.T) {
	r := setupRouter(t)
	s := createSession(t, r, "TOKEN-1", "")
	w, env := do(t, r, http.MethodPost, "/api/events", "TOKEN-1", `{"sessionId":"`+s.ID+`","type":"WARNING","severity":"high"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var e internal.Event
	require.NoError(t, json.Unmarshal(env.Data, &e))
	assert.False(t, e.Resolved)
	assert.Equal(t, internal.SeverityHigh, e.Severity)

	w, _ = do(t, r, http.MethodPatch, "/api/events/"+e.ID+"/resolve", "TOKEN-2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = do(t, r, http.MethodPatch, "/api/events/"+e.ID+"/resolve", "TOKEN-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &e))
	assert.True(t, e.Resolved)
}

func TestFocusSessionScenario(t *testing.T) {
	r := setupRouter(t)
	s1 := createSession(t, r, "TOKEN-1",
		`{"startTime":"2025-03-01T09:00:00Z","endTime":"2025-03-01T09:30:00Z","duration":1800}`)

	w, _ := do(t, r, http.MethodPost, "/api/events", "TOKEN-1",
		`{"sessionId":"`+s1.ID+`","type":"FOCUS_START","timestamp":"2025-03-01T09:00:00Z","meta":{"source":"extension"}}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = do(t, r, http.MethodPost, "/api/events", "TOKEN-1",
		`{"sessionId":"`+s1.ID+`","type":"BREAK","timestamp":"2025-03-01T09:10:00Z"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := do(t, r, http.MethodGet, "/api/events/"+s1.ID, "TOKEN-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var events []internal.Event
	require.NoError(t, json.Unmarshal(env.Data, &events))
	require.Len(t, events, 2)
	assert.Equal(t, internal.EventFocusStart, events[0].Type)
	assert.Equal(t, internal.EventBreak, events[1].Type)
	source, _ := events[0].Meta["source"].AsString()
	assert.Equal(t, "extension", source)
	assert.Empty(t, events[1].Meta)
	assert.Equal(t, internal.SeverityLow, events[1].Severity)

	_, env = do(t, r, http.MethodGet, "/api/events/"+s1.ID, "TOKEN-2", "")
	assert.JSONEq(t, `[]`, string(env.Data))

	w, env = do(t, r, http.MethodPost, "/api/events", "TOKEN-2", `{"sessionId":"`+s1.ID+`","type":"IDLE"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Session not found for this user", env.Error.Message)

	w, _ = do(t, r, http.MethodDelete, "/api/sessions/"+s1.ID, "TOKEN-2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = do(t, r, http.MethodDelete, "/api/sessions/"+s1.ID, "TOKEN-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Session deleted successfully", env.Meta["message"])

	w, _ = do(t, r, http.MethodDelete, "/api/sessions/"+s1.ID, "TOKEN-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, env = do(t, r, http.MethodGet, "/api/events/"+s1.ID, "TOKEN-1", "")
	require.NoError(t, json.Unmarshal(env.Data, &events))
	assert.Len(t, events, 2, "events outlive their session")
}
