package chats_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auxillium/backend/internal/auth"
	"github.com/auxillium/backend/internal/handler"
	"github.com/auxillium/backend/internal/handler/accounts"
	"github.com/auxillium/backend/internal/handler/chats"
	"github.com/auxillium/backend/internal/handler/intake"
	"github.com/auxillium/backend/internal/handler/stream"
	"github.com/auxillium/backend/internal/handler/worklist"
	"github.com/auxillium/backend/internal/model/account"
	"github.com/auxillium/backend/internal/model/chat"
	"github.com/auxillium/backend/internal/realtime"
	"github.com/auxillium/backend/internal/service/lifecycle"
	"github.com/auxillium/backend/internal/service/queue"
	"github.com/auxillium/backend/internal/store"
)

type testServer struct {
	router  http.Handler
	authSvc *auth.Service
	ctrl    *lifecycle.Controller
}

// setupServer wires the full router over the in-memory store, with the
// assistant disabled so responses are deterministic.
func setupServer(t *testing.T) *testServer {
	t.Helper()

	broker := realtime.NewBroker()
	st := store.NewMemory(broker)
	tokens := auth.NewTokenManager([]byte("test-secret"), time.Hour)
	authSvc := auth.NewService(st, tokens)
	ctrl := lifecycle.NewController(st, nil, time.Second)
	queueSvc := queue.NewService(st)

	router := handler.NewRouter(handler.Dependencies{
		Auth:     accounts.New(authSvc),
		Chats:    chats.New(ctrl),
		Worklist: worklist.New(queueSvc),
		Intake:   intake.New(),
		Stream:   stream.New(broker, ctrl, queueSvc),
		Sessions: authSvc,
	})

	return &testServer{router: router, authSvc: authSvc, ctrl: ctrl}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader([]byte(`{}`))
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func (s *testServer) patientToken(t *testing.T) string {
	t.Helper()
	_, token, err := s.authSvc.Anonymous(t.Context())
	require.NoError(t, err)
	return token
}

func (s *testServer) psychologistToken(t *testing.T, email string) string {
	t.Helper()
	_, token, err := s.authSvc.Register(t.Context(), auth.RegisterInput{
		FullName: "Dr. Teste",
		Email:    email,
		Password: "segredo",
		Role:     account.RolePsychologist,
		CRP:      "06/12345",
	})
	require.NoError(t, err)
	return token
}

func TestChatRoutesRequireSession(t *testing.T) {
	srv := setupServer(t)

	rec := srv.do(t, http.MethodPost, "/api/chats", "", map[string]string{"initialEmotion": "Triste"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/queue", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFullChatLifecycleOverHTTP(t *testing.T) {
	srv := setupServer(t)
	patient := srv.patientToken(t)
	psychologist := srv.psychologistToken(t, "dr@example.com")

	// Patient opens a chat.
	rec := srv.do(t, http.MethodPost, "/api/chats", patient, map[string]string{
		"initialEmotion": "Ansioso",
		"initialMessage": "preciso conversar",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeJSON[chat.Chat](t, rec)
	assert.Equal(t, chat.StatusWaiting, created.Status)

	// The welcome message is already there.
	rec = srv.do(t, http.MethodGet, "/api/chats/"+created.ID+"/messages", patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msgs := decodeJSON[[]chat.Message](t, rec)
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.SenderAI, msgs[0].SenderType)

	// The chat shows up in the professional queue.
	rec = srv.do(t, http.MethodGet, "/api/queue", psychologist, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	open := decodeJSON[[]chat.Chat](t, rec)
	require.Len(t, open, 1)
	assert.Equal(t, created.ID, open[0].ID)

	// The psychologist accepts and the hand-off lands.
	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/accept", psychologist, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	accepted := decodeJSON[chat.Chat](t, rec)
	assert.Equal(t, chat.StatusActive, accepted.Status)

	// Both parties exchange messages.
	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/messages", psychologist, map[string]string{"content": "Olá, como você está?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/messages", patient, map[string]string{"content": "melhor agora"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The psychologist ends the session.
	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/end", psychologist, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ended := decodeJSON[chat.Chat](t, rec)
	assert.Equal(t, chat.StatusCompleted, ended.Status)

	// Sending into a completed chat is a conflict.
	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/messages", patient, map[string]string{"content": "alô?"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Patient leaves feedback, psychologist records the note.
	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/feedback", patient, map[string]any{"rating": 5, "comment": "ajudou muito"})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/notes", psychologist, map[string]any{
		"summary":        "sessão de acolhimento",
		"followUpNeeded": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/api/chats/"+created.ID+"/notes", psychologist, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	note := decodeJSON[chat.Note](t, rec)
	assert.True(t, note.FollowUpNeeded)

	// The chat moved to both users' history.
	rec = srv.do(t, http.MethodGet, "/api/history", patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeJSON[[]chat.Chat](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, created.ID, history[0].ID)
}

func TestAcceptConflictAndRoleGuardsOverHTTP(t *testing.T) {
	srv := setupServer(t)
	patient := srv.patientToken(t)
	first := srv.psychologistToken(t, "first@example.com")
	second := srv.psychologistToken(t, "second@example.com")

	rec := srv.do(t, http.MethodPost, "/api/chats", patient, map[string]string{"initialEmotion": "Triste"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeJSON[chat.Chat](t, rec)

	// A patient cannot accept.
	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/accept", patient, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/accept", first, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The second accept loses the race.
	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/accept", second, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The losing psychologist is no participant of the active chat.
	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/messages", second, map[string]string{"content": "posso ajudar?"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/chats/"+created.ID, second, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSendMessageValidation(t *testing.T) {
	srv := setupServer(t)
	patient := srv.patientToken(t)

	rec := srv.do(t, http.MethodPost, "/api/chats", patient, map[string]string{"initialEmotion": "Confuso"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeJSON[chat.Chat](t, rec)

	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/messages", patient, map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/chats/unknown-chat/messages", patient, map[string]string{"content": "oi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeedbackValidationOverHTTP(t *testing.T) {
	srv := setupServer(t)
	patient := srv.patientToken(t)

	rec := srv.do(t, http.MethodPost, "/api/chats", patient, map[string]string{"initialEmotion": "Vazio"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeJSON[chat.Chat](t, rec)

	// Feedback before completion is a conflict.
	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/feedback", patient, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/end", patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/feedback", patient, map[string]any{"rating": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/feedback", patient, map[string]any{"rating": 4})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/chats/"+created.ID+"/feedback", patient, map[string]any{"rating": 4})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPatientQueueSeparation(t *testing.T) {
	srv := setupServer(t)
	patientA := srv.patientToken(t)
	patientB := srv.patientToken(t)

	rec := srv.do(t, http.MethodPost, "/api/chats", patientA, map[string]string{"initialEmotion": "Triste"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeJSON[chat.Chat](t, rec)

	// A queue only shows the caller's own chats.
	rec = srv.do(t, http.MethodGet, "/api/queue", patientB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON[[]chat.Chat](t, rec))

	rec = srv.do(t, http.MethodGet, "/api/queue", patientA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decodeJSON[[]chat.Chat](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID)

	// Nor may another patient read the transcript.
	rec = srv.do(t, http.MethodGet, "/api/chats/"+created.ID+"/messages", patientB, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
