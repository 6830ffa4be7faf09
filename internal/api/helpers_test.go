package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prudhvinik1/inkboard/internal/models"
	"github.com/prudhvinik1/inkboard/internal/repositories"
	"github.com/prudhvinik1/inkboard/internal/services"
	"github.com/prudhvinik1/inkboard/internal/whiteboard"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testAPIKey = "issuer-key"

var (
	student = models.Participant{ID: "s-1", Name: "Sam", Role: models.RoleStudent}
	teacher = models.Participant{ID: "t-1", Name: "Ms. Rivera", Role: models.RoleTeacher}
)

type fakeAuthority struct {
	mu     sync.Mutex
	n      int
	tokens map[string]models.Participant
}

func newFakeAuthority() *fakeAuthority {
	return &fakeAuthority{tokens: make(map[string]models.Participant)}
}

func (a *fakeAuthority) IssueToken(_ context.Context, p models.Participant) (*services.IssuedToken, error) {
	if p.ID == "" || !p.Role.Valid() {
		return nil, services.ErrInvalidParticipant
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.n++
	tok := fmt.Sprintf("tok-%d", a.n)
	a.tokens[tok] = p
	return &services.IssuedToken{Token: tok, SessionID: tok, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (a *fakeAuthority) ListSessions(_ context.Context, participantID string) ([]*models.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*models.Session
	for tok, p := range a.tokens {
		if p.ID == participantID {
			out = append(out, &models.Session{ID: tok, ParticipantID: p.ID, Role: p.Role})
		}
	}
	return out, nil
}

func (a *fakeAuthority) VerifyToken(_ context.Context, token string) (*services.TokenClaims, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.tokens[token]
	if !ok {
		return nil, services.ErrInvalidToken
	}
	return &services.TokenClaims{Participant: p, SessionID: token}, nil
}

func (a *fakeAuthority) Revoke(_ context.Context, token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.tokens[token]; !ok {
		return services.ErrInvalidToken
	}
	delete(a.tokens, token)
	return nil
}

func (a *fakeAuthority) RevokeAll(_ context.Context, participantID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for tok, p := range a.tokens {
		if p.ID == participantID {
			delete(a.tokens, tok)
		}
	}
	return nil
}

type memPresence struct {
	mu    sync.Mutex
	items map[string]map[string]models.Presence
}

func newMemPresence() *memPresence {
	return &memPresence{items: make(map[string]map[string]models.Presence)}
}

func (m *memPresence) SetPresence(_ context.Context, p *models.Presence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[p.SessionID] == nil {
		m.items[p.SessionID] = make(map[string]models.Presence)
	}
	p.Status = string(models.StatusOnline)
	p.LastSeen = time.Now()
	m.items[p.SessionID][p.ParticipantID] = *p
	return nil
}

func (m *memPresence) GetPresence(_ context.Context, sessionID, participantID string) (*models.Presence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[sessionID][participantID]
	if !ok {
		return &models.Presence{SessionID: sessionID, ParticipantID: participantID, Status: string(models.StatusOffline)}, nil
	}
	return &p, nil
}

func (m *memPresence) DeletePresence(_ context.Context, sessionID, participantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items[sessionID], participantID)
	return nil
}

func (m *memPresence) ListPresence(_ context.Context, sessionID string) ([]models.Presence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Presence
	for _, p := range m.items[sessionID] {
		out = append(out, p)
	}
	return out, nil
}

var _ repositories.PresenceRepository = (*memPresence)(nil)

type testEnv struct {
	server   *httptest.Server
	boards   *whiteboard.Service
	auth     *fakeAuthority
	presence *memPresence
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t)
	env := &testEnv{
		boards: whiteboard.NewService(
			repositories.NewMemoryStrokeEventRepository(),
			whiteboard.NewLocalNotifier(),
			nil,
			whiteboard.ClearTeachersOnly,
			log,
		),
		auth:     newFakeAuthority(),
		presence: newMemPresence(),
	}
	h := NewHandler(env.boards, env.auth, env.presence, Options{
		IssuerAPIKey:     testAPIKey,
		DefaultSessionID: "main",
	}, log)
	env.server = httptest.NewServer(h.Routes())
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) token(t *testing.T, p models.Participant) string {
	t.Helper()
	issued, err := e.auth.IssueToken(context.Background(), p)
	require.NoError(t, err)
	return issued.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func strokeBody(color string, width int, points ...models.Point) map[string]any {
	return map[string]any{
		"type":       "draw",
		"path":       points,
		"color":      color,
		"line_width": width,
	}
}
