// Package api exposes whiteboards over HTTP and websockets.
package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prudhvinik1/inkboard/internal/models"
	"github.com/prudhvinik1/inkboard/internal/repositories"
	"github.com/prudhvinik1/inkboard/internal/services"
	"github.com/prudhvinik1/inkboard/internal/whiteboard"
	"go.uber.org/zap"
)

// maxRequestBody fits a stroke at the path point limit with room to spare.
const maxRequestBody = 1 << 20

type Whiteboards interface {
	Append(ctx context.Context, sessionID string, event *models.StrokeEvent) error
	ClearAll(ctx context.Context, sessionID string, actor models.Participant) (int64, error)
	Snapshot(ctx context.Context, sessionID string) ([]models.StrokeEvent, error)
	Subscribe(ctx context.Context, sessionID string, fn func([]models.StrokeEvent)) (*whiteboard.Subscription, error)
}

type TokenAuthority interface {
	IssueToken(ctx context.Context, p models.Participant) (*services.IssuedToken, error)
	VerifyToken(ctx context.Context, token string) (*services.TokenClaims, error)
	Revoke(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, participantID string) error
	ListSessions(ctx context.Context, participantID string) ([]*models.Session, error)
}

type Options struct {
	IssuerAPIKey     string
	DefaultSessionID string
	AllowedOrigins   []string
}

type Handler struct {
	boards   Whiteboards
	auth     TokenAuthority
	presence repositories.PresenceRepository
	opts     Options
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandler(boards Whiteboards, auth TokenAuthority, presence repositories.PresenceRepository, opts Options, log *zap.Logger) *Handler {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	h := &Handler{
		boards:   boards,
		auth:     auth,
		presence: presence,
		opts:     opts,
		log:      log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(maxRequestBody))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", headerAPIKey},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(h.requireAPIKey).Post("/tokens", h.issueToken)
		r.With(h.requireParticipant).Delete("/tokens/current", h.revokeCurrentToken)
		r.With(h.requireAPIKey).Get("/participants/{participantID}/tokens", h.listParticipantTokens)
		r.With(h.requireAPIKey).Delete("/participants/{participantID}/tokens", h.revokeParticipantTokens)
	})

	r.Route("/whiteboards/{sessionID}", func(r chi.Router) {
		r.Use(sessionFromURL)
		h.boardRoutes(r)
	})

	// single-board routes kept for clients that predate sessions
	r.Route("/whiteboard", func(r chi.Router) {
		r.Use(fixedSession(h.opts.DefaultSessionID))
		h.boardRoutes(r)
	})

	return r
}

func (h *Handler) boardRoutes(r chi.Router) {
	r.Use(h.requireParticipant)
	r.Get("/strokes", h.listStrokes)
	r.Post("/strokes", h.appendStroke)
	r.Delete("/strokes", h.clearStrokes)
	r.Get("/render.png", h.renderPNG)
	r.Get("/participants", h.listParticipants)
	r.Get("/participants/{participantID}", h.getParticipant)
	r.Get("/ws", h.serveWS)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.opts.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, origin)
}
