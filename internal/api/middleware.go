package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prudhvinik1/inkboard/internal/models"
	"github.com/prudhvinik1/inkboard/internal/services"
	"github.com/prudhvinik1/inkboard/internal/whiteboard"
	"go.uber.org/zap"
)

const headerAPIKey = "X-API-Key"

type ctxKey int

const (
	ctxParticipant ctxKey = iota
	ctxToken
	ctxSession
)

func participantFrom(ctx context.Context) models.Participant {
	p, _ := ctx.Value(ctxParticipant).(models.Participant)
	return p
}

func tokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(ctxToken).(string)
	return t
}

func sessionFrom(ctx context.Context) string {
	s, _ := ctx.Value(ctxSession).(string)
	return s
}

// requireParticipant accepts a bearer token, or ?token= for browsers that
// cannot set headers on a websocket upgrade.
func (h *Handler) requireParticipant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r.Header.Get("Authorization"))
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		}
		if token == "" {
			render.Render(w, r, errUnauthenticated("authorization header is missing or invalid"))
			return
		}

		claims, err := h.auth.VerifyToken(r.Context(), token)
		if errors.Is(err, services.ErrInvalidToken) {
			render.Render(w, r, errUnauthenticated("invalid token"))
			return
		}
		if err != nil {
			h.log.Error("token verification failed", zap.Error(err))
			render.Render(w, r, errInternal)
			return
		}

		ctx := context.WithValue(r.Context(), ctxParticipant, claims.Participant)
		ctx = context.WithValue(ctx, ctxToken, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(headerAPIKey)
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.opts.IssuerAPIKey)) != 1 {
			render.Render(w, r, errUnauthenticated("invalid api key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionFromURL(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		if err := whiteboard.ValidateSessionID(sessionID); err != nil {
			render.Render(w, r, errInvalidRequest(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxSession, sessionID)))
	})
}

func fixedSession(sessionID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxSession, sessionID)))
		})
	}
}

func extractBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
