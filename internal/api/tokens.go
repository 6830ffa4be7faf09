package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prudhvinik1/inkboard/internal/models"
)

type IssueTokenRequest struct {
	ParticipantID string      `json:"participant_id"`
	Name          string      `json:"name"`
	Role          models.Role `json:"role"`
}

func (req *IssueTokenRequest) Bind(r *http.Request) error {
	if req.ParticipantID == "" {
		return errors.New("participant_id is required")
	}
	if !req.Role.Valid() {
		return errors.New("role must be student or teacher")
	}
	return nil
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	var req IssueTokenRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, errInvalidRequest(err))
		return
	}

	issued, err := h.auth.IssueToken(r.Context(), models.Participant{
		ID:   req.ParticipantID,
		Name: req.Name,
		Role: req.Role,
	})
	if err != nil {
		h.fail(w, r, err, "failed to issue token")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, issued)
}

func (h *Handler) revokeCurrentToken(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Revoke(r.Context(), tokenFrom(r.Context())); err != nil {
		h.fail(w, r, err, "failed to revoke token")
		return
	}
	render.NoContent(w, r)
}

func (h *Handler) revokeParticipantTokens(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.RevokeAll(r.Context(), chi.URLParam(r, "participantID")); err != nil {
		h.fail(w, r, err, "failed to revoke tokens")
		return
	}
	render.NoContent(w, r)
}

func (h *Handler) listParticipantTokens(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.auth.ListSessions(r.Context(), chi.URLParam(r, "participantID"))
	if err != nil {
		h.fail(w, r, err, "failed to list tokens")
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	render.JSON(w, r, sessions)
}
