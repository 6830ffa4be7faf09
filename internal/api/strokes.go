package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/prudhvinik1/inkboard/internal/models"
	"github.com/prudhvinik1/inkboard/internal/whiteboard"
	"go.uber.org/zap"
)

const (
	defaultRenderWidth  = 1280
	defaultRenderHeight = 720
	maxRenderSide       = 4096
)

type StrokeRequest struct {
	ID        uuid.UUID         `json:"id"`
	Type      models.StrokeType `json:"type"`
	Path      []models.Point    `json:"path"`
	Color     string            `json:"color"`
	LineWidth int               `json:"line_width"`
}

func (s *StrokeRequest) Bind(r *http.Request) error {
	if len(s.Path) == 0 {
		return errors.New("path must contain at least one point")
	}
	return nil
}

func (s *StrokeRequest) event(author models.Participant) *models.StrokeEvent {
	return &models.StrokeEvent{
		ID:        s.ID,
		AuthorID:  author.ID,
		Type:      s.Type,
		Path:      s.Path,
		Color:     s.Color,
		LineWidth: s.LineWidth,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	resp, clientErr := errFor(err)
	if !clientErr {
		h.log.Error(msg, zap.String("session_id", sessionFrom(r.Context())), zap.Error(err))
	}
	render.Render(w, r, resp)
}

func (h *Handler) listStrokes(w http.ResponseWriter, r *http.Request) {
	events, err := h.boards.Snapshot(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "failed to list strokes")
		return
	}
	if events == nil {
		events = []models.StrokeEvent{}
	}
	render.JSON(w, r, events)
}

func (h *Handler) appendStroke(w http.ResponseWriter, r *http.Request) {
	var req StrokeRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, errInvalidRequest(err))
		return
	}

	ev := req.event(participantFrom(r.Context()))
	if err := h.boards.Append(r.Context(), sessionFrom(r.Context()), ev); err != nil {
		h.fail(w, r, err, "failed to append stroke")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ev)
}

func (h *Handler) clearStrokes(w http.ResponseWriter, r *http.Request) {
	if confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); !confirmed {
		render.Render(w, r, errConfirmationRequired())
		return
	}

	deleted, err := h.boards.ClearAll(r.Context(), sessionFrom(r.Context()), participantFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "failed to clear whiteboard")
		return
	}
	render.JSON(w, r, render.M{"deleted": deleted})
}

// renderPNG replays the log server-side, for thumbnails and exports.
func (h *Handler) renderPNG(w http.ResponseWriter, r *http.Request) {
	width, err := dimension(r, "width", defaultRenderWidth)
	if err != nil {
		render.Render(w, r, errInvalidRequest(err))
		return
	}
	height, err := dimension(r, "height", defaultRenderHeight)
	if err != nil {
		render.Render(w, r, errInvalidRequest(err))
		return
	}

	events, err := h.boards.Snapshot(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "failed to load strokes")
		return
	}

	canvas := whiteboard.NewRasterCanvas(width, height)
	whiteboard.Replay(canvas, events)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := canvas.EncodePNG(w); err != nil {
		h.log.Warn("failed to write png", zap.Error(err))
	}
}

func dimension(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 || v > maxRenderSide {
		return 0, errors.New(name + " must be between 1 and " + strconv.Itoa(maxRenderSide))
	}
	return v, nil
}

func (h *Handler) listParticipants(w http.ResponseWriter, r *http.Request) {
	list, err := h.presence.ListPresence(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "failed to list participants")
		return
	}
	if list == nil {
		list = []models.Presence{}
	}
	render.JSON(w, r, list)
}

// getParticipant reports offline for participants without a live heartbeat.
func (h *Handler) getParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := h.presence.GetPresence(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "participantID"))
	if err != nil {
		h.fail(w, r, err, "failed to get participant")
		return
	}
	render.JSON(w, r, p)
}
