package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/prudhvinik1/inkboard/internal/services"
	"github.com/prudhvinik1/inkboard/internal/whiteboard"
)

type ErrResponse struct {
	HTTPStatus int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatus)
	return nil
}

var errInternal = &ErrResponse{HTTPStatus: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}

func errUnauthenticated(msg string) render.Renderer {
	return &ErrResponse{HTTPStatus: http.StatusUnauthorized, Code: "UNAUTHENTICATED", Message: msg}
}

func errInvalidRequest(err error) render.Renderer {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &ErrResponse{HTTPStatus: http.StatusRequestEntityTooLarge, Code: "TOO_LARGE", Message: "request body too large"}
	}
	return &ErrResponse{HTTPStatus: http.StatusBadRequest, Code: "INVALID_REQUEST", Message: err.Error()}
}

func errConfirmationRequired() render.Renderer {
	return &ErrResponse{
		HTTPStatus: http.StatusPreconditionRequired,
		Code:       "CONFIRMATION_REQUIRED",
		Message:    "clearing the whiteboard deletes every stroke; repeat with confirm=true",
	}
}

// errFor maps domain errors to responses. The bool is false for errors that
// are not the client's fault.
func errFor(err error) (*ErrResponse, bool) {
	switch {
	case errors.Is(err, whiteboard.ErrInvalidStroke),
		errors.Is(err, whiteboard.ErrInvalidSession),
		errors.Is(err, services.ErrInvalidParticipant):
		return &ErrResponse{HTTPStatus: http.StatusBadRequest, Code: "INVALID_REQUEST", Message: err.Error()}, true
	case errors.Is(err, whiteboard.ErrClearForbidden):
		return &ErrResponse{HTTPStatus: http.StatusForbidden, Code: "FORBIDDEN", Message: err.Error()}, true
	case errors.Is(err, services.ErrInvalidToken):
		return &ErrResponse{HTTPStatus: http.StatusUnauthorized, Code: "UNAUTHENTICATED", Message: err.Error()}, true
	}
	return errInternal, false
}
