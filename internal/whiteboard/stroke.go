package whiteboard

import (
	"errors"
	"fmt"
	"math"
	"regexp"

	"github.com/prudhvinik1/inkboard/internal/models"
)

var (
	ErrInvalidStroke  = errors.New("invalid stroke")
	ErrInvalidSession = errors.New("invalid whiteboard session id")
	ErrClearForbidden = errors.New("role may not clear the whiteboard")
)

const (
	MaxPathPoints = 10000
	MaxLineWidth  = 200
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)

func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSession, id)
	}
	return nil
}

// ValidateStroke rejects events that could not have come from a pen: empty
// paths, unknown types, non-positive widths and unparseable draw colors.
func ValidateStroke(ev *models.StrokeEvent) error {
	if !ev.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidStroke, ev.Type)
	}
	if len(ev.Path) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidStroke)
	}
	if len(ev.Path) > MaxPathPoints {
		return fmt.Errorf("%w: path has %d points, limit is %d", ErrInvalidStroke, len(ev.Path), MaxPathPoints)
	}
	for _, p := range ev.Path {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("%w: non-finite point", ErrInvalidStroke)
		}
	}
	if ev.LineWidth <= 0 || ev.LineWidth > MaxLineWidth {
		return fmt.Errorf("%w: line width %d", ErrInvalidStroke, ev.LineWidth)
	}
	if ev.Type == models.StrokeErase {
		return nil
	}
	if _, ok := ParseColor(ev.Color); !ok {
		return fmt.Errorf("%w: color %q", ErrInvalidStroke, ev.Color)
	}
	return nil
}

// NormalizeStroke forces the eraser style onto erase events. Their color is
// never drawn, so whatever the client sent is replaced.
func NormalizeStroke(ev *models.StrokeEvent) {
	if ev.Type == models.StrokeErase {
		ev.LineWidth = EraserLineWidth
		ev.Color = BackgroundColor
	}
}

// ClearPolicy decides which roles may wipe a board.
type ClearPolicy string

const (
	ClearTeachersOnly ClearPolicy = "teacher"
	ClearAnyone       ClearPolicy = "any"
)

func (p ClearPolicy) Allows(role models.Role) bool {
	if p == ClearAnyone {
		return true
	}
	return role == models.RoleTeacher
}
