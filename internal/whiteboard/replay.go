package whiteboard

import (
	"slices"

	"github.com/google/uuid"
	"github.com/prudhvinik1/inkboard/internal/models"
)

// Replay clears canvas and folds events onto it in ascending Seq order.
func Replay(canvas Canvas, events []models.StrokeEvent) {
	canvas.Clear()
	for i := range events {
		DrawStroke(canvas, &events[i])
	}
}

// DrawStroke paints a single event. Erase paints the background color at the
// eraser width whatever the event carries.
func DrawStroke(canvas Canvas, ev *models.StrokeEvent) {
	applyStyle(canvas, ev.Type, ev.Color, ev.LineWidth)
	canvas.StrokePolyline(ev.Path)
}

func applyStyle(canvas Canvas, t models.StrokeType, color string, width int) {
	if t == models.StrokeErase {
		color = BackgroundColor
		width = EraserLineWidth
	}
	canvas.SetStrokeColor(color)
	canvas.SetLineWidth(float64(width))
	canvas.SetLineCap(LineCapRound)
	canvas.SetLineJoin(LineJoinRound)
}

// SortBySeq returns events ordered for replay. The input is left untouched.
func SortBySeq(events []models.StrokeEvent) []models.StrokeEvent {
	if slices.IsSortedFunc(events, cmpSeq) {
		return events
	}
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, cmpSeq)
	return sorted
}

func cmpSeq(a, b models.StrokeEvent) int {
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return 0
}

// Renderer keeps a canvas equal to Replay of the latest log it was given.
// When a new log extends the one already on the canvas only the tail is
// drawn; anything else clears and replays.
type Renderer struct {
	canvas  Canvas
	events  []models.StrokeEvent
	applied []uuid.UUID
	// dirty means the canvas holds pixels that are not part of applied.
	dirty bool
}

func NewRenderer(canvas Canvas) *Renderer {
	return &Renderer{canvas: canvas, dirty: true}
}

// Render reports whether it had to replay from scratch.
func (r *Renderer) Render(events []models.StrokeEvent) bool {
	events = SortBySeq(events)
	r.events = events

	if r.dirty || !r.extends(events) {
		r.Redraw()
		return true
	}

	for i := len(r.applied); i < len(events); i++ {
		DrawStroke(r.canvas, &events[i])
		r.applied = append(r.applied, events[i].ID)
	}
	return false
}

// Redraw replays the last rendered log onto a cleared canvas.
func (r *Renderer) Redraw() {
	Replay(r.canvas, r.events)
	r.applied = r.applied[:0]
	for _, ev := range r.events {
		r.applied = append(r.applied, ev.ID)
	}
	r.dirty = false
}

// MarkDirty forces the next Render to replay from scratch. Callers use it
// after painting on the canvas outside the log.
func (r *Renderer) MarkDirty() {
	r.dirty = true
}

func (r *Renderer) Events() []models.StrokeEvent {
	return r.events
}

func (r *Renderer) extends(events []models.StrokeEvent) bool {
	if len(events) < len(r.applied) {
		return false
	}
	for i, id := range r.applied {
		if events[i].ID != id {
			return false
		}
	}
	return true
}
