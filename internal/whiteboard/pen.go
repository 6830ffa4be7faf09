package whiteboard

import (
	"slices"

	"github.com/google/uuid"
	"github.com/prudhvinik1/inkboard/internal/models"
)

type Tool string

const (
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
)

// Pen turns pointer input into stroke events. It is Idle until Down, then
// Drawing until Up (pointer up or pointer leave).
type Pen struct {
	tool      Tool
	color     string
	lineWidth int

	drawing bool
	path    []models.Point
}

func NewPen() *Pen {
	return &Pen{
		tool:      ToolPen,
		color:     DefaultPenColor,
		lineWidth: DefaultPenLineWidth,
	}
}

func (p *Pen) SetTool(t Tool) { p.tool = t }

// SetColor keeps the current color and reports false when color does not
// parse.
func (p *Pen) SetColor(color string) bool {
	if _, ok := ParseColor(color); !ok {
		return false
	}
	p.color = color
	return true
}

// SetLineWidth ignores widths outside 1..MaxLineWidth.
func (p *Pen) SetLineWidth(width int) {
	if width > 0 && width <= MaxLineWidth {
		p.lineWidth = width
	}
}

func (p *Pen) Tool() Tool { return p.tool }

func (p *Pen) Drawing() bool { return p.drawing }

// Style is what the active tool paints with.
func (p *Pen) Style() (models.StrokeType, string, int) {
	if p.tool == ToolEraser {
		return models.StrokeErase, BackgroundColor, EraserLineWidth
	}
	return models.StrokeDraw, p.color, p.lineWidth
}

func (p *Pen) Down(pt models.Point) {
	p.drawing = true
	p.path = append(p.path[:0:0], pt)
}

// Move extends the path and returns the new segment for optimistic painting.
// It reports false while Idle.
func (p *Pen) Move(pt models.Point) (from, to models.Point, ok bool) {
	if !p.drawing {
		return models.Point{}, models.Point{}, false
	}
	from = p.path[len(p.path)-1]
	p.path = append(p.path, pt)
	return from, pt, true
}

// Up ends the stroke and returns it as a new event with a fresh ID. It
// reports false if the pen was Idle.
func (p *Pen) Up() (models.StrokeEvent, bool) {
	if !p.drawing {
		return models.StrokeEvent{}, false
	}
	p.drawing = false
	path := p.path
	p.path = nil
	if len(path) == 0 {
		return models.StrokeEvent{}, false
	}

	typ, color, width := p.Style()
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return models.StrokeEvent{
		ID:        id,
		Type:      typ,
		Path:      path,
		Color:     color,
		LineWidth: width,
	}, true
}

// Path returns a copy of the in-progress path.
func (p *Pen) Path() []models.Point {
	return slices.Clone(p.path)
}
