// Package whiteboard replicates a shared drawing as an ordered log of stroke
// events. Every client, and the server when it renders a board, derives its
// raster by replaying that log onto a blank canvas.
package whiteboard

import "github.com/prudhvinik1/inkboard/internal/models"

const (
	BackgroundColor = "#ffffff"
	// EraserLineWidth applies to every erase stroke whatever width the
	// pen was set to.
	EraserLineWidth = 20

	DefaultPenColor     = "#000000"
	DefaultPenLineWidth = 2
)

// Strokes are drawn with round caps and joins only.
type LineCap int

const LineCapRound LineCap = 0

type LineJoin int

const LineJoinRound LineJoin = 0

// Canvas is the drawing surface a log is replayed onto.
type Canvas interface {
	Size() (width, height int)
	// Resize discards the current content.
	Resize(width, height int)
	// Clear fills the whole surface with BackgroundColor.
	Clear()
	SetStrokeColor(color string)
	SetLineWidth(width float64)
	SetLineCap(lineCap LineCap)
	SetLineJoin(lineJoin LineJoin)
	// StrokePolyline draws a connected line through points. Fewer than two
	// points draw nothing.
	StrokePolyline(points []models.Point)
}
