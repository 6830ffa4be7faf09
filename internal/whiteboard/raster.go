package whiteboard

import (
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
	"github.com/prudhvinik1/inkboard/internal/models"
)

// RasterCanvas is an in-memory RGBA Canvas. It is not safe for concurrent use.
type RasterCanvas struct {
	dc         *gg.Context
	background color.Color
	stroke     color.Color
	lineWidth  float64
	lineCap    LineCap
	lineJoin   LineJoin
}

func NewRasterCanvas(width, height int) *RasterCanvas {
	bg, _ := ParseColor(BackgroundColor)
	c := &RasterCanvas{
		background: bg,
		stroke:     color.Black,
		lineWidth:  1,
	}
	c.Resize(width, height)
	return c
}

func (c *RasterCanvas) Size() (int, int) {
	return c.dc.Width(), c.dc.Height()
}

func (c *RasterCanvas) Resize(width, height int) {
	c.dc = gg.NewContext(max(width, 1), max(height, 1))
	c.Clear()
}

func (c *RasterCanvas) Clear() {
	c.dc.SetColor(c.background)
	c.dc.Clear()
}

// SetStrokeColor falls back to black for colors it cannot parse.
func (c *RasterCanvas) SetStrokeColor(s string) {
	col, ok := ParseColor(s)
	if !ok {
		col = color.Black
	}
	c.stroke = col
}

func (c *RasterCanvas) SetLineWidth(width float64) {
	c.lineWidth = width
}

func (c *RasterCanvas) SetLineCap(lineCap LineCap) {
	c.lineCap = lineCap
}

func (c *RasterCanvas) SetLineJoin(lineJoin LineJoin) {
	c.lineJoin = lineJoin
}

func (c *RasterCanvas) StrokePolyline(points []models.Point) {
	if len(points) < 2 {
		return
	}

	// gg shares one color between fill and stroke, so set it per stroke.
	c.dc.SetColor(c.stroke)
	c.dc.SetLineWidth(c.lineWidth)
	if c.lineCap == LineCapRound {
		c.dc.SetLineCap(gg.LineCapRound)
	}
	if c.lineJoin == LineJoinRound {
		c.dc.SetLineJoin(gg.LineJoinRound)
	}

	c.dc.MoveTo(points[0].X, points[0].Y)
	for _, p := range points[1:] {
		c.dc.LineTo(p.X, p.Y)
	}
	c.dc.Stroke()
}

func (c *RasterCanvas) Image() image.Image {
	return c.dc.Image()
}

func (c *RasterCanvas) EncodePNG(w io.Writer) error {
	return c.dc.EncodePNG(w)
}
