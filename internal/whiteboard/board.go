package whiteboard

import (
	"context"
	"sync"

	"github.com/prudhvinik1/inkboard/internal/models"
)

type BoardOptions struct {
	Appender AppenderOptions
}

// Board is one participant's view of a whiteboard session. It paints pointer
// input immediately, appends finished strokes in the background and keeps
// the canvas equal to the replay of the shared log. All methods are safe for
// concurrent use.
type Board struct {
	sessionID string
	log       StrokeLog
	actor     models.Participant
	appender  *Appender
	sub       *Subscription

	mu       sync.Mutex
	canvas   Canvas
	renderer *Renderer
	pen      *Pen
	closed   bool
}

func OpenBoard(ctx context.Context, log StrokeLog, sessionID string, actor models.Participant, canvas Canvas, opts BoardOptions) (*Board, error) {
	b := &Board{
		sessionID: sessionID,
		log:       log,
		actor:     actor,
		canvas:    canvas,
		renderer:  NewRenderer(canvas),
		pen:       NewPen(),
	}
	canvas.Clear()

	sub, err := log.Subscribe(ctx, sessionID, b.onLog)
	if err != nil {
		return nil, err
	}
	b.sub = sub
	b.appender = NewAppender(log, sessionID, opts.Appender)
	return b, nil
}

func (b *Board) onLog(events []models.StrokeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.renderer.Render(events)
	b.repaintInProgress()
}

// repaintInProgress keeps the stroke under the pointer visible across a
// redraw. Its pixels are not in the log, so the next render starts clean.
func (b *Board) repaintInProgress() {
	if !b.pen.Drawing() {
		return
	}
	typ, color, width := b.pen.Style()
	applyStyle(b.canvas, typ, color, width)
	b.canvas.StrokePolyline(b.pen.Path())
	b.renderer.MarkDirty()
}

func (b *Board) SetTool(t Tool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pen.SetTool(t)
}

// SetColor reports false and keeps the current color when color does not
// parse.
func (b *Board) SetColor(color string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pen.SetColor(color)
}

func (b *Board) SetLineWidth(width int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pen.SetLineWidth(width)
}

func (b *Board) PointerDown(pt models.Point) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pen.Down(pt)
}

// PointerMove paints the new segment right away.
func (b *Board) PointerMove(pt models.Point) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from, to, ok := b.pen.Move(pt)
	if !ok {
		return
	}
	typ, color, width := b.pen.Style()
	applyStyle(b.canvas, typ, color, width)
	b.canvas.StrokePolyline([]models.Point{from, to})
	b.renderer.MarkDirty()
}

// PointerUp finishes the stroke and queues it for append. The optimistic
// pixels stay until the log containing the stroke arrives.
func (b *Board) PointerUp() {
	b.mu.Lock()
	ev, ok := b.pen.Up()
	b.mu.Unlock()
	if !ok {
		return
	}
	ev.SessionID = b.sessionID
	ev.AuthorID = b.actor.ID
	b.appender.Enqueue(ev)
}

// PointerLeave ends the stroke exactly like PointerUp.
func (b *Board) PointerLeave() {
	b.PointerUp()
}

// ClearAll asks confirm first and does nothing unless it returns true. It
// reports whether the clear was sent.
func (b *Board) ClearAll(ctx context.Context, confirm func() bool) (bool, error) {
	if confirm == nil || !confirm() {
		return false, nil
	}
	if _, err := b.log.ClearAll(ctx, b.sessionID, b.actor); err != nil {
		return false, err
	}
	return true, nil
}

// Resize recreates the surface and replays the last log it received.
func (b *Board) Resize(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.canvas.Resize(width, height)
	b.renderer.Redraw()
	b.repaintInProgress()
}

// Events returns the last log rendered.
func (b *Board) Events() []models.StrokeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.StrokeEvent, len(b.renderer.Events()))
	copy(out, b.renderer.Events())
	return out
}

// View runs fn with exclusive access to the canvas.
func (b *Board) View(fn func(Canvas)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.canvas)
}

// Flush re-sends strokes whose appends failed earlier.
func (b *Board) Flush(ctx context.Context) error {
	return b.appender.Flush(ctx)
}

func (b *Board) PendingStrokes() int {
	return b.appender.Pending()
}

// Close waits for queued strokes to be attempted, then stops listening.
func (b *Board) Close() {
	b.appender.Close()
	b.sub.Close()

	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}
