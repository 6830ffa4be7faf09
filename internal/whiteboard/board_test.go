package whiteboard

import (
	"context"
	"image/color"
	"testing"
	"time"

	"github.com/prudhvinik1/inkboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boardW, boardH = 120, 100

func openTestBoard(t *testing.T, svc *Service, actor models.Participant) *Board {
	t.Helper()
	b, err := OpenBoard(context.Background(), svc, "room", actor, NewRasterCanvas(boardW, boardH), BoardOptions{
		Appender: AppenderOptions{Retries: 2, Backoff: time.Millisecond},
	})
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func drag(b *Board, points ...models.Point) {
	b.PointerDown(points[0])
	for _, p := range points[1:] {
		b.PointerMove(p)
	}
	b.PointerUp()
}

func waitForEvents(t *testing.T, b *Board, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(b.Events()) == n }, waitFor, tick)
}

func TestBoard_LateJoinerSeesSameRaster(t *testing.T) {
	// ARRANGE
	svc, _ := newTestService(t, ClearTeachersOnly)
	a := openTestBoard(t, svc, studentA)

	// ACT
	a.SetColor("red")
	a.SetLineWidth(5)
	drag(a, pt(10, 10), pt(50, 50), pt(90, 20))
	a.SetColor("black")
	a.SetLineWidth(2)
	drag(a, pt(20, 80), pt(80, 80))
	waitForEvents(t, a, 2)

	b := openTestBoard(t, svc, studentB)
	waitForEvents(t, b, 2)

	// ASSERT
	events := b.Events()
	assert.Equal(t, "red", events[0].Color)
	assert.Equal(t, 5, events[0].LineWidth)
	assert.Len(t, events[0].Path, 3)
	assert.Equal(t, "black", events[1].Color)
	assert.Equal(t, studentA.ID, events[1].AuthorID)
	assert.Equal(t, boardPixels(a), boardPixels(b))

	b.View(func(c Canvas) {
		got := color.RGBAModel.Convert(c.(*RasterCanvas).Image().At(30, 30)).(color.RGBA)
		assert.Equal(t, uint8(0xff), got.R)
		assert.Zero(t, got.G)
	})
}

func TestBoard_ClearFromPeerBlanksCanvas(t *testing.T) {
	// ARRANGE
	svc, _ := newTestService(t, ClearTeachersOnly)
	a := openTestBoard(t, svc, studentA)
	teacher := openTestBoard(t, svc, teacherB)
	drag(a, pt(10, 10), pt(90, 90))
	drag(a, pt(90, 10), pt(10, 90))
	waitForEvents(t, a, 2)
	waitForEvents(t, teacher, 2)
	require.NotEqual(t, blankPixels(boardW, boardH), boardPixels(a))

	// ACT
	cleared, err := teacher.ClearAll(context.Background(), func() bool { return true })

	// ASSERT
	require.NoError(t, err)
	assert.True(t, cleared)
	waitForEvents(t, a, 0)
	assert.Equal(t, blankPixels(boardW, boardH), boardPixels(a))

	late := openTestBoard(t, svc, studentB)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(blankPixels(boardW, boardH), boardPixels(late))
	}, waitFor, tick)
	assert.Empty(t, late.Events())
}

func TestBoard_ClearNeedsConfirmation(t *testing.T) {
	svc, _ := newTestService(t, ClearTeachersOnly)
	teacher := openTestBoard(t, svc, teacherB)
	drag(teacher, pt(10, 10), pt(20, 20))
	waitForEvents(t, teacher, 1)

	asked := false
	cleared, err := teacher.ClearAll(context.Background(), func() bool {
		asked = true
		return false
	})

	require.NoError(t, err)
	assert.True(t, asked)
	assert.False(t, cleared)
	events, _ := svc.Snapshot(context.Background(), "room")
	assert.Len(t, events, 1)

	cleared, err = teacher.ClearAll(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, cleared)
}

func TestBoard_StudentCannotClear(t *testing.T) {
	svc, _ := newTestService(t, ClearTeachersOnly)
	a := openTestBoard(t, svc, studentA)
	drag(a, pt(10, 10), pt(20, 20))
	waitForEvents(t, a, 1)

	cleared, err := a.ClearAll(context.Background(), func() bool { return true })

	assert.ErrorIs(t, err, ErrClearForbidden)
	assert.False(t, cleared)
	events, _ := svc.Snapshot(context.Background(), "room")
	assert.Len(t, events, 1)
}

func TestBoard_EraserStrokeUsesEraserWidth(t *testing.T) {
	svc, _ := newTestService(t, ClearTeachersOnly)
	a := openTestBoard(t, svc, studentA)
	a.SetLineWidth(3)
	a.SetTool(ToolEraser)

	drag(a, pt(10, 10), pt(60, 10))
	waitForEvents(t, a, 1)

	ev := a.Events()[0]
	assert.Equal(t, models.StrokeErase, ev.Type)
	assert.Equal(t, EraserLineWidth, ev.LineWidth)
}

func TestBoard_UnparseableColorKeepsStrokesFlowing(t *testing.T) {
	svc, _ := newTestService(t, ClearTeachersOnly)
	a := openTestBoard(t, svc, studentA)

	assert.False(t, a.SetColor("notacolor"))
	drag(a, pt(10, 10), pt(60, 10))
	require.True(t, a.SetColor("red"))
	drag(a, pt(10, 50), pt(60, 50))
	waitForEvents(t, a, 2)

	events := a.Events()
	assert.Equal(t, DefaultPenColor, events[0].Color)
	assert.Equal(t, "red", events[1].Color)
	assert.Zero(t, a.PendingStrokes())
}

func TestBoard_OptimisticPaintBeforeAppend(t *testing.T) {
	svc, _ := newTestService(t, ClearTeachersOnly)
	a := openTestBoard(t, svc, studentA)
	blank := blankPixels(boardW, boardH)

	a.PointerDown(pt(10, 50))
	a.PointerMove(pt(100, 50))

	assert.NotEqual(t, blank, boardPixels(a), "segment is painted immediately")
	assert.Empty(t, a.Events())

	a.PointerLeave()
	waitForEvents(t, a, 1)
}

func TestBoard_InProgressStrokeSurvivesRemoteUpdate(t *testing.T) {
	svc, _ := newTestService(t, ClearTeachersOnly)
	a := openTestBoard(t, svc, studentA)
	b := openTestBoard(t, svc, studentB)

	a.SetColor("blue")
	a.SetLineWidth(6)
	a.PointerDown(pt(10, 90))
	a.PointerMove(pt(110, 90))
	drag(b, pt(10, 10), pt(110, 10))
	waitForEvents(t, a, 1)

	a.View(func(c Canvas) {
		got := color.RGBAModel.Convert(c.(*RasterCanvas).Image().At(60, 90)).(color.RGBA)
		assert.Equal(t, uint8(0xff), got.B)
		assert.Zero(t, got.R)
	})
	a.PointerUp()
	waitForEvents(t, a, 2)
}

func TestBoard_ResizeReplaysLog(t *testing.T) {
	svc, _ := newTestService(t, ClearTeachersOnly)
	a := openTestBoard(t, svc, studentA)
	drag(a, pt(10, 10), pt(150, 90))
	waitForEvents(t, a, 1)

	a.Resize(200, 120)

	want := NewRasterCanvas(200, 120)
	Replay(want, a.Events())
	a.View(func(c Canvas) {
		w, h := c.Size()
		assert.Equal(t, 200, w)
		assert.Equal(t, 120, h)
	})
	assert.Equal(t, pixels(want), boardPixels(a))
}

func TestBoard_FlushAfterOutage(t *testing.T) {
	log := newFlakyLog()
	log.setDown(true)

	// flakyLog cannot subscribe, so wire the appender by hand
	b := &Board{sessionID: "room", log: log, actor: studentA, canvas: NewRasterCanvas(10, 10), pen: NewPen()}
	b.renderer = NewRenderer(b.canvas)
	b.appender = NewAppender(log, "room", AppenderOptions{Retries: -1})
	defer b.appender.Close()

	drag(b, pt(1, 1), pt(5, 5))
	require.Eventually(t, func() bool { return b.PendingStrokes() == 1 }, waitFor, tick)

	log.setDown(false)
	require.NoError(t, b.Flush(context.Background()))
	assert.Zero(t, b.PendingStrokes())
	assert.Len(t, log.appendedIDs(), 1)
}
