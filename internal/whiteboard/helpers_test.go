package whiteboard

import (
	"context"
	"image"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/inkboard/internal/audit"
	"github.com/prudhvinik1/inkboard/internal/models"
	"github.com/prudhvinik1/inkboard/internal/repositories"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var (
	studentA = models.Participant{ID: "student-a", Name: "Ada", Role: models.RoleStudent}
	studentB = models.Participant{ID: "student-b", Name: "Ben", Role: models.RoleStudent}
	teacherB = models.Participant{ID: "teacher-b", Name: "Ms. Bell", Role: models.RoleTeacher}
)

type recordingRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingRecorder) Record(_ context.Context, evt audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingRecorder) ofType(t audit.EventType) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestService(t *testing.T, policy ClearPolicy) (*Service, *recordingRecorder) {
	t.Helper()
	rec := &recordingRecorder{}
	svc := NewService(
		repositories.NewMemoryStrokeEventRepository(),
		NewLocalNotifier(),
		rec,
		policy,
		zaptest.NewLogger(t),
	)
	return svc, rec
}

func drawEvent(color string, width int, path ...models.Point) *models.StrokeEvent {
	return &models.StrokeEvent{
		ID:        uuid.Must(uuid.NewV7()),
		Type:      models.StrokeDraw,
		Path:      path,
		Color:     color,
		LineWidth: width,
	}
}

func pt(x, y float64) models.Point {
	return models.Point{X: x, Y: y}
}

// collector records every log a subscription delivers.
type collector struct {
	mu   sync.Mutex
	logs [][]models.StrokeEvent
}

func (c *collector) fn(events []models.StrokeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, events)
}

func (c *collector) last() []models.StrokeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.logs) == 0 {
		return nil
	}
	return c.logs[len(c.logs)-1]
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.logs)
}

func ids(events []models.StrokeEvent) []uuid.UUID {
	out := make([]uuid.UUID, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func pixels(c *RasterCanvas) []byte {
	return slices.Clone(c.Image().(*image.RGBA).Pix)
}

func boardPixels(b *Board) []byte {
	var out []byte
	b.View(func(c Canvas) {
		out = pixels(c.(*RasterCanvas))
	})
	return out
}

func blankPixels(width, height int) []byte {
	return pixels(NewRasterCanvas(width, height))
}

func getTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 1})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}
