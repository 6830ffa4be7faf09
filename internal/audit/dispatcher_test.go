package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/prudhvinik1/inkboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testOptions(maxRetry int) DispatcherOptions {
	return DispatcherOptions{
		QueueSize:   16,
		Workers:     1,
		MaxRetry:    maxRetry,
		BaseBackoff: time.Millisecond,
	}
}

func TestDispatcher_PublishesEvent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var evt Event
		if err := json.Unmarshal(val, &evt); err != nil {
			return err
		}
		assert.Equal(t, BoardCleared, evt.EventType)
		assert.Equal(t, "room-1", evt.SessionID)
		assert.Equal(t, int64(7), evt.Deleted)
		assert.Equal(t, models.RoleTeacher, evt.ActorRole)
		return nil
	})

	d := NewDispatcher(producer, "whiteboard-audit", zaptest.NewLogger(t), testOptions(0))

	err := d.Record(context.Background(), Event{
		EventType:  BoardCleared,
		SessionID:  "room-1",
		ActorID:    "teacher-1",
		ActorRole:  models.RoleTeacher,
		Deleted:    7,
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)

	d.Close()
	require.NoError(t, producer.Close())
}

func TestDispatcher_RetriesTransientFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndSucceed()

	d := NewDispatcher(producer, "whiteboard-audit", zaptest.NewLogger(t), testOptions(2))
	require.NoError(t, d.Record(context.Background(), Event{EventType: StrokeAppended, SessionID: "room-1"}))

	d.Close()
	require.NoError(t, producer.Close())
}

// After MaxRetry+1 failed attempts the event is dropped and the worker moves on.
func TestDispatcher_DropsAfterMaxRetry(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndSucceed()

	d := NewDispatcher(producer, "whiteboard-audit", zaptest.NewLogger(t), testOptions(1))
	require.NoError(t, d.Record(context.Background(), Event{EventType: BoardCleared, SessionID: "dropped"}))
	require.NoError(t, d.Record(context.Background(), Event{EventType: BoardCleared, SessionID: "delivered"}))

	d.Close()
	require.NoError(t, producer.Close())
}

func TestDispatcher_RecordAfterClose(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	d := NewDispatcher(producer, "whiteboard-audit", zaptest.NewLogger(t), testOptions(0))
	d.Close()
	d.Close()

	err := d.Record(context.Background(), Event{EventType: BoardCleared})
	assert.ErrorIs(t, err, ErrDispatcherClosed)
	require.NoError(t, producer.Close())
}

func TestDispatcher_RecordRespectsContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	block := make(chan struct{})
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func([]byte) error {
		<-block
		return nil
	})

	opts := testOptions(0)
	opts.QueueSize = 0
	d := NewDispatcher(producer, "whiteboard-audit", zaptest.NewLogger(t), opts)

	// first event occupies the only worker
	require.NoError(t, d.Record(context.Background(), Event{EventType: StrokeAppended, SessionID: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Record(ctx, Event{EventType: StrokeAppended, SessionID: "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
	d.Close()
	require.NoError(t, producer.Close())
}
