package whiteboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func changesChannel(sessionID string) string {
	return fmt.Sprintf("whiteboard:%s:changes", sessionID)
}

// RedisNotifier publishes changes on Redis pub/sub so every server instance
// sees writes made through any other. Each process holds at most one Redis
// subscription per session and fans it out locally.
type RedisNotifier struct {
	client *redis.Client
	local  *LocalNotifier
	log    *zap.Logger

	mu     sync.Mutex
	relays map[string]*relay
}

type relay struct {
	pubsub *redis.PubSub
	refs   int
	closed bool
	done   chan struct{}
}

func NewRedisNotifier(client *redis.Client, log *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		local:  NewLocalNotifier(),
		log:    log,
		relays: make(map[string]*relay),
	}
}

func (n *RedisNotifier) Publish(ctx context.Context, sessionID, change string) error {
	if err := n.client.Publish(ctx, changesChannel(sessionID), change).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the channel subscription, so no
// change published afterwards can be missed.
func (n *RedisNotifier) Subscribe(ctx context.Context, sessionID string) (<-chan string, func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	r, ok := n.relays[sessionID]
	if !ok {
		pubsub := n.client.Subscribe(ctx, changesChannel(sessionID))
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return nil, nil, fmt.Errorf("failed to subscribe to changes: %w", err)
		}
		r = &relay{pubsub: pubsub, done: make(chan struct{})}
		n.relays[sessionID] = r
		go n.forward(sessionID, r)
	}
	r.refs++

	ch, cancelLocal, _ := n.local.Subscribe(ctx, sessionID)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelLocal()
			n.release(sessionID, r)
		})
	}
	return ch, cancel, nil
}

func (n *RedisNotifier) forward(sessionID string, r *relay) {
	defer close(r.done)
	for msg := range r.pubsub.Channel() {
		_ = n.local.Publish(context.Background(), sessionID, msg.Payload)
	}
	n.log.Debug("change relay stopped", zap.String("session_id", sessionID))
}

func (n *RedisNotifier) release(sessionID string, r *relay) {
	n.mu.Lock()
	if r.closed {
		n.mu.Unlock()
		return
	}
	r.refs--
	last := r.refs == 0
	if last {
		r.closed = true
		delete(n.relays, sessionID)
	}
	n.mu.Unlock()

	if last {
		if err := r.pubsub.Close(); err != nil {
			n.log.Warn("failed to close change subscription", zap.String("session_id", sessionID), zap.Error(err))
		}
		<-r.done
	}
}

// Close drops every relay. Channels handed out earlier stop receiving.
func (n *RedisNotifier) Close() {
	n.mu.Lock()
	relays := n.relays
	n.relays = make(map[string]*relay)
	for _, r := range relays {
		r.closed = true
	}
	n.mu.Unlock()

	for _, r := range relays {
		_ = r.pubsub.Close()
		<-r.done
	}
}
