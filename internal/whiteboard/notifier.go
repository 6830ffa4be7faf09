package whiteboard

import (
	"context"
	"sync"
)

// Notifier carries "the log of this session changed" signals between
// processes. The payload is an opaque token unique to one change.
type Notifier interface {
	Publish(ctx context.Context, sessionID, change string) error
	// Subscribe returns a channel that always holds the latest unseen
	// change; older undelivered changes are replaced, never queued.
	Subscribe(ctx context.Context, sessionID string) (<-chan string, func(), error)
}

// LocalNotifier fans changes out within one process.
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[string]map[chan string]struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[string]map[chan string]struct{})}
}

// Publish never blocks. Fan-out runs under the lock so every subscriber
// observes changes in publish order.
func (n *LocalNotifier) Publish(_ context.Context, sessionID, change string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[sessionID] {
		offerLatest(ch, change)
	}
	return nil
}

func (n *LocalNotifier) Subscribe(_ context.Context, sessionID string) (<-chan string, func(), error) {
	ch := make(chan string, 1)

	n.mu.Lock()
	set, ok := n.subs[sessionID]
	if !ok {
		set = make(map[chan string]struct{})
		n.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[sessionID], ch)
			if len(n.subs[sessionID]) == 0 {
				delete(n.subs, sessionID)
			}
		})
	}
	return ch, cancel, nil
}

func (n *LocalNotifier) subscriberCount(sessionID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[sessionID])
}

// offerLatest puts v into a one-slot channel, evicting a stale value.
func offerLatest(ch chan string, v string) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
