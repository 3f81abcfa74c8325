package events

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"growspace/core/types"
)

const (
	feedHistoryLimit  = 1024
	feedSubscriberBuf = 64
)

// Notification is a committed event tagged with its feed sequence.
type Notification struct {
	Sequence uint64
	Cursor   string
	Event    *types.Event
}

// Feed fans committed events out to subscribers. A subscriber whose buffer is
// full has its channel closed instead of blocking the publisher; it recovers
// the gap from the bounded history by resubscribing with its last cursor.
// Sends and closes both happen under mu.
type Feed struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan Notification
	history []Notification
}

// NewFeed constructs an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[uint64]chan Notification)}
}

// Emit implements the Emitter interface.
func (f *Feed) Emit(evt Event) {
	if f == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}

	f.mu.Lock()
	f.seq++
	note := Notification{
		Sequence: f.seq,
		Cursor:   strconv.FormatUint(f.seq, 10),
		Event:    cloneEvent(payload),
	}
	f.history = append(f.history, note)
	if len(f.history) > feedHistoryLimit {
		excess := len(f.history) - feedHistoryLimit
		trimmed := make([]Notification, feedHistoryLimit)
		copy(trimmed, f.history[excess:])
		f.history = trimmed
	}
	for id, ch := range f.subs {
		select {
		case ch <- note:
		default:
			// Lagging subscriber; it resumes from its cursor.
			delete(f.subs, id)
			close(ch)
		}
	}
	f.mu.Unlock()
}

// Subscribe registers a subscriber and returns the notifications recorded
// after the supplied cursor. The channel closes on cancel, once ctx is done, or
// when the subscriber falls a full buffer behind. The returned cancel function
// is idempotent.
func (f *Feed) Subscribe(ctx context.Context, cursor string) (<-chan Notification, func(), []Notification) {
	updates := make(chan Notification, feedSubscriberBuf)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[uint64]chan Notification)
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = updates
	backlog := make([]Notification, 0, len(f.history))
	for _, note := range f.history {
		if note.Sequence > since {
			backlog = append(backlog, note)
		}
	}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			if sub, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(sub)
			}
			f.mu.Unlock()
		})
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog
}

// Subscribers reports the number of active subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func cloneEvent(evt *types.Event) *types.Event {
	out := &types.Event{Type: evt.Type}
	if len(evt.Attributes) > 0 {
		out.Attributes = make(map[string]string, len(evt.Attributes))
		for k, v := range evt.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}
