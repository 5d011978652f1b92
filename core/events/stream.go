package events

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"rocket/core/types"
)

const streamHistoryLimit = 2048

// Envelope is a committed event as delivered to stream subscribers.
type Envelope struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  int64             `json:"timestamp"`
}

func cloneEnvelope(env Envelope) Envelope {
	cloned := env
	cloned.Attributes = make(map[string]string, len(env.Attributes))
	for k, v := range env.Attributes {
		cloned.Attributes[k] = v
	}
	return cloned
}

// Broker is an Emitter that sequences events, keeps a bounded history and fans
// them out to subscribers. Slow subscribers miss events rather than blocking
// the emitting module.
type Broker struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan Envelope
	history []Envelope
	nowFn   func() time.Time
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[uint64]chan Envelope), nowFn: time.Now}
}

// Emit implements the Emitter interface.
func (b *Broker) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	rendered := Render(evt)
	b.publish(rendered)
}

func (b *Broker) publish(evt *types.Event) {
	b.mu.Lock()
	b.seq++
	env := Envelope{
		Sequence:   b.seq,
		Cursor:     strconv.FormatUint(b.seq, 10),
		Type:       evt.Type,
		Attributes: evt.Attributes,
		Timestamp:  b.nowFn().Unix(),
	}
	stored := cloneEnvelope(env)
	b.history = append(b.history, stored)
	if len(b.history) > streamHistoryLimit {
		excess := len(b.history) - streamHistoryLimit
		trimmed := make([]Envelope, streamHistoryLimit)
		copy(trimmed, b.history[excess:])
		b.history = trimmed
	}
	subscribers := make([]chan Envelope, 0, len(b.subs))
	for _, ch := range b.subs {
		subscribers = append(subscribers, ch)
	}
	b.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- cloneEnvelope(env):
		default:
		}
	}
}

// Subscribe registers a subscriber for events after cursor. It returns the
// live channel, a cancel function and the backlog retained in history.
func (b *Broker) Subscribe(ctx context.Context, cursor string) (<-chan Envelope, func(), []Envelope) {
	updates := make(chan Envelope, 64)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = updates
	history := make([]Envelope, len(b.history))
	copy(history, b.history)
	b.mu.Unlock()

	backlog := make([]Envelope, 0, len(history))
	for _, entry := range history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneEnvelope(entry))
		}
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			sub, ok := b.subs[id]
			if ok {
				delete(b.subs, id)
				close(sub)
			}
			b.mu.Unlock()
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return updates, cancel, backlog
}
