package events

import (
	"context"
	"sync"
	"time"

	"github.com/yourorg/overview-api/internal/logger"
)

type Type string

const (
	StatusChanged    Type = "status"
	SelectionChanged Type = "selection"
)

// Event is one change of the overview state. Data holds a status.FetchStatus
// for StatusChanged and a *realestate.PropertyRecord (nil when cleared) for
// SelectionChanged.
type Event struct {
	Type Type      `json:"type"`
	Seq  uint64    `json:"seq"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event)
	// Subscribe returns a receive channel and a func that unsubscribes and
	// closes it.
	Subscribe(buffer int) (<-chan Event, func())
	Close()
}

type inMemory struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	closed bool
	log    logger.Logger
}

func NewInMemory(log logger.Logger) Publisher {
	if log == nil {
		log = logger.Noop()
	}
	return &inMemory{
		subs: make(map[uint64]chan Event),
		log:  log.WithFields(logger.Fields{"component": "events"}),
	}
}

func (m *inMemory) Publish(_ context.Context, evt Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	for id, ch := range m.subs {
		select {
		case ch <- evt:
		default:
			m.log.Warn("Subscriber channel is full, event dropped", logger.Fields{"subscriber": id, "seq": evt.Seq, "type": string(evt.Type)})
		}
	}
}

func (m *inMemory) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// Close closes every subscriber channel; later publishes are ignored.
func (m *inMemory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}
