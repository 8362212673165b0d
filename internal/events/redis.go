package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/yourorg/overview-api/internal/logger"
	"github.com/yourorg/overview-api/internal/redisx"
)

// redisMirror delivers locally through inner and forwards a JSON copy of every
// event to a Redis channel from a single goroutine, so Publish never waits on
// the network and ordering is kept.
type redisMirror struct {
	Publisher
	rdb     *redisx.Client
	channel string
	queue   chan Event
	mu      sync.Mutex
	closed  bool
	log     logger.Logger
}

func NewRedisMirror(inner Publisher, rdb *redisx.Client, channel string, log logger.Logger) Publisher {
	if log == nil {
		log = logger.Noop()
	}
	m := &redisMirror{
		Publisher: inner,
		rdb:       rdb,
		channel:   channel,
		queue:     make(chan Event, 256),
		log:       log.WithFields(logger.Fields{"component": "events.redis", "channel": channel}),
	}
	go m.forward()
	return m
}

func (m *redisMirror) Publish(ctx context.Context, evt Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.Publisher.Publish(ctx, evt)
	select {
	case m.queue <- evt:
	default:
		m.log.Warn("Redis forward queue is full, event not mirrored", logger.Fields{"seq": evt.Seq})
	}
}

func (m *redisMirror) forward() {
	for evt := range m.queue {
		b, err := json.Marshal(evt)
		if err != nil {
			m.log.Error("Failed to marshal event", err, logger.Fields{"seq": evt.Seq})
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := m.rdb.Publish(ctx, m.channel, b); err != nil {
			m.log.Warn("Failed to publish event to redis", logger.Fields{"seq": evt.Seq, "error": err.Error()})
		}
		cancel()
	}
}

func (m *redisMirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()
	m.Publisher.Close()
}
