package journal

import (
	"context"
	"time"

	"github.com/yourorg/overview-api/internal/events"
	"github.com/yourorg/overview-api/internal/logger"
	"github.com/yourorg/overview-api/internal/overview"
	"github.com/yourorg/overview-api/internal/status"
	"github.com/yourorg/overview-api/internal/store"
	"github.com/yourorg/overview-api/realestate"
)

type Sink interface {
	RecordOutcome(ctx context.Context, e store.JournalEntry) error
}

// Journal consumes status events and records every finished request.
// With no Sink it only logs.
type Journal struct {
	Sink Sink
	Log  logger.Logger
}

// Run returns when ctx is done or sub is closed.
func (j *Journal) Run(ctx context.Context, sub <-chan events.Event) {
	log := j.Log
	if log == nil {
		log = logger.Noop()
	}
	log = log.WithFields(logger.Fields{"component": "journal"})

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if evt.Type != events.StatusChanged {
				continue
			}
			upd, ok := evt.Data.(overview.StatusUpdate)
			if !ok || upd.Status.Kind() == status.KindLoading {
				continue
			}

			entry := Entry(upd, evt.At)
			log.Info("Listing request recorded", logger.Fields{
				"filter": entry.Filter, "status": entry.Status, "status_code": entry.StatusCode, "records": entry.RecordCount,
			})
			if j.Sink == nil {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := j.Sink.RecordOutcome(wctx, entry); err != nil {
				log.Error("Failed to write journal entry", err, logger.Fields{"generation": entry.Generation})
			}
			cancel()
		}
	}
}

// Entry converts a terminal status update into a journal row.
func Entry(upd overview.StatusUpdate, at time.Time) store.JournalEntry {
	e := store.JournalEntry{
		Filter:     upd.Filter.String(),
		Generation: upd.Generation,
		Status:     upd.Status.Kind().String(),
		StatusCode: upd.StatusCode,
		DurationMS: upd.Elapsed.Milliseconds(),
		FinishedAt: at,
	}
	upd.Status.Match(
		func() {},
		func(records []realestate.PropertyRecord) { e.RecordCount = len(records) },
		func(msg string) { e.Message = msg },
	)
	return e
}
