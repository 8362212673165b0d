package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/yourorg/overview-api/internal/events"
	"github.com/yourorg/overview-api/internal/logger"
	"github.com/yourorg/overview-api/internal/overview"
)

func eventPayload(evt events.Event) (any, bool) {
	switch data := evt.Data.(type) {
	case overview.StatusUpdate:
		return statusResponse(data.Filter, data.Status, true), true
	case overview.SelectionUpdate:
		return selectionResponse(data.Record), true
	}
	return nil, false
}

func writeSSE(w http.ResponseWriter, f http.Flusher, name string, id uint64, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", name, id, b); err != nil {
		return err
	}
	f.Flush()
	return nil
}

// streamEvents sends the current state first, then every change, as
// server-sent events. A client that acts on a selection must DELETE it.
func streamEvents(st *overview.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		log := logger.FromContext(req.Context()).WithFields(logger.Fields{"component": "sse"})
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, req, http.StatusInternalServerError, "streaming_unsupported", "")
			return
		}

		sub, unsubscribe := st.Subscribe(32)
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		cur, has := st.Status()
		if err := writeSSE(w, flusher, string(events.StatusChanged), 0, statusResponse(st.Filter(), cur, has)); err != nil {
			return
		}
		if rec, ok := st.Selected(); ok {
			if err := writeSSE(w, flusher, string(events.SelectionChanged), 0, selectionResponse(&rec)); err != nil {
				return
			}
		}

		log.Debug("Client subscribed", nil)
		for {
			select {
			case <-req.Context().Done():
				log.Debug("Client disconnected", nil)
				return
			case evt, ok := <-sub:
				if !ok {
					return
				}
				payload, known := eventPayload(evt)
				if !known {
					continue
				}
				if err := writeSSE(w, flusher, string(evt.Type), evt.Seq, payload); err != nil {
					log.Warn("Failed to write event", logger.Fields{"error": err.Error()})
					return
				}
			}
		}
	}
}
