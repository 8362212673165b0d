package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/yourorg/overview-api/internal/logger"
	"github.com/yourorg/overview-api/internal/overview"
	"github.com/yourorg/overview-api/internal/status"
	"github.com/yourorg/overview-api/internal/store"
	"github.com/yourorg/overview-api/realestate"
)

type HistoryReader interface {
	RecentOutcomes(ctx context.Context, limit int) ([]store.JournalEntry, error)
}

type OverviewDeps struct {
	Store   *overview.Store
	History HistoryReader // optional
}

type CardStatus = status.FetchStatus[[]realestate.Card]

type StatusResponse struct {
	Filter string      `json:"filter"`
	Status *CardStatus `json:"status"`
}

type SelectionResponse struct {
	Selected *realestate.Card `json:"selected"`
}

type filterRequest struct {
	Filter string `json:"filter"`
}

type selectRequest struct {
	ID string `json:"id"`
}

func writeError(w http.ResponseWriter, req *http.Request, code int, errCode string, detail string) {
	render.Status(req, code)
	body := map[string]any{"error": errCode}
	if detail != "" {
		body["detail"] = detail
	}
	render.JSON(w, req, body)
}

// ToCardStatus maps a listing status onto its rendered form.
func ToCardStatus(st overview.Listing) CardStatus {
	return status.Fold(st,
		func() CardStatus { return status.Loading[[]realestate.Card]() },
		func(records []realestate.PropertyRecord) CardStatus { return status.Success(realestate.ToCards(records)) },
		func(msg string) CardStatus { return status.Failure[[]realestate.Card](msg) },
	)
}

func statusResponse(filter realestate.Filter, st overview.Listing, ok bool) StatusResponse {
	resp := StatusResponse{Filter: filter.String()}
	if ok {
		cs := ToCardStatus(st)
		resp.Status = &cs
	}
	return resp
}

func selectionResponse(rec *realestate.PropertyRecord) SelectionResponse {
	if rec == nil {
		return SelectionResponse{}
	}
	card := realestate.ToCard(*rec)
	return SelectionResponse{Selected: &card}
}

func RegisterOverview(r chi.Router, d OverviewDeps) {
	r.Route("/overview", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
			st, ok := d.Store.Status()
			render.JSON(w, req, statusResponse(d.Store.Filter(), st, ok))
		})

		r.Post("/filter", func(w http.ResponseWriter, req *http.Request) {
			var body filterRequest
			if req.ContentLength != 0 {
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					writeError(w, req, http.StatusBadRequest, "invalid_json", err.Error())
					return
				}
			}
			if v := req.URL.Query().Get("filter"); v != "" {
				body.Filter = v
			}
			filter, err := realestate.ParseFilter(body.Filter)
			if err != nil {
				writeError(w, req, http.StatusBadRequest, "invalid_filter", err.Error())
				return
			}
			if err := d.Store.UpdateFilter(filter); err != nil {
				writeError(w, req, http.StatusServiceUnavailable, "store_closed", err.Error())
				return
			}
			logger.FromContext(req.Context()).Info("Filter updated", logger.Fields{"filter": filter.String()})
			render.Status(req, http.StatusAccepted)
			render.JSON(w, req, map[string]any{"ok": true, "filter": filter.String()})
		})

		r.Get("/selection", func(w http.ResponseWriter, req *http.Request) {
			rec, ok := d.Store.Selected()
			if !ok {
				render.JSON(w, req, SelectionResponse{})
				return
			}
			render.JSON(w, req, selectionResponse(&rec))
		})

		r.Post("/selection", func(w http.ResponseWriter, req *http.Request) {
			var body selectRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, req, http.StatusBadRequest, "invalid_json", err.Error())
				return
			}
			if body.ID == "" {
				writeError(w, req, http.StatusBadRequest, "id_required", "")
				return
			}
			rec, err := d.Store.SelectByID(body.ID)
			switch {
			case errors.Is(err, overview.ErrNotFound):
				writeError(w, req, http.StatusNotFound, "not_found", body.ID)
				return
			case err != nil:
				writeError(w, req, http.StatusServiceUnavailable, "store_closed", err.Error())
				return
			}
			render.JSON(w, req, selectionResponse(&rec))
		})

		r.Delete("/selection", func(w http.ResponseWriter, req *http.Request) {
			d.Store.ClearSelection()
			render.NoContent(w, req)
		})

		r.Get("/history", func(w http.ResponseWriter, req *http.Request) {
			if d.History == nil {
				writeError(w, req, http.StatusNotFound, "history_disabled", "")
				return
			}
			limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
			entries, err := d.History.RecentOutcomes(req.Context(), limit)
			if err != nil {
				logger.FromContext(req.Context()).Error("History lookup failed", err, nil)
				writeError(w, req, http.StatusInternalServerError, "history_error", err.Error())
				return
			}
			render.JSON(w, req, map[string]any{"ok": true, "count": len(entries), "entries": entries})
		})

		r.Get("/events", streamEvents(d.Store))
	})
}
