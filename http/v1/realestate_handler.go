package v1

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/yourorg/overview-api/realestate"
)

type RealEstateDeps struct {
	Client *realestate.Client
}

// RegisterRealEstate exposes a stateless pass-through of the upstream listing.
func RegisterRealEstate(r chi.Router, d RealEstateDeps) {
	r.Get("/v1/realestate", func(w http.ResponseWriter, req *http.Request) {
		filter, err := realestate.ParseFilter(req.URL.Query().Get("filter"))
		if err != nil {
			render.Status(req, http.StatusBadRequest)
			render.JSON(w, req, map[string]any{"error": "invalid_filter", "detail": err.Error()})
			return
		}
		resp, err := d.Client.GetProperties(req.Context(), filter)
		if err != nil {
			render.Status(req, http.StatusBadGateway)
			render.JSON(w, req, map[string]any{"error": "upstream_error", "detail": err.Error()})
			return
		}
		if !resp.Successful() {
			render.Status(req, http.StatusBadGateway)
			render.JSON(w, req, map[string]any{"error": "upstream_status", "detail": fmt.Sprintf("Response %d", resp.StatusCode)})
			return
		}
		cards := realestate.ToCards(resp.Records)
		render.JSON(w, req, map[string]any{"ok": true, "filter": filter.String(), "count": len(cards), "properties": cards})
	})
}
