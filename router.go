package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	httpapi "github.com/yourorg/overview-api/http"
	httpv1 "github.com/yourorg/overview-api/http/v1"
	"github.com/yourorg/overview-api/internal/logger"
	"github.com/yourorg/overview-api/internal/overview"
	"github.com/yourorg/overview-api/realestate"
)

type RouterDeps struct {
	Log             logger.Logger
	Store           *overview.Store
	Client          *realestate.Client
	History         httpapi.HistoryReader // nil without PG_DSN
	CORSOrigins     []string
	RateLimitPerMin int
}

func BuildRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(d.Log))
	r.Use(middleware.Recoverer)
	if d.RateLimitPerMin > 0 {
		r.Use(httprate.LimitByIP(d.RateLimitPerMin, 1*time.Minute)) // protect upstream quota
	}
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", logger.TraceHeader},
			ExposedHeaders:   []string{logger.TraceHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"ok":true}`)) })

	httpapi.RegisterOverview(r, httpapi.OverviewDeps{Store: d.Store, History: d.History})
	httpv1.RegisterRealEstate(r, httpv1.RealEstateDeps{Client: d.Client})

	return r
}
