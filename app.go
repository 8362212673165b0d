package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/yourorg/overview-api/internal/connectivity"
	"github.com/yourorg/overview-api/internal/env"
	"github.com/yourorg/overview-api/internal/events"
	"github.com/yourorg/overview-api/internal/journal"
	"github.com/yourorg/overview-api/internal/logger"
	"github.com/yourorg/overview-api/internal/overview"
	"github.com/yourorg/overview-api/internal/redisx"
	"github.com/yourorg/overview-api/internal/store"
	"github.com/yourorg/overview-api/realestate"
)

type App struct {
	cfg          *env.Config
	log          logger.Logger
	httpServer   *http.Server
	store        *overview.Store
	publisher    events.Publisher
	redis        *redisx.Client
	db           *store.Store
	fluentClient *fluent.Fluent
	journalStop  context.CancelFunc
	journalDone  chan struct{}
}

func NewApp(cfg *env.Config) (*App, error) {
	a := &App{cfg: cfg}

	stdout := logger.NewSlog(logger.SlogConfig{
		Writer:   os.Stdout,
		Level:    logger.ParseLevel(cfg.Log.Level),
		IsJSON:   cfg.Log.JSON,
		UseColor: !cfg.Log.JSON,
	})
	active := []logger.Logger{stdout}
	if cfg.FluentBit.Enabled {
		fc, err := logger.NewFluentClient(logger.FluentConfig{
			Host:      cfg.FluentBit.Host,
			Port:      cfg.FluentBit.Port,
			TagPrefix: cfg.AppName,
		})
		if err != nil {
			stdout.Error("Failed to create fluentbit client", err, nil)
			return nil, err
		}
		fl, err := logger.NewFluent(fc, logger.ParseLevel(cfg.FluentBit.Level))
		if err != nil {
			fc.Close()
			return nil, err
		}
		a.fluentClient = fc
		active = append(active, fl)
	}
	multi, err := logger.NewMulti(active...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}
	a.log = multi.WithFields(logger.Fields{"service_name": cfg.AppName})
	appLog := a.log.WithFields(logger.Fields{"component": "app"})

	client, err := a.newClient()
	if err != nil {
		return nil, err
	}

	a.publisher = events.NewInMemory(a.log)
	if cfg.Redis.Addr != "" {
		a.redis = redisx.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := a.redis.Ping(ctx); err != nil {
			appLog.Warn("Redis unreachable, events stay local", logger.Fields{"addr": cfg.Redis.Addr, "error": err.Error()})
		}
		cancel()
		a.publisher = events.NewRedisMirror(a.publisher, a.redis, cfg.Redis.Channel, a.log)
	}

	emptyPolicy := overview.EmptyAsSuccess
	if cfg.RealEstate.EmptyAsError {
		emptyPolicy = overview.EmptyAsError
	}
	a.store = overview.New(client,
		overview.WithLogger(a.log),
		overview.WithPublisher(a.publisher),
		overview.WithEmptyPolicy(emptyPolicy),
	)

	var history *store.Store
	if cfg.PostgresDSN != "" {
		history, err = a.openJournal()
		if err != nil {
			a.store.Close()
			a.publisher.Close()
			return nil, err
		}
	} else {
		a.startJournal(nil)
	}

	deps := RouterDeps{
		Log:             a.log,
		Store:           a.store,
		Client:          client,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		RateLimitPerMin: cfg.HTTP.RateLimitPerMin,
	}
	if history != nil {
		deps.History = history
	}
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           BuildRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	initial, err := realestate.ParseFilter(cfg.RealEstate.InitialFilter)
	if err != nil {
		appLog.Warn("Invalid INITIAL_FILTER, using all", logger.Fields{"value": cfg.RealEstate.InitialFilter})
		initial = realestate.ShowAll
	}
	if err := a.store.RequestListing(initial); err != nil {
		return nil, err
	}
	appLog.Debug("Application initialized", logger.Fields{
		"fluent_enabled": cfg.FluentBit.Enabled,
		"redis_enabled":  a.redis != nil,
		"journal_db":     a.db != nil,
	})
	return a, nil
}

func (a *App) newClient() (*realestate.Client, error) {
	cfg := a.cfg.RealEstate
	policy, err := connectivity.ParsePolicy(cfg.ConnectivityPolicy)
	if err != nil {
		return nil, err
	}
	return realestate.NewClient(cfg.BaseURL,
		realestate.WithTimeout(cfg.Timeout),
		realestate.WithRateLimit(cfg.RPS, 1),
		realestate.WithTransport(connectivity.Wrap(connectivity.InterfaceChecker{}, policy)),
		realestate.WithLogger(a.log),
	), nil
}

func (a *App) openJournal() (*store.Store, error) {
	db, err := store.Open(a.cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("store open: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.db = db
	a.startJournal(db)
	return db, nil
}

func (a *App) startJournal(sink journal.Sink) {
	ctx, cancel := context.WithCancel(context.Background())
	sub, unsubscribe := a.store.Subscribe(64)
	a.journalStop = cancel
	a.journalDone = make(chan struct{})

	j := &journal.Journal{Log: a.log}
	if sink != nil {
		j.Sink = sink
	}
	go func() {
		defer close(a.journalDone)
		defer unsubscribe()
		j.Run(ctx, sub)
	}()
}

// Run serves until SIGINT/SIGTERM, then tears everything down in reverse order.
func (a *App) Run() error {
	log := a.log.WithFields(logger.Fields{"component": "app"})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("overview-api listening", logger.Fields{"addr": a.httpServer.Addr})
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Debug("Shutting down", nil)
	case err := <-errCh:
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", err, nil)
	}
	a.close()
	log.Info("Application shut down gracefully.", nil)
	if a.fluentClient != nil {
		if err := a.fluentClient.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Error closing fluent client: %v\n", err)
		}
	}
	return runErr
}

func (a *App) close() {
	a.store.Close()
	if a.journalStop != nil {
		a.journalStop()
		<-a.journalDone
	}
	a.publisher.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
