// Package overview holds the state behind the listing screen: the current
// fetch status for the active filter and the single-slot selection used to
// hand a record over to the detail view.
//
// Every RequestListing publishes LOADING at once and cancels the request it
// supersedes. Only the newest request may publish its outcome, so the status
// always reflects the last filter asked for regardless of completion order.
// After Close nothing is published.
package overview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yourorg/overview-api/internal/events"
	"github.com/yourorg/overview-api/internal/logger"
	"github.com/yourorg/overview-api/internal/scope"
	"github.com/yourorg/overview-api/internal/status"
	"github.com/yourorg/overview-api/realestate"
)

var (
	ErrClosed   = errors.New("overview: store closed")
	ErrNotFound = errors.New("overview: property not found in current listing")
)

const NoAvailableProperties = "No Available Properties"

// Fetcher is the network side of the store; *realestate.Client implements it.
type Fetcher interface {
	GetProperties(ctx context.Context, filter realestate.Filter) (*realestate.Response, error)
}

type Listing = status.FetchStatus[[]realestate.PropertyRecord]

// EmptyPolicy decides how a 2xx reply without a body is reported.
type EmptyPolicy int

const (
	// EmptyAsSuccess reports SUCCESS with an empty list.
	EmptyAsSuccess EmptyPolicy = iota
	// EmptyAsError reports ERROR("No Available Properties").
	EmptyAsError
)

// StatusUpdate is the Data of an events.StatusChanged event.
type StatusUpdate struct {
	Filter     realestate.Filter `json:"filter"`
	Generation uint64            `json:"generation"`
	Status     Listing           `json:"status"`
	StatusCode int               `json:"status_code,omitempty"`
	Elapsed    time.Duration     `json:"-"`
}

// SelectionUpdate is the Data of an events.SelectionChanged event.
// Record is nil when the selection was cleared.
type SelectionUpdate struct {
	Record *realestate.PropertyRecord `json:"record"`
}

type Option func(*Store)

func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithPublisher makes the store publish to pub. The caller keeps ownership
// and closes it after the store.
func WithPublisher(pub events.Publisher) Option {
	return func(s *Store) {
		s.pub = pub
		s.ownsPub = false
	}
}

func WithEmptyPolicy(p EmptyPolicy) Option {
	return func(s *Store) { s.emptyPolicy = p }
}

// WithContext binds the store to parent: once parent is done the store is
// closed as if Close had been called.
func WithContext(parent context.Context) Option {
	return func(s *Store) { s.parent = parent }
}

type Store struct {
	client      Fetcher
	log         logger.Logger
	pub         events.Publisher
	ownsPub     bool
	emptyPolicy EmptyPolicy
	parent      context.Context
	tasks       *scope.Scope
	stopWatch   func() bool

	mu       sync.Mutex
	current  Listing
	hasState bool
	selected *realestate.PropertyRecord
	filter   realestate.Filter
	gen      uint64
	seq      uint64
	inFlight context.CancelFunc
	closed   bool
}

func New(client Fetcher, opts ...Option) *Store {
	s := &Store{
		client: client,
		log:    logger.Noop(),
		parent: context.Background(),
		filter: realestate.ShowAll,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithFields(logger.Fields{"component": "overview.Store"})
	if s.pub == nil {
		s.pub = events.NewInMemory(s.log)
		s.ownsPub = true
	}
	if s.parent == nil {
		s.parent = context.Background()
	}
	s.tasks = scope.New(s.parent)
	s.stopWatch = context.AfterFunc(s.parent, s.Close)
	return s
}

// RequestListing starts a fetch for filter, replacing any fetch in flight.
func (s *Store) RequestListing(filter realestate.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case <-s.tasks.Done():
		// parent is gone; Close is already on its way
		return ErrClosed
	default:
	}

	if s.inFlight != nil {
		s.inFlight()
		s.inFlight = nil
	}
	s.gen++
	gen := s.gen
	s.filter = filter
	s.setStatusLocked(StatusUpdate{Filter: filter, Generation: gen, Status: status.Loading[[]realestate.PropertyRecord]()})

	cancel, err := s.tasks.Go(func(ctx context.Context) { s.run(ctx, gen, filter) })
	if err != nil {
		return ErrClosed
	}
	s.inFlight = cancel
	return nil
}

// UpdateFilter is RequestListing under the name the filter menu uses.
func (s *Store) UpdateFilter(filter realestate.Filter) error {
	return s.RequestListing(filter)
}

func (s *Store) run(ctx context.Context, gen uint64, filter realestate.Filter) {
	log := s.log.WithFields(logger.Fields{"filter": filter.String(), "generation": gen})
	ctx = logger.ContextWithLogger(ctx, log)

	start := time.Now()
	update := StatusUpdate{Filter: filter, Generation: gen}
	update.Status, update.StatusCode = s.fetch(ctx, filter)
	update.Elapsed = time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || ctx.Err() != nil {
		log.Debug("Discarding result of superseded request", nil)
		return
	}
	s.inFlight = nil
	s.setStatusLocked(update)
	log.Info("Listing request finished", logger.Fields{
		"status":      update.Status.Kind().String(),
		"status_code": update.StatusCode,
		"duration_ms": update.Elapsed.Milliseconds(),
	})
}

// fetch never fails: every outcome, a panic included, becomes a Listing.
func (s *Store) fetch(ctx context.Context, filter realestate.Filter) (st Listing, code int) {
	defer func() {
		if r := recover(); r != nil {
			st = status.Failure[[]realestate.PropertyRecord](fmt.Sprint(r))
			code = 0
		}
	}()

	resp, err := s.client.GetProperties(ctx, filter)
	if err != nil {
		if ctx.Err() == nil {
			logger.FromContext(ctx).Warn("Listing request failed", logger.Fields{"error": err.Error()})
		}
		return status.Failure[[]realestate.PropertyRecord](err.Error()), 0
	}
	if resp == nil {
		return status.Failure[[]realestate.PropertyRecord](""), 0
	}
	if !resp.Successful() {
		return status.Failure[[]realestate.PropertyRecord](fmt.Sprintf("Response %d", resp.StatusCode)), resp.StatusCode
	}
	if resp.Empty || resp.Records == nil {
		if s.emptyPolicy == EmptyAsError {
			return status.Failure[[]realestate.PropertyRecord](NoAvailableProperties), resp.StatusCode
		}
		return status.Success([]realestate.PropertyRecord{}), resp.StatusCode
	}
	return status.Success(resp.Records), resp.StatusCode
}

func (s *Store) setStatusLocked(u StatusUpdate) {
	s.current = u.Status
	s.hasState = true
	s.publishLocked(events.StatusChanged, u)
}

func (s *Store) publishLocked(t events.Type, data any) {
	s.seq++
	s.pub.Publish(context.Background(), events.Event{Type: t, Seq: s.seq, At: time.Now().UTC(), Data: data})
}

// Status returns the current status; ok is false before the first request.
func (s *Store) Status() (Listing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.hasState
}

func (s *Store) Filter() realestate.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

func (s *Store) SelectItem(record realestate.PropertyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.selected = &record
	s.publishLocked(events.SelectionChanged, SelectionUpdate{Record: &record})
	return nil
}

// SelectByID selects the record with id from the current SUCCESS listing.
func (s *Store) SelectByID(id string) (realestate.PropertyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return realestate.PropertyRecord{}, ErrClosed
	}
	records, ok := s.current.Data()
	if !ok {
		return realestate.PropertyRecord{}, ErrNotFound
	}
	for _, r := range records {
		if r.ID == id {
			rec := r
			s.selected = &rec
			s.publishLocked(events.SelectionChanged, SelectionUpdate{Record: &rec})
			return rec, nil
		}
	}
	return realestate.PropertyRecord{}, ErrNotFound
}

// ClearSelection must be called once the selection has been acted on, so a
// new subscriber does not navigate again.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.selected == nil {
		return
	}
	s.selected = nil
	s.publishLocked(events.SelectionChanged, SelectionUpdate{})
}

func (s *Store) Selected() (realestate.PropertyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return realestate.PropertyRecord{}, false
	}
	return *s.selected, true
}

func (s *Store) Subscribe(buffer int) (<-chan events.Event, func()) {
	return s.pub.Subscribe(buffer)
}

// Close cancels the fetch in flight and waits for it to return. Nothing is
// published afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.inFlight != nil {
		s.inFlight()
		s.inFlight = nil
	}
	s.mu.Unlock()

	s.stopWatch()
	s.tasks.Close()
	if s.ownsPub {
		s.pub.Close()
	}
	s.log.Debug("Store closed", nil)
}
