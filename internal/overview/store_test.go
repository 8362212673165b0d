package overview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/overview-api/internal/events"
	"github.com/yourorg/overview-api/internal/status"
	"github.com/yourorg/overview-api/realestate"
)

type fetchFunc func(ctx context.Context, filter realestate.Filter) (*realestate.Response, error)

// fakeFetcher dispatches on the filter so tests can script each request.
type fakeFetcher struct {
	mu    sync.Mutex
	calls []realestate.Filter
	byKey map[realestate.Filter]fetchFunc
}

func (f *fakeFetcher) GetProperties(ctx context.Context, filter realestate.Filter) (*realestate.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, filter)
	fn := f.byKey[filter]
	f.mu.Unlock()
	return fn(ctx, filter)
}

func respond(code int, records []realestate.PropertyRecord) fetchFunc {
	return func(context.Context, realestate.Filter) (*realestate.Response, error) {
		return &realestate.Response{StatusCode: code, Records: records}, nil
	}
}

var sample = []realestate.PropertyRecord{
	{ID: "424905", ImgSrcURL: "http://mars.jpl.nasa.gov/a.jpg", Type: "buy", Price: 8000000},
	{ID: "424906", ImgSrcURL: "http://mars.jpl.nasa.gov/b.jpg", Type: "rent", Price: 450000},
}

// nextStatus waits for the next status event, skipping selection events.
func nextStatus(t *testing.T, ch <-chan events.Event) StatusUpdate {
	t.Helper()
	for {
		select {
		case evt, ok := <-ch:
			require.True(t, ok, "event channel closed")
			if evt.Type == events.StatusChanged {
				return evt.Data.(StatusUpdate)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for status event")
		}
	}
}

func assertConsistent(t *testing.T, st Listing) {
	t.Helper()
	_, hasData := st.Data()
	msg, hasMsg := st.Message()
	switch st.Kind() {
	case status.KindSuccess:
		assert.True(t, hasData)
		assert.False(t, hasMsg)
	case status.KindError:
		assert.False(t, hasData)
		assert.NotEmpty(t, msg)
	case status.KindLoading:
		assert.False(t, hasData)
		assert.False(t, hasMsg)
	}
}

func TestSuccessAfterLoading(t *testing.T) {
	f := &fakeFetcher{byKey: map[realestate.Filter]fetchFunc{realestate.ShowAll: respond(200, sample)}}
	s := New(f)
	defer s.Close()
	ch, unsub := s.Subscribe(8)
	defer unsub()

	_, ok := s.Status()
	assert.False(t, ok)

	require.NoError(t, s.RequestListing(realestate.ShowAll))
	assert.Equal(t, status.KindLoading, nextStatus(t, ch).Status.Kind())

	done := nextStatus(t, ch)
	assertConsistent(t, done.Status)
	data, ok := done.Status.Data()
	require.True(t, ok)
	assert.Equal(t, sample, data)
	assert.Equal(t, 200, done.StatusCode)

	cur, ok := s.Status()
	require.True(t, ok)
	assert.Equal(t, status.KindSuccess, cur.Kind())
}

func TestOutcomeMapping(t *testing.T) {
	boom := func(context.Context, realestate.Filter) (*realestate.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	panics := func(context.Context, realestate.Filter) (*realestate.Response, error) {
		panic("decoder exploded")
	}
	empty := func(context.Context, realestate.Filter) (*realestate.Response, error) {
		return &realestate.Response{StatusCode: 200, Empty: true}, nil
	}

	cases := []struct {
		name   string
		fn     fetchFunc
		policy EmptyPolicy
		kind   status.Kind
		msg    string
	}{
		{"not found", respond(404, nil), EmptyAsSuccess, status.KindError, "Response 404"},
		{"server error", respond(503, nil), EmptyAsSuccess, status.KindError, "Response 503"},
		{"transport", boom, EmptyAsSuccess, status.KindError, "dial tcp: connection refused"},
		{"panic", panics, EmptyAsSuccess, status.KindError, "decoder exploded"},
		{"empty as success", empty, EmptyAsSuccess, status.KindSuccess, ""},
		{"empty as error", empty, EmptyAsError, status.KindError, NoAvailableProperties},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeFetcher{byKey: map[realestate.Filter]fetchFunc{realestate.ShowRent: tc.fn}}
			s := New(f, WithEmptyPolicy(tc.policy))
			defer s.Close()
			ch, unsub := s.Subscribe(8)
			defer unsub()

			require.NoError(t, s.UpdateFilter(realestate.ShowRent))
			nextStatus(t, ch)
			got := nextStatus(t, ch).Status
			assertConsistent(t, got)
			assert.Equal(t, tc.kind, got.Kind())
			if tc.kind == status.KindError {
				msg, _ := got.Message()
				assert.Contains(t, msg, tc.msg)
			} else {
				data, _ := got.Data()
				assert.NotNil(t, data)
				assert.Empty(t, data)
			}
		})
	}
}

func TestNewerRequestWinsRegardlessOfCompletionOrder(t *testing.T) {
	release := make(chan struct{})
	var aCancelled bool
	var mu sync.Mutex
	f := &fakeFetcher{byKey: map[realestate.Filter]fetchFunc{
		realestate.ShowRent: func(ctx context.Context, _ realestate.Filter) (*realestate.Response, error) {
			<-release
			mu.Lock()
			aCancelled = ctx.Err() != nil
			mu.Unlock()
			return &realestate.Response{StatusCode: 200, Records: sample[1:]}, nil
		},
		realestate.ShowBuy: respond(200, sample[:1]),
	}}
	s := New(f)
	defer s.Close()
	ch, unsub := s.Subscribe(16)
	defer unsub()

	require.NoError(t, s.UpdateFilter(realestate.ShowRent))
	require.NoError(t, s.UpdateFilter(realestate.ShowBuy))

	var final StatusUpdate
	for final.Status.Kind() != status.KindSuccess {
		final = nextStatus(t, ch)
	}
	assert.Equal(t, realestate.ShowBuy, final.Filter)

	close(release)
	s.Close()

	mu.Lock()
	assert.True(t, aCancelled, "superseded request must see a cancelled context")
	mu.Unlock()

	cur, _ := s.Status()
	data, _ := cur.Data()
	assert.Equal(t, sample[:1], data)
	for evt := range ch {
		if evt.Type == events.StatusChanged {
			assert.NotEqual(t, realestate.ShowRent, evt.Data.(StatusUpdate).Filter)
		}
	}
}

func TestNoPublicationAfterClose(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &fakeFetcher{byKey: map[realestate.Filter]fetchFunc{
		realestate.ShowAll: func(context.Context, realestate.Filter) (*realestate.Response, error) {
			close(started)
			<-release // ignores ctx on purpose: the result arrives after teardown
			return &realestate.Response{StatusCode: 200, Records: sample}, nil
		},
	}}
	s := New(f)
	ch, unsub := s.Subscribe(8)
	defer unsub()

	require.NoError(t, s.RequestListing(realestate.ShowAll))
	<-started

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-closed

	var kinds []status.Kind
	for evt := range ch {
		kinds = append(kinds, evt.Data.(StatusUpdate).Status.Kind())
	}
	assert.Equal(t, []status.Kind{status.KindLoading}, kinds)

	assert.ErrorIs(t, s.RequestListing(realestate.ShowAll), ErrClosed)
	assert.ErrorIs(t, s.SelectItem(sample[0]), ErrClosed)
	cur, _ := s.Status()
	assert.Equal(t, status.KindLoading, cur.Kind())
}

func TestSelectionChannel(t *testing.T) {
	f := &fakeFetcher{byKey: map[realestate.Filter]fetchFunc{realestate.ShowAll: respond(200, sample)}}
	s := New(f)
	defer s.Close()

	_, ok := s.Selected()
	assert.False(t, ok)

	require.NoError(t, s.SelectItem(sample[1]))
	got, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, sample[1], got)

	s.ClearSelection()
	_, ok = s.Selected()
	assert.False(t, ok)
}

func TestSelectByIDUsesCurrentListing(t *testing.T) {
	f := &fakeFetcher{byKey: map[realestate.Filter]fetchFunc{realestate.ShowAll: respond(200, sample)}}
	s := New(f)
	defer s.Close()
	ch, unsub := s.Subscribe(8)
	defer unsub()

	_, err := s.SelectByID("424906")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.RequestListing(realestate.ShowAll))
	nextStatus(t, ch)
	nextStatus(t, ch)

	rec, err := s.SelectByID("424906")
	require.NoError(t, err)
	assert.True(t, rec.IsRental())

	evt := <-ch
	require.Equal(t, events.SelectionChanged, evt.Type)
	assert.Equal(t, "424906", evt.Data.(SelectionUpdate).Record.ID)

	s.ClearSelection()
	evt = <-ch
	assert.Nil(t, evt.Data.(SelectionUpdate).Record)

	_, err = s.SelectByID("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoundTripThroughRealClient(t *testing.T) {
	payload, err := json.Marshal(sample)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("filter") {
		case "":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(payload)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := New(realestate.NewClient(srv.URL))
	defer s.Close()
	ch, unsub := s.Subscribe(8)
	defer unsub()

	require.NoError(t, s.RequestListing(realestate.ShowAll))
	nextStatus(t, ch)
	got := nextStatus(t, ch).Status
	data, ok := got.Data()
	require.True(t, ok)
	assert.Equal(t, sample, data)

	require.NoError(t, s.UpdateFilter(realestate.ShowBuy))
	nextStatus(t, ch)
	msg, ok := nextStatus(t, ch).Status.Message()
	require.True(t, ok)
	assert.Contains(t, msg, "404")
}

func TestTransportFaultThroughRealClient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	s := New(realestate.NewClient(base))
	defer s.Close()
	ch, unsub := s.Subscribe(8)
	defer unsub()

	require.NoError(t, s.RequestListing(realestate.ShowAll))
	nextStatus(t, ch)
	got := nextStatus(t, ch).Status
	msg, ok := got.Message()
	require.True(t, ok)
	assert.NotEmpty(t, msg)
	_, hasData := got.Data()
	assert.False(t, hasData)
}

func TestCancelledParentClosesStore(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFetcher{byKey: map[realestate.Filter]fetchFunc{realestate.ShowAll: respond(200, sample)}}
	s := New(f, WithContext(parent))
	defer s.Close()

	assert.ErrorIs(t, s.RequestListing(realestate.ShowAll), ErrClosed)
	_, ok := s.Status()
	assert.False(t, ok, "no LOADING may be published for a dead store")

	require.Eventually(t, func() bool {
		return errors.Is(s.SelectItem(sample[0]), ErrClosed)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestParentCancelledMidFetchTearsDown(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	f := &fakeFetcher{byKey: map[realestate.Filter]fetchFunc{
		realestate.ShowAll: func(ctx context.Context, _ realestate.Filter) (*realestate.Response, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}}
	s := New(f, WithContext(parent))
	defer s.Close()
	ch, unsub := s.Subscribe(8)
	defer unsub()

	require.NoError(t, s.RequestListing(realestate.ShowAll))
	<-started
	cancel()

	var kinds []status.Kind
	for evt := range ch {
		kinds = append(kinds, evt.Data.(StatusUpdate).Status.Kind())
	}
	assert.Equal(t, []status.Kind{status.KindLoading}, kinds)
	assert.ErrorIs(t, s.RequestListing(realestate.ShowAll), ErrClosed)
}
