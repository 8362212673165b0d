package scope

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseCancelsAndWaits(t *testing.T) {
	s := New(context.Background())
	var finished atomic.Bool
	started := make(chan struct{})

	_, err := s.Go(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
	})
	require.NoError(t, err)
	<-started

	s.Close()
	assert.True(t, finished.Load(), "Close must wait for running tasks")

	_, err = s.Go(func(context.Context) {})
	assert.ErrorIs(t, err, ErrClosed)
	s.Close()
}

func TestTaskCancelIsLocal(t *testing.T) {
	s := New(context.Background())
	defer s.Close()

	firstDone := make(chan struct{})
	cancelFirst, err := s.Go(func(ctx context.Context) {
		<-ctx.Done()
		close(firstDone)
	})
	require.NoError(t, err)

	secondCtx := make(chan context.Context, 1)
	_, err = s.Go(func(ctx context.Context) { secondCtx <- ctx; <-ctx.Done() })
	require.NoError(t, err)

	cancelFirst()
	select {
	case <-firstDone:
	case <-time.After(time.Second):
		t.Fatal("first task was not cancelled")
	}
	assert.NoError(t, (<-secondCtx).Err())
}

func TestDoneFollowsParentAndClose(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := New(parent)
	select {
	case <-s.Done():
		t.Fatal("scope done before parent")
	default:
	}
	cancel()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("scope did not follow parent")
	}
	s.Close()

	other := New(context.Background())
	other.Close()
	select {
	case <-other.Done():
	default:
		t.Fatal("Close must end the scope context")
	}
}
