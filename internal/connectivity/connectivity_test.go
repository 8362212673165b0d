package connectivity

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offline(context.Context) bool { return false }

func TestObservePolicyLetsRequestThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := &http.Client{Transport: Wrap(CheckerFunc(offline), PolicyObserve)(http.DefaultTransport)}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestEnforcePolicyRejects(t *testing.T) {
	client := &http.Client{Transport: Wrap(CheckerFunc(offline), PolicyEnforce)(http.DefaultTransport)}
	_, err := client.Get("http://example.invalid/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOffline))
}

func TestDefaultCheckerOpensNoExtraConnections(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			conns.Add(1)
		}
	}
	srv.Start()
	defer srv.Close()

	base := &http.Transport{}
	defer base.CloseIdleConnections()
	client := &http.Client{Transport: Wrap(nil, PolicyObserve)(base)}
	for i := 0; i < 3; i++ {
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	assert.EqualValues(t, 1, conns.Load())
}

func TestInterfaceChecker(t *testing.T) {
	list := func(ifaces ...net.Interface) func() ([]net.Interface, error) {
		return func() ([]net.Interface, error) { return ifaces, nil }
	}
	ctx := context.Background()

	assert.False(t, InterfaceChecker{interfaces: list()}.Available(ctx))
	assert.False(t, InterfaceChecker{interfaces: list(
		net.Interface{Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
		net.Interface{Name: "eth0"},
	)}.Available(ctx))
	assert.True(t, InterfaceChecker{interfaces: list(
		net.Interface{Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
		net.Interface{Name: "eth0", Flags: net.FlagUp | net.FlagBroadcast},
	)}.Available(ctx))
	assert.False(t, InterfaceChecker{interfaces: func() ([]net.Interface, error) {
		return nil, errors.New("netlink")
	}}.Available(ctx))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("ENFORCE")
	require.NoError(t, err)
	assert.Equal(t, PolicyEnforce, p)
	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}
