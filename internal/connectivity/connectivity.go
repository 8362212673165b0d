// Package connectivity gates outbound requests on the state of the local
// network. With PolicyObserve an unavailable network is only logged.
package connectivity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/yourorg/overview-api/internal/logger"
)

var ErrOffline = errors.New("no network connection available")

type Checker interface {
	Available(ctx context.Context) bool
}

type CheckerFunc func(ctx context.Context) bool

func (f CheckerFunc) Available(ctx context.Context) bool { return f(ctx) }

// InterfaceChecker reports whether any non-loopback interface is up. It
// only inspects the local host and never opens a connection.
type InterfaceChecker struct {
	interfaces func() ([]net.Interface, error)
}

func (c InterfaceChecker) Available(context.Context) bool {
	list := c.interfaces
	if list == nil {
		list = net.Interfaces
	}
	ifaces, err := list()
	if err != nil {
		return false
	}
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp != 0 && ifc.Flags&net.FlagLoopback == 0 {
			return true
		}
	}
	return false
}

type Policy int

const (
	PolicyObserve Policy = iota
	PolicyEnforce
)

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "observe":
		return PolicyObserve, nil
	case "enforce":
		return PolicyEnforce, nil
	}
	return PolicyObserve, fmt.Errorf("unknown connectivity policy %q", s)
}

// Transport consults the checker before every request.
type Transport struct {
	Base    http.RoundTripper
	Checker Checker
	Policy  Policy
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Checker != nil && !t.Checker.Available(req.Context()) {
		log := logger.FromContext(req.Context()).WithFields(logger.Fields{"component": "connectivity", "host": req.URL.Host})
		if t.Policy == PolicyEnforce {
			log.Warn("Network unavailable, request rejected", nil)
			return nil, ErrOffline
		}
		log.Debug("Network looks unavailable, sending anyway", nil)
	}
	return base.RoundTrip(req)
}

// Wrap returns a function suitable for realestate.WithTransport. A nil
// checker means InterfaceChecker.
func Wrap(checker Checker, policy Policy) func(http.RoundTripper) http.RoundTripper {
	if checker == nil {
		checker = InterfaceChecker{}
	}
	return func(base http.RoundTripper) http.RoundTripper {
		return &Transport{Base: base, Checker: checker, Policy: policy}
	}
}
