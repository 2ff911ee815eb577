// Package statsdtest wires a mock server and a client into Go tests.
package statsdtest

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/atlassian/mockstatsd/internal/fixtures"
	"github.com/atlassian/mockstatsd/pkg/client"
	"github.com/atlassian/mockstatsd/pkg/statsd"
)

const loopback = "127.0.0.1:0"

// Fixture is a running server with a client connected to it.
type Fixture struct {
	Server *statsd.Server
	Client *client.Client
}

func start(logger logrus.FieldLogger) (*Fixture, error) {
	s := statsd.NewServer()
	s.MetricsAddr = loopback
	s.Logger = logger
	if err := s.Start(); err != nil {
		return nil, err
	}
	addr, err := s.Addr()
	if err != nil {
		s.Stop()
		return nil, err
	}
	c, err := client.New(addr.String(), client.WithLogger(logger))
	if err != nil {
		s.Stop()
		return nil, err
	}
	return &Fixture{Server: s, Client: c}, nil
}

// Close stops the client and the server.
func (f *Fixture) Close() {
	_ = f.Client.Close()
	f.Server.Stop()
}

// New starts a fixture for a single test. Server and client log through tb, and the
// fixture is closed when the test and its subtests complete.
func New(tb testing.TB) *Fixture {
	tb.Helper()
	f, err := start(fixtures.NewTestLogger(tb))
	if err != nil {
		tb.Fatalf("failed to start mock statsd: %v", err)
	}
	tb.Cleanup(f.Close)
	return f
}

var (
	sharedOnce sync.Once
	shared     *Fixture
	sharedErr  error
)

// Shared returns a process-wide fixture, started on first use and never stopped.
// Tests sharing it should call Server.Reset before asserting.
func Shared() (*Fixture, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = start(logrus.StandardLogger())
	})
	return shared, sharedErr
}
