package statsd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/ash2k/stager/wait"
	"github.com/libp2p/go-reuseport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/atlassian/mockstatsd"
	"github.com/atlassian/mockstatsd/pkg/healthcheck"
	"github.com/atlassian/mockstatsd/pkg/store"
	"github.com/atlassian/mockstatsd/pkg/util"
	"github.com/atlassian/mockstatsd/pkg/web"
)

var (
	// ErrNotStarted is returned by address getters of a Server that is not listening.
	ErrNotStarted = errors.New("server not started")
	// ErrAlreadyStarted is returned by Start on a running Server.
	ErrAlreadyStarted = errors.New("server already started")
	// ErrMetricNotFound is returned by AwaitMetric when no aggregate matches.
	ErrMetricNotFound = errors.New("metric not found")
	// ErrValueMismatch is returned by AwaitMetric when the aggregate holds another value.
	ErrValueMismatch = errors.New("metric value mismatch")
)

// Server encapsulates all of the parameters necessary for starting up
// the mock statsd server. These can either be set via command line or directly.
type Server struct {
	MetricsAddr       string
	MaxReaders        int
	ReusePort         bool
	ReceiveBufferSize int
	RecordCalls       bool
	WebAddr           string
	PollInterval      time.Duration
	Logger            logrus.FieldLogger

	initOnce sync.Once
	store    *store.Store
	calls    *CallRecorder

	mu       sync.Mutex
	conn     net.PacketConn
	receiver *MetricReceiver
	cancel   context.CancelFunc
	wg       wait.Group
}

// NewServer creates a Server with default parameters.
func NewServer() *Server {
	return &Server{
		MetricsAddr:       mockstatsd.DefaultMetricsAddr,
		MaxReaders:        mockstatsd.DefaultMaxReaders,
		ReceiveBufferSize: mockstatsd.DefaultReceiveBufferSize,
		RecordCalls:       mockstatsd.DefaultRecordCalls,
		PollInterval:      mockstatsd.DefaultPollInterval,
		Logger:            logrus.StandardLogger(),
	}
}

// NewServerFromViper creates a Server from the parameters registered by mockstatsd.AddFlags.
func NewServerFromViper(v *viper.Viper, logger logrus.FieldLogger) *Server {
	v.SetDefault(mockstatsd.ParamMetricsAddr, mockstatsd.DefaultMetricsAddr)
	v.SetDefault(mockstatsd.ParamMaxReaders, mockstatsd.DefaultMaxReaders)
	v.SetDefault(mockstatsd.ParamReceiveBufferSize, mockstatsd.DefaultReceiveBufferSize)
	v.SetDefault(mockstatsd.ParamRecordCalls, mockstatsd.DefaultRecordCalls)
	v.SetDefault(mockstatsd.ParamPollInterval, mockstatsd.DefaultPollInterval)

	return &Server{
		MetricsAddr:       v.GetString(mockstatsd.ParamMetricsAddr),
		MaxReaders:        v.GetInt(mockstatsd.ParamMaxReaders),
		ReusePort:         v.GetBool(mockstatsd.ParamReusePort),
		ReceiveBufferSize: v.GetInt(mockstatsd.ParamReceiveBufferSize),
		RecordCalls:       v.GetBool(mockstatsd.ParamRecordCalls),
		WebAddr:           v.GetString(mockstatsd.ParamWebAddr),
		PollInterval:      v.GetDuration(mockstatsd.ParamPollInterval),
		Logger:            logger,
	}
}

func (s *Server) init() {
	s.initOnce.Do(func() {
		if s.Logger == nil {
			s.Logger = logrus.StandardLogger()
		}
		s.store = store.New(s.Logger)
		s.calls = &CallRecorder{}
	})
}

// Store returns the aggregate store the server merges into.
func (s *Server) Store() *store.Store {
	s.init()
	return s.store
}

// SocketFactory is an indirection layer over net.ListenPacket() to allow for different implementations.
type SocketFactory func() (net.PacketConn, error)

func (s *Server) socketFactory() SocketFactory {
	return func() (net.PacketConn, error) {
		if s.ReusePort {
			return reuseport.ListenPacket("udp", s.MetricsAddr)
		}
		return net.ListenPacket("udp", s.MetricsAddr)
	}
}

// Run runs the server until context signals done.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithCustomSocket(ctx, s.socketFactory())
}

// RunWithCustomSocket runs the server until context signals done.
// Listening socket is created using sf.
func (s *Server) RunWithCustomSocket(ctx context.Context, sf SocketFactory) error {
	s.init()
	c, err := sf()
	if err != nil {
		return err
	}
	if err := s.setConn(c); err != nil {
		_ = c.Close()
		return err
	}
	return s.serve(ctx, c)
}

// Start binds the metrics socket and serves in the background until Stop is called.
// Addr is valid as soon as Start returns.
func (s *Server) Start() error {
	s.init()
	c, err := s.socketFactory()()
	if err != nil {
		return err
	}
	if err := s.setConn(c); err != nil {
		_ = c.Close()
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	s.wg.StartWithContext(ctx, func(ctx context.Context) {
		if err := s.serve(ctx, c); unexpectedErr(err) {
			s.Logger.WithError(err).Error("Server stopped")
		}
	})
	return nil
}

// Stop stops a server started with Start and waits for it to finish. Calling Stop more than once is a no-op.
func (s *Server) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

func (s *Server) setConn(c net.PacketConn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return ErrAlreadyStarted
	}
	s.conn = c
	return nil
}

func (s *Server) serve(ctx context.Context, c net.PacketConn) error {
	ctx, cancel := context.WithCancel(ctx)

	var calls *CallRecorder
	if s.RecordCalls {
		calls = s.calls
	}
	receiver := NewMetricReceiver(s.Logger, NewStoreHandler(s.store, calls), s.ReceiveBufferSize)

	s.mu.Lock()
	s.receiver = receiver
	s.mu.Unlock()

	var wg wait.Group
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()
	defer wg.Wait() // Wait for all receivers and the web server to finish
	defer cancel()  // Tell the web server to shutdown
	defer func() {
		// This makes receivers error out and stop
		if e := c.Close(); e != nil {
			s.Logger.Warnf("Error closing socket: %v", e)
		}
	}()

	readers := s.MaxReaders
	if readers < 1 {
		readers = 1
	}
	for r := 0; r < readers; r++ {
		wg.StartWithContext(ctx, func(ctx context.Context) {
			if err := receiver.Receive(ctx, c); err != nil {
				s.Logger.WithError(err).Warn("Receiver stopped")
			}
		})
	}

	if s.WebAddr != "" {
		hs, err := web.NewHttpServer(s.Logger.WithField("component", "web"), s, s.WebAddr,
			healthcheck.MaybeAppendHealthChecks(nil, s))
		if err != nil {
			return err
		}
		wg.StartWithContext(ctx, hs.Run)
	}

	s.Logger.WithFields(logrus.Fields{
		"address": c.LocalAddr().String(),
		"readers": readers,
	}).Info("Listening for metrics")

	<-ctx.Done()
	return ctx.Err()
}

// HealthChecks reports whether the metrics socket is open.
func (s *Server) HealthChecks() []healthcheck.HealthcheckFunc {
	return []healthcheck.HealthcheckFunc{
		func() (string, healthcheck.HealthyStatus) {
			addr, err := s.Addr()
			if err != nil {
				return "metrics socket: " + err.Error(), healthcheck.Unhealthy
			}
			return "metrics socket: " + addr.String(), healthcheck.Healthy
		},
	}
}

// Addr returns the address of the metrics socket.
func (s *Server) Addr() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, ErrNotStarted
	}
	return s.conn.LocalAddr(), nil
}

// Host returns the host of the metrics socket.
func (s *Server) Host() (string, error) {
	addr, err := s.Addr()
	if err != nil {
		return "", err
	}
	host, _, err := net.SplitHostPort(addr.String())
	return host, err
}

// Port returns the port of the metrics socket, useful after listening on port 0.
func (s *Server) Port() (int, error) {
	addr, err := s.Addr()
	if err != nil {
		return 0, err
	}
	if udpAddr, ok := addr.(*net.UDPAddr); ok {
		return udpAddr.Port, nil
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(port)
}

// GetStats returns the receiver stats of the current or last run.
func (s *Server) GetStats() ReceiverStats {
	s.mu.Lock()
	r := s.receiver
	s.mu.Unlock()
	if r == nil {
		return ReceiverStats{}
	}
	return r.GetStats()
}

// Metric returns the value of the first aggregate named name whose tags include tags.
// A nil tags matches any tag set.
func (s *Server) Metric(name string, tags mockstatsd.Tags) (float64, bool) {
	return s.Store().Read(name, tags)
}

// MetricContents returns the distinct sorted values of a set aggregate.
func (s *Server) MetricContents(name string, tags mockstatsd.Tags) ([]float64, bool) {
	return s.Store().ReadSet(name, tags)
}

// Calls returns the recorded raw payloads.
func (s *Server) Calls() []string {
	s.init()
	return s.calls.Calls()
}

// VerifyCall consumes one recorded payload equal to msg, or returns ErrCallNotFound.
func (s *Server) VerifyCall(msg string) error {
	s.init()
	return s.calls.Verify(msg)
}

// VerifyNoMoreCalls returns ErrUnexpectedCall if a payload equal to msg is still recorded.
func (s *Server) VerifyNoMoreCalls(msg string) error {
	s.init()
	return s.calls.VerifyNoMore(msg)
}

// Reset discards all aggregates and recorded payloads.
func (s *Server) Reset() {
	s.init()
	s.store.Reset()
	s.calls.Reset()
}

func (s *Server) poll() util.BackoffFactory {
	interval := s.PollInterval
	if interval <= 0 {
		interval = mockstatsd.DefaultPollInterval
	}
	return util.NewPollFactory(interval)
}

// AwaitMetric waits until the metric read by Metric(name, tags) equals want, or ctx is done.
// On timeout the last mismatch is returned.
func (s *Server) AwaitMetric(ctx context.Context, name string, tags mockstatsd.Tags, want float64) error {
	id := mockstatsd.NewMetricID(name, tags)
	return util.RetryUntil(ctx, s.poll(), func() error {
		got, ok := s.Metric(name, tags)
		if !ok {
			return fmt.Errorf("%w: %s", ErrMetricNotFound, id)
		}
		if got != want {
			return fmt.Errorf("%w: %s is %v, want %v", ErrValueMismatch, id, got, want)
		}
		return nil
	})
}

// AwaitCall waits until a payload equal to msg is recorded and consumes it like VerifyCall.
func (s *Server) AwaitCall(ctx context.Context, msg string) error {
	return util.RetryUntil(ctx, s.poll(), func() error {
		return s.VerifyCall(msg)
	})
}

func unexpectedErr(err error) bool {
	return err != nil && err != context.Canceled && err != context.DeadlineExceeded
}
