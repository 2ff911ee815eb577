// Package client sends StatsD lines over UDP. It is the counterpart of the mock server and is used
// to drive it from tests.
package client

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/atlassian/mockstatsd"
)

const dialTimeout = 1 * time.Second

// Client writes one datagram per call to a StatsD endpoint.
type Client struct {
	logger  logrus.FieldLogger
	limiter *rate.Limiter

	mu   sync.Mutex
	conn net.Conn
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for debug output of sent payloads.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit paces sends to limit packets per second with the given burst.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// New dials addr over UDP.
func New(addr string, opts ...Option) (*Client, error) {
	conn, err := net.DialTimeout("udp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}
	c := &Client{
		logger: logrus.StandardLogger(),
		conn:   conn,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type lineOptions struct {
	rate    float64
	hasRate bool
	tags    mockstatsd.Tags
}

// MetricOption adds a modifier to a single line.
type MetricOption func(*lineOptions)

// WithSampleRate appends |@rate to the line.
func WithSampleRate(r float64) MetricOption {
	return func(o *lineOptions) {
		o.rate = r
		o.hasRate = true
	}
}

// WithTags appends |#k:v,... to the line. Tags are written sorted by key.
func WithTags(tags mockstatsd.Tags) MetricOption {
	return func(o *lineOptions) {
		o.tags = tags
	}
}

// IncrementCounter sends name:delta|c.
func (c *Client) IncrementCounter(name string, delta int64, opts ...MetricOption) error {
	return c.Send(formatLine(name, strconv.FormatInt(delta, 10), mockstatsd.COUNTER, opts))
}

// DecrementCounter sends name:-1|c.
func (c *Client) DecrementCounter(name string, opts ...MetricOption) error {
	return c.IncrementCounter(name, -1, opts...)
}

// Time sends name:value|ms.
func (c *Client) Time(name string, value int64, opts ...MetricOption) error {
	return c.Send(formatLine(name, strconv.FormatInt(value, 10), mockstatsd.TIMER, opts))
}

// Gauge sends name:value|g.
func (c *Client) Gauge(name string, value float64, opts ...MetricOption) error {
	return c.Send(formatLine(name, formatFloat(value), mockstatsd.GAUGE, opts))
}

// Histogram sends name:value|h.
func (c *Client) Histogram(name string, value float64, opts ...MetricOption) error {
	return c.Send(formatLine(name, formatFloat(value), mockstatsd.HISTOGRAM, opts))
}

// Meter sends name:value|m.
func (c *Client) Meter(name string, value float64, opts ...MetricOption) error {
	return c.Send(formatLine(name, formatFloat(value), mockstatsd.METER, opts))
}

// Set sends name:value|s.
func (c *Client) Set(name string, value float64, opts ...MetricOption) error {
	return c.Send(formatLine(name, formatFloat(value), mockstatsd.SET, opts))
}

// Send writes data as a single datagram. data may hold several newline separated lines.
func (c *Client) Send(data string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(context.Background()); err != nil {
			return err
		}
	}
	c.logger.WithField("payload", data).Debug("Sending data")

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.conn.Write([]byte(data))
	return err
}

// Close closes the underlying socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// Format renders m as a single line. A rate of 0 or 1 is omitted.
func Format(m *mockstatsd.Metric) string {
	var opts []MetricOption
	if m.Rate != 0 && m.Rate != 1 {
		opts = append(opts, WithSampleRate(m.Rate))
	}
	if len(m.Tags) > 0 {
		opts = append(opts, WithTags(m.Tags))
	}
	return formatLine(m.Name, formatFloat(m.Value), m.Type, opts)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatLine(name, value string, t mockstatsd.MetricType, opts []MetricOption) string {
	var o lineOptions
	for _, opt := range opts {
		opt(&o)
	}

	sb := &strings.Builder{}
	sb.WriteString(name)
	sb.WriteByte(':')
	sb.WriteString(value)
	sb.WriteByte('|')
	sb.WriteString(t.Code())
	if o.hasRate {
		sb.WriteString("|@")
		sb.WriteString(formatFloat(o.rate))
	}
	if len(o.tags) > 0 {
		sb.WriteString("|#")
		sb.WriteString(o.tags.String())
	}
	return sb.String()
}
