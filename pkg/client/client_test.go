package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/atlassian/mockstatsd"
	"github.com/atlassian/mockstatsd/internal/fixtures"
	"github.com/atlassian/mockstatsd/internal/lexer"
	"github.com/atlassian/mockstatsd/pkg/statsd"
)

func TestFormatLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		value string
		mtype mockstatsd.MetricType
		opts  []MetricOption
		want  string
	}{
		{name: "c", value: "1", mtype: mockstatsd.COUNTER, want: "c:1|c"},
		{name: "t", value: "320", mtype: mockstatsd.TIMER, opts: []MetricOption{WithSampleRate(0.1)}, want: "t:320|ms|@0.1"},
		{name: "g", value: "-2.5", mtype: mockstatsd.GAUGE, opts: []MetricOption{WithTags(mockstatsd.Tags{"b": "2", "a": "1"})}, want: "g:-2.5|g|#a:1,b:2"},
		{name: "h", value: "7", mtype: mockstatsd.HISTOGRAM, opts: []MetricOption{WithSampleRate(1), WithTags(mockstatsd.Tags{"env": "x"})}, want: "h:7|h|@1|#env:x"},
		{name: "m", value: "3", mtype: mockstatsd.METER, opts: []MetricOption{WithTags(nil)}, want: "m:3|m"},
		{name: "s", value: "42", mtype: mockstatsd.SET, want: "s:42|s"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.want, func(t *testing.T) {
			t.Parallel()
			line := formatLine(tc.name, tc.value, tc.mtype, tc.opts)
			assert.Equal(t, tc.want, line)

			// every formatted line must decode back to the same metric
			m, err := lexer.NewDecoder([]byte(line)).Next()
			require.NoError(t, err)
			assert.Equal(t, tc.name, m.Name)
			assert.Equal(t, tc.mtype, m.Type)
		})
	}
}

func TestFormatFloat(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1", formatFloat(1))
	assert.Equal(t, "0.25", formatFloat(0.25))
	assert.Equal(t, "1000000", formatFloat(1e6))
}

func TestFormatRoundTrip(t *testing.T) {
	t.Parallel()
	metrics := []*mockstatsd.Metric{
		fixtures.MakeMetric(),
		fixtures.MakeMetric(fixtures.Type(mockstatsd.SET), fixtures.Value(3), fixtures.NoTags),
		fixtures.MakeMetric(fixtures.Type(mockstatsd.TIMER), fixtures.Rate(0.25)),
		fixtures.MakeMetric(fixtures.Type(mockstatsd.GAUGE), fixtures.Value(-1.5), fixtures.AddTag("env", "test")),
	}
	for _, m := range metrics {
		m := m
		t.Run(m.String(), func(t *testing.T) {
			t.Parallel()
			decoded, err := lexer.NewDecoder([]byte(Format(m))).Next()
			require.NoError(t, err)
			assert.Equal(t, m, decoded)
		})
	}
}

func listen(t *testing.T) net.PacketConn {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

func readPacket(t *testing.T, pc net.PacketConn) string {
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1500)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestClientSendsOneDatagramPerCall(t *testing.T) {
	t.Parallel()
	pc := listen(t)
	c, err := New(pc.LocalAddr().String(), WithLogger(fixtures.NewTestLogger(t)))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.IncrementCounter("hits", 3))
	assert.Equal(t, "hits:3|c", readPacket(t, pc))
	require.NoError(t, c.DecrementCounter("hits", WithSampleRate(0.5)))
	assert.Equal(t, "hits:-1|c|@0.5", readPacket(t, pc))
	require.NoError(t, c.Time("latency", 12))
	assert.Equal(t, "latency:12|ms", readPacket(t, pc))
	require.NoError(t, c.Gauge("temp", 21.5))
	assert.Equal(t, "temp:21.5|g", readPacket(t, pc))
	require.NoError(t, c.Histogram("size", 4))
	assert.Equal(t, "size:4|h", readPacket(t, pc))
	require.NoError(t, c.Meter("rps", 9))
	assert.Equal(t, "rps:9|m", readPacket(t, pc))
	require.NoError(t, c.Set("users", 7, WithTags(mockstatsd.Tags{"env": "test"})))
	assert.Equal(t, "users:7|s|#env:test", readPacket(t, pc))
	require.NoError(t, c.Send("raw:1|c\nraw:2|c"))
	assert.Equal(t, "raw:1|c\nraw:2|c", readPacket(t, pc))
}

func TestClientRateLimit(t *testing.T) {
	t.Parallel()
	pc := listen(t)
	c, err := New(pc.LocalAddr().String(), WithRateLimit(rate.Every(20*time.Millisecond), 1))
	require.NoError(t, err)
	defer c.Close()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, c.IncrementCounter("paced", 1))
	}
	assert.GreaterOrEqual(t, int64(time.Since(start)), int64(35*time.Millisecond))
}

func TestClientClose(t *testing.T) {
	t.Parallel()
	pc := listen(t)
	c, err := New(pc.LocalAddr().String())
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Error(t, c.Send("late:1|c"))
}

func TestClientAgainstServer(t *testing.T) {
	t.Parallel()
	s := statsd.NewServer()
	s.MetricsAddr = "127.0.0.1:0"
	s.PollInterval = time.Millisecond
	s.Logger = fixtures.NewTestLogger(t)
	require.NoError(t, s.Start())
	defer s.Stop()

	addr, err := s.Addr()
	require.NoError(t, err)
	c, err := New(addr.String())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tags := mockstatsd.Tags{"env": "test", "host": "a"}
	require.NoError(t, c.IncrementCounter("requests", 5, WithTags(tags)))
	require.NoError(t, c.DecrementCounter("requests", WithTags(tags)))
	require.NoError(t, c.Set("visitors", 2))
	require.NoError(t, c.Set("visitors", 1))

	require.NoError(t, s.AwaitMetric(ctx, "requests", mockstatsd.Tags{"env": "test"}, 4))
	require.NoError(t, s.AwaitMetric(ctx, "visitors", nil, 1))
	values, ok := s.MetricContents("visitors", nil)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, values)
	require.NoError(t, s.AwaitCall(ctx, "requests:5|c|#env:test,host:a"))
}
