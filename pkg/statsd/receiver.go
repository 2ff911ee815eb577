package statsd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tilinna/clock"

	"github.com/atlassian/mockstatsd"
	"github.com/atlassian/mockstatsd/internal/lexer"
)

// ReceiverStats holds statistics for a Receiver.
type ReceiverStats struct {
	LastPacket      time.Time
	BadLines        uint64
	PacketsReceived uint64
	MetricsReceived uint64
}

// MetricReceiver receives data on its PacketConn and converts lines into Metrics.
// For each mockstatsd.Metric it calls Handler.DispatchMetric()
type MetricReceiver struct {
	// Counter fields below must be read/written only using atomic instructions.
	// 64-bit fields must be the first fields in the struct to guarantee proper memory alignment.
	// See https://golang.org/pkg/sync/atomic/#pkg-note-BUG
	lastPacket      int64 // When last packet was received. Unix timestamp in nsec.
	badLines        uint64
	packetsReceived uint64
	metricsReceived uint64

	logger     logrus.FieldLogger
	handler    Handler // handler to invoke
	bufferSize int
}

// NewMetricReceiver initialises a new MetricReceiver.
func NewMetricReceiver(logger logrus.FieldLogger, handler Handler, bufferSize int) *MetricReceiver {
	if bufferSize <= 0 {
		bufferSize = mockstatsd.DefaultReceiveBufferSize
	}
	return &MetricReceiver{
		logger:     logger,
		handler:    handler,
		bufferSize: bufferSize,
	}
}

// GetStats returns current Receiver stats. Safe for concurrent use.
func (mr *MetricReceiver) GetStats() ReceiverStats {
	stats := ReceiverStats{
		BadLines:        atomic.LoadUint64(&mr.badLines),
		PacketsReceived: atomic.LoadUint64(&mr.packetsReceived),
		MetricsReceived: atomic.LoadUint64(&mr.metricsReceived),
	}
	if last := atomic.LoadInt64(&mr.lastPacket); last != 0 {
		stats.LastPacket = time.Unix(0, last)
	}
	return stats
}

// Receive accepts incoming datagrams on c, parses them and calls Handler.DispatchMetric() for each metric.
// It returns nil once c is closed or ctx is done.
func (mr *MetricReceiver) Receive(ctx context.Context, c net.PacketConn) error {
	buf := make([]byte, mr.bufferSize)
	for {
		// This will error out when the socket is closed.
		nbytes, addr, err := c.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if netErr, ok := err.(net.Error); ok && !netErr.Temporary() {
				select {
				case <-ctx.Done():
				default:
					return fmt.Errorf("non-temporary error reading from socket: %w", err)
				}
				return nil
			}
			mr.logger.Warnf("Error reading from socket: %v", err)
			continue
		}
		atomic.AddUint64(&mr.packetsReceived, 1)
		atomic.StoreInt64(&mr.lastPacket, clock.FromContext(ctx).Now().UnixNano())
		if err := mr.HandlePacket(ctx, addr, buf[:nbytes]); err != nil {
			if err == context.Canceled || err == context.DeadlineExceeded {
				return err
			}
			mr.logger.Warnf("Failed to handle packet: %v", err)
		}
	}
}

// HandlePacket handles the contents of a datagram and calls Handler.DispatchMetric()
// for each line that successfully parses into a mockstatsd.Metric.
// A bad line is counted and logged; the remaining lines are still handled.
func (mr *MetricReceiver) HandlePacket(ctx context.Context, addr net.Addr, msg []byte) error {
	if ph, ok := mr.handler.(PacketHandler); ok {
		ph.DispatchPacket(ctx, msg)
	}
	var numMetrics uint64
	var exitError error
	d := lexer.NewDecoder(msg)
	for {
		metric, err := d.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// logging as debug to avoid spamming logs when a bad actor sends
			// badly formatted messages
			mr.logger.Debugf("Error parsing line from %s: %v", addrString(addr), err)
			atomic.AddUint64(&mr.badLines, 1)
			continue
		}
		numMetrics++
		if err = mr.handler.DispatchMetric(ctx, metric); err != nil {
			if err == context.Canceled || err == context.DeadlineExceeded {
				exitError = err
				break
			}
			mr.logger.Warnf("Error dispatching metric %s from %s: %v", metric, addrString(addr), err)
		}
	}
	atomic.AddUint64(&mr.metricsReceived, numMetrics)
	return exitError
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return "unknown"
	}
	return addr.String()
}
