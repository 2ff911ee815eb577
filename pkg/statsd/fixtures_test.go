package statsd

import (
	"context"
	"sync"

	"github.com/atlassian/mockstatsd"
)

type nopHandler struct{}

func (nh nopHandler) DispatchMetric(ctx context.Context, m *mockstatsd.Metric) error {
	return context.Canceled // Stops receiver after first read is done
}

type countingHandler struct {
	mu      sync.Mutex
	metrics []mockstatsd.Metric
	packets []string
}

func (ch *countingHandler) DispatchMetric(ctx context.Context, m *mockstatsd.Metric) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.metrics = append(ch.metrics, *m)
	return nil
}

func (ch *countingHandler) DispatchPacket(ctx context.Context, payload []byte) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.packets = append(ch.packets, string(payload))
}

func (ch *countingHandler) Metrics() []mockstatsd.Metric {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return append([]mockstatsd.Metric(nil), ch.metrics...)
}
