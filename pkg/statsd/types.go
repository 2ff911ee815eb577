package statsd

import (
	"context"

	"github.com/atlassian/mockstatsd"
)

// Handler interface can be used to handle metrics.
type Handler interface {
	// DispatchMetric dispatches metric to the next step in a pipeline.
	DispatchMetric(context.Context, *mockstatsd.Metric) error
}

// PacketHandler is implemented by handlers which also want every raw datagram, before it is decoded.
type PacketHandler interface {
	DispatchPacket(context.Context, []byte)
}
