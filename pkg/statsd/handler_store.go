package statsd

import (
	"context"

	"github.com/atlassian/mockstatsd"
	"github.com/atlassian/mockstatsd/pkg/store"
)

// StoreHandler merges every metric into a store.Store and, when calls is not nil, records raw payloads.
type StoreHandler struct {
	store *store.Store
	calls *CallRecorder
}

// NewStoreHandler initialises a new StoreHandler. calls may be nil.
func NewStoreHandler(s *store.Store, calls *CallRecorder) *StoreHandler {
	return &StoreHandler{
		store: s,
		calls: calls,
	}
}

// DispatchMetric merges m into the store.
func (sh *StoreHandler) DispatchMetric(ctx context.Context, m *mockstatsd.Metric) error {
	sh.store.Receive(m)
	return nil
}

// DispatchPacket records the raw payload.
func (sh *StoreHandler) DispatchPacket(ctx context.Context, payload []byte) {
	if sh.calls != nil {
		sh.calls.Record(payload)
	}
}
