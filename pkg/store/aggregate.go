package store

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/atlassian/mockstatsd"
)

// Aggregate is the accumulated state of a single MetricID. All methods are safe for concurrent use.
type Aggregate struct {
	// Fields below must be read/written only using atomic instructions.
	// 64-bit fields must be the first fields in the struct to guarantee proper memory alignment.
	sum  int64  // COUNTER, TIMER
	bits uint64 // GAUGE, HISTOGRAM, METER as float64 bits
	rate uint64 // last sample rate as float64 bits

	id   mockstatsd.MetricID
	kind mockstatsd.MetricType

	mu  sync.Mutex
	set []float64 // SET, sorted ascending, distinct
}

func newAggregate(id mockstatsd.MetricID, kind mockstatsd.MetricType) *Aggregate {
	return &Aggregate{
		id:   id,
		kind: kind,
		rate: math.Float64bits(1),
	}
}

// ID returns the identity of the aggregate.
func (a *Aggregate) ID() mockstatsd.MetricID {
	return a.id
}

// Type returns the kind the aggregate was created with.
func (a *Aggregate) Type() mockstatsd.MetricType {
	return a.kind
}

// SampleRate returns the sample rate of the most recent merge. It is never applied to the value.
func (a *Aggregate) SampleRate() float64 {
	return math.Float64frombits(atomic.LoadUint64(&a.rate))
}

// Value returns the scalar value of the aggregate. For a set that is its smallest element, or 0 when empty.
func (a *Aggregate) Value() float64 {
	switch a.kind {
	case mockstatsd.COUNTER, mockstatsd.TIMER:
		return float64(atomic.LoadInt64(&a.sum))
	case mockstatsd.GAUGE, mockstatsd.HISTOGRAM, mockstatsd.METER:
		return math.Float64frombits(atomic.LoadUint64(&a.bits))
	case mockstatsd.SET:
		a.mu.Lock()
		defer a.mu.Unlock()
		if len(a.set) == 0 {
			return 0
		}
		return a.set[0]
	}
	return 0
}

// Values returns a sorted copy of the distinct values of a set aggregate, or nil for other kinds.
func (a *Aggregate) Values() []float64 {
	if a.kind != mockstatsd.SET {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	values := make([]float64, len(a.set))
	copy(values, a.set)
	return values
}

// merge applies value according to the kind of the aggregate. It reports false for an unknown kind.
func (a *Aggregate) merge(value, rate float64) bool {
	switch a.kind {
	case mockstatsd.COUNTER, mockstatsd.TIMER:
		atomic.AddInt64(&a.sum, int64(value))
	case mockstatsd.GAUGE:
		for {
			old := atomic.LoadUint64(&a.bits)
			updated := math.Float64bits(math.Float64frombits(old) + value)
			if atomic.CompareAndSwapUint64(&a.bits, old, updated) {
				break
			}
		}
	case mockstatsd.HISTOGRAM, mockstatsd.METER:
		atomic.StoreUint64(&a.bits, math.Float64bits(value))
	case mockstatsd.SET:
		a.mu.Lock()
		idx := sort.SearchFloat64s(a.set, value)
		if idx == len(a.set) || a.set[idx] != value {
			a.set = append(a.set, 0)
			copy(a.set[idx+1:], a.set[idx:])
			a.set[idx] = value
		}
		a.mu.Unlock()
	default:
		return false
	}
	atomic.StoreUint64(&a.rate, math.Float64bits(rate))
	return true
}
