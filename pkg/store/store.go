package store

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/atlassian/mockstatsd"
)

// DefaultShards is the number of independently locked partitions of a Store.
const DefaultShards = 16

type shard struct {
	mu         sync.RWMutex
	aggregates map[string]*Aggregate   // exact identity key -> aggregate
	byName     map[string][]*Aggregate // metric name -> aggregates in creation order
}

func (sh *shard) clear() {
	sh.aggregates = make(map[string]*Aggregate)
	sh.byName = make(map[string][]*Aggregate)
}

// Store maps metric identities to aggregates. It is safe for concurrent use.
// Identities are partitioned by metric name, so merges into unrelated metrics
// rarely contend; merges into the same identity are lock free for numeric kinds.
type Store struct {
	logger logrus.FieldLogger
	shards []shard
}

// New creates an empty Store.
func New(logger logrus.FieldLogger) *Store {
	return NewWithShards(logger, DefaultShards)
}

// NewWithShards creates an empty Store with the given number of partitions.
func NewWithShards(logger logrus.FieldLogger, shards int) *Store {
	if shards < 1 {
		shards = 1
	}
	s := &Store{
		logger: logger,
		shards: make([]shard, shards),
	}
	for i := range s.shards {
		s.shards[i].clear()
	}
	return s
}

func (s *Store) shardFor(name string) *shard {
	return &s.shards[mockstatsd.Bucket(name, len(s.shards))]
}

// Merge applies value to the aggregate of the exact identity (name, tags), creating it first if needed.
// The merge rule is that of the kind the aggregate was created with.
func (s *Store) Merge(kind mockstatsd.MetricType, name string, tags mockstatsd.Tags, value, rate float64) {
	key := mockstatsd.FormatKey(name, tags)
	sh := s.shardFor(name)

	sh.mu.RLock()
	if agg, ok := sh.aggregates[key]; ok {
		s.apply(agg, value, rate)
		sh.mu.RUnlock()
		return
	}
	sh.mu.RUnlock()

	sh.mu.Lock()
	defer sh.mu.Unlock()
	agg, ok := sh.aggregates[key]
	if !ok {
		if kind.Code() == "" {
			s.logger.WithField("name", name).Warnf("Dropping metric of unknown type %d", kind)
			return
		}
		agg = newAggregate(mockstatsd.NewMetricID(name, tags), kind)
		sh.aggregates[key] = agg
		sh.byName[name] = append(sh.byName[name], agg)
		s.logger.WithFields(logrus.Fields{
			"id":   agg.id.String(),
			"type": kind.String(),
		}).Debug("Created aggregate")
	}
	s.apply(agg, value, rate)
}

func (s *Store) apply(agg *Aggregate, value, rate float64) {
	if !agg.merge(value, rate) {
		s.logger.WithField("id", agg.id.String()).Warnf("Cannot merge into aggregate of type %s", agg.kind)
	}
}

// Receive merges a decoded metric.
func (s *Store) Receive(m *mockstatsd.Metric) {
	s.Merge(m.Type, m.Name, m.Tags, m.Value, m.Rate)
}

// Find returns the first created aggregate named name whose identity matches tags.
// A nil tags matches any tag set.
func (s *Store) Find(name string, tags mockstatsd.Tags) (*Aggregate, bool) {
	sh := s.shardFor(name)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	for _, agg := range sh.byName[name] {
		if agg.id.Matches(name, tags) {
			return agg, true
		}
	}
	return nil, false
}

// Read returns the scalar value of the aggregate Find selects.
func (s *Store) Read(name string, tags mockstatsd.Tags) (float64, bool) {
	agg, ok := s.Find(name, tags)
	if !ok {
		return 0, false
	}
	return agg.Value(), true
}

// ReadSet returns the distinct sorted values of the aggregate Find selects, if it is a set.
func (s *Store) ReadSet(name string, tags mockstatsd.Tags) ([]float64, bool) {
	agg, ok := s.Find(name, tags)
	if !ok || agg.Type() != mockstatsd.SET {
		return nil, false
	}
	return agg.Values(), true
}

// Each calls f for every aggregate. f must not call back into the Store.
func (s *Store) Each(f func(*Aggregate)) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, aggs := range sh.byName {
			for _, agg := range aggs {
				f(agg)
			}
		}
		sh.mu.RUnlock()
	}
}

// Len returns the number of stored identities.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.aggregates)
		sh.mu.RUnlock()
	}
	return n
}

// Reset discards every aggregate. In-flight merges complete before the reset takes effect.
func (s *Store) Reset() {
	for i := range s.shards {
		s.shards[i].mu.Lock()
	}
	for i := range s.shards {
		s.shards[i].clear()
	}
	for i := range s.shards {
		s.shards[i].mu.Unlock()
	}
	s.logger.Debug("Store reset")
}
