package main

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync/atomic"

	"github.com/atlassian/mockstatsd"
	"github.com/atlassian/mockstatsd/pkg/client"
)

type metricData struct {
	count           uint64 // atomic
	kind            mockstatsd.MetricType
	nameFormat      string
	nameCardinality uint
	tagCardinality  []uint
	valueLimit      uint
}

type metricGenerator struct {
	rnd   *rand.Rand
	kinds []*metricData
}

func newMetricData(opts *commandOptions, kind mockstatsd.MetricType, count uint64, nameCard uint, tagCard []uint, valueLimit uint) *metricData {
	return &metricData{
		count:           count / uint64(opts.Workers),
		kind:            kind,
		nameFormat:      fmt.Sprintf("%s%s%s", opts.MetricPrefix, kind, opts.MetricSuffix),
		nameCardinality: nameCard,
		tagCardinality:  tagCard,
		valueLimit:      valueLimit,
	}
}

func newMetricGenerator(opts *commandOptions, rnd *rand.Rand) *metricGenerator {
	return &metricGenerator{
		rnd: rnd,
		kinds: []*metricData{
			newMetricData(opts, mockstatsd.COUNTER, opts.Counts.Counter, opts.NameCard.Counter, opts.TagCard.Counter, opts.ValueRange.Counter),
			newMetricData(opts, mockstatsd.GAUGE, opts.Counts.Gauge, opts.NameCard.Gauge, opts.TagCard.Gauge, opts.ValueRange.Gauge),
			newMetricData(opts, mockstatsd.SET, opts.Counts.Set, opts.NameCard.Set, opts.TagCard.Set, opts.ValueRange.Set),
			newMetricData(opts, mockstatsd.TIMER, opts.Counts.Timer, opts.NameCard.Timer, opts.TagCard.Timer, opts.ValueRange.Timer),
			newMetricData(opts, mockstatsd.HISTOGRAM, opts.Counts.Histogram, opts.NameCard.Histogram, opts.TagCard.Histogram, opts.ValueRange.Histogram),
			newMetricData(opts, mockstatsd.METER, opts.Counts.Meter, opts.NameCard.Meter, opts.TagCard.Meter, opts.ValueRange.Meter),
		},
	}
}

func (md *metricData) genTags(r *rand.Rand) mockstatsd.Tags {
	if len(md.tagCardinality) == 0 {
		return nil
	}
	tags := make(mockstatsd.Tags, len(md.tagCardinality))
	for idx, c := range md.tagCardinality {
		tags["tag"+strconv.Itoa(idx)] = strconv.Itoa(r.Intn(int(c)))
	}
	return tags
}

func (md *metricData) genValue(r *rand.Rand) float64 {
	switch md.kind {
	case mockstatsd.COUNTER:
		return float64(1 + r.Intn(int(md.valueLimit+1)))
	case mockstatsd.TIMER:
		// Timers aggregate as integers
		return float64(r.Intn(int(md.valueLimit + 1)))
	case mockstatsd.SET, mockstatsd.GAUGE:
		if md.valueLimit == 0 {
			return 0
		}
		return float64(r.Intn(int(md.valueLimit)))
	}
	return r.Float64() * float64(md.valueLimit)
}

func (md *metricData) gen(r *rand.Rand) *mockstatsd.Metric {
	atomic.AddUint64(&md.count, ^uint64(0))
	return &mockstatsd.Metric{
		Name:  fmt.Sprintf(md.nameFormat, r.Intn(int(md.nameCardinality))),
		Value: md.genValue(r),
		Rate:  1,
		Tags:  md.genTags(r),
		Type:  md.kind,
	}
}

// next returns the next random line, or false once every count is exhausted.
func (mg *metricGenerator) next() (string, bool) {
	// We can safely read these non-atomically, because this goroutine is the only one that writes to them.
	total := uint64(0)
	for _, md := range mg.kinds {
		total += md.count
	}
	if total == 0 {
		return "", false
	}

	n := uint64(mg.rnd.Int63n(int64(total)))
	for _, md := range mg.kinds {
		if n < md.count {
			return client.Format(md.gen(mg.rnd)), true
		}
		n -= md.count
	}
	panic("unreachable")
}

// remaining returns the number of lines left per kind.
func (mg *metricGenerator) remaining() map[mockstatsd.MetricType]uint64 {
	left := make(map[mockstatsd.MetricType]uint64, len(mg.kinds))
	for _, md := range mg.kinds {
		left[md.kind] = atomic.LoadUint64(&md.count)
	}
	return left
}
