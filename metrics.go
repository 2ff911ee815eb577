package mockstatsd

import (
	"fmt"
	"hash/adler32"
)

// MetricType is an enumeration of all the possible types of Metric.
type MetricType byte

const (
	_ = iota
	// COUNTER is statsd counter type
	COUNTER MetricType = iota
	// TIMER is statsd timer type
	TIMER
	// GAUGE is statsd gauge type
	GAUGE
	// HISTOGRAM is statsd histogram type
	HISTOGRAM
	// METER is statsd meter type
	METER
	// SET is statsd set type
	SET
)

func (m MetricType) String() string {
	switch m {
	case SET:
		return "set"
	case METER:
		return "meter"
	case HISTOGRAM:
		return "histogram"
	case GAUGE:
		return "gauge"
	case TIMER:
		return "timer"
	case COUNTER:
		return "counter"
	}
	return "unknown"
}

// Code returns the wire type code of the metric type, or an empty string for an unknown type.
func (m MetricType) Code() string {
	switch m {
	case SET:
		return "s"
	case METER:
		return "m"
	case HISTOGRAM:
		return "h"
	case GAUGE:
		return "g"
	case TIMER:
		return "ms"
	case COUNTER:
		return "c"
	}
	return ""
}

// Metric represents a single decoded line.
type Metric struct {
	Name  string     // The name of the metric
	Value float64    // The numeric value of the metric
	Rate  float64    // The sampling rate of the metric, 1 when the line has none
	Tags  Tags       // The tags for the metric
	Type  MetricType // The type of metric
}

// ID returns the identity the metric aggregates under.
func (m *Metric) ID() MetricID {
	return NewMetricID(m.Name, m.Tags)
}

func (m *Metric) String() string {
	return fmt.Sprintf("{%s, %s, %f, %f, %s}", m.Type, m.Name, m.Value, m.Rate, m.Tags)
}

// Bucket will pick a distribution bucket for the metric name.  max is exclusive.
func Bucket(metricName string, max int) int {
	bucket := adler32.Checksum([]byte(metricName))
	return int(bucket % uint32(max))
}
