package fixtures

import (
	"fmt"

	"github.com/atlassian/mockstatsd"
)

type MetricOpt func(m *mockstatsd.Metric)

// MakeMetric provides a way to build a metric for tests.
func MakeMetric(opts ...MetricOpt) *mockstatsd.Metric {
	m := &mockstatsd.Metric{
		Type:  mockstatsd.COUNTER,
		Name:  "name",
		Value: 1,
		Rate:  1,
		Tags: mockstatsd.Tags{
			"foo":  "bar",
			"host": "baz",
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func Name(n string) MetricOpt {
	return func(m *mockstatsd.Metric) {
		m.Name = n
	}
}

func Value(v float64) MetricOpt {
	return func(m *mockstatsd.Metric) {
		m.Value = v
	}
}

func Type(t mockstatsd.MetricType) MetricOpt {
	return func(m *mockstatsd.Metric) {
		m.Type = t
	}
}

func Rate(r float64) MetricOpt {
	return func(m *mockstatsd.Metric) {
		m.Rate = r
	}
}

func AddTag(k, v string) MetricOpt {
	return func(m *mockstatsd.Metric) {
		if m.Tags == nil {
			m.Tags = mockstatsd.Tags{}
		}
		m.Tags[k] = v
	}
}

func DropTag(k string) MetricOpt {
	return func(m *mockstatsd.Metric) {
		if _, ok := m.Tags[k]; !ok {
			panic(fmt.Sprintf("failed to find tag %s while building metric", k))
		}
		delete(m.Tags, k)
	}
}

func NoTags(m *mockstatsd.Metric) {
	m.Tags = nil
}

// Line renders m in the line protocol.
func Line(m *mockstatsd.Metric) string {
	line := fmt.Sprintf("%s:%g|%s", m.Name, m.Value, m.Type.Code())
	if m.Rate != 1 {
		line += fmt.Sprintf("|@%g", m.Rate)
	}
	if len(m.Tags) > 0 {
		line += "|#" + m.Tags.String()
	}
	return line
}

// SortCompare func for metrics so they can be compared with require.EqualValues
// Invoke with sort.Slice(x, SortCompare(x))
func SortCompare(ms []*mockstatsd.Metric) func(i, j int) bool {
	return func(i, j int) bool {
		if ms[i].Name == ms[j].Name {
			if len(ms[i].Tags) == len(ms[j].Tags) {
				return ms[i].Value < ms[j].Value
			}
			return len(ms[i].Tags) < len(ms[j].Tags)
		}
		return ms[i].Name < ms[j].Name
	}
}
