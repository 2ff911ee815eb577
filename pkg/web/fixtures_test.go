package web_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/atlassian/mockstatsd"
)

type fakeInspector struct {
	mu      sync.Mutex
	metrics map[string]float64
	sets    map[string][]float64
	tags    []mockstatsd.Tags
	calls   []string
	resets  int
}

func (fi *fakeInspector) Metric(name string, tags mockstatsd.Tags) (float64, bool) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.tags = append(fi.tags, tags)
	v, ok := fi.metrics[name]
	return v, ok
}

func (fi *fakeInspector) MetricContents(name string, tags mockstatsd.Tags) ([]float64, bool) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.tags = append(fi.tags, tags)
	v, ok := fi.sets[name]
	return v, ok
}

func (fi *fakeInspector) Calls() []string {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.calls
}

func (fi *fakeInspector) Reset() {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.resets++
	fi.metrics = nil
	fi.sets = nil
	fi.calls = nil
}

func (fi *fakeInspector) queriedTags() []mockstatsd.Tags {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return append([]mockstatsd.Tags(nil), fi.tags...)
}

func testContext(t *testing.T) (context.Context, func()) {
	ctxTest, completeTest := context.WithTimeout(context.Background(), 1100*time.Millisecond)
	go func() {
		after := time.NewTimer(1 * time.Second)
		select {
		case <-ctxTest.Done():
			after.Stop()
		case <-after.C:
			assert.Fail(t, "test timed out")
		}
	}()
	return ctxTest, completeTest
}
