//go:build gofuzz
// +build gofuzz

package lexer

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
)

func Fuzz(data []byte) int {
	metrics, errs := DecodeAll(data)
	for _, err := range errs {
		if !errors.Is(err, ErrMalformedLine) && !errors.Is(err, ErrUnknownMetricKind) {
			panic(fmt.Errorf("unexpected error kind: %v", err))
		}
	}
	for _, m := range metrics {
		if m.Name == "" || m.Type.Code() == "" {
			panic(fmt.Errorf("invalid metric: %+v", m))
		}
		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			panic(fmt.Errorf("non-finite value: %+v", m))
		}
		for k, v := range m.Tags {
			if k == "" || strings.ContainsAny(k, ",|") || strings.ContainsAny(v, ",|") {
				panic(fmt.Errorf("tag %q:%q crossed a separator: %+v", k, v, m))
			}
			// every tag must come from the line itself, NUL bytes included
			if !bytes.Contains(data, []byte(k+":"+v)) {
				panic(fmt.Errorf("tag %q:%q not in input", k, v))
			}
		}
	}
	if len(metrics) == 0 {
		return 0
	}
	return 1
}
