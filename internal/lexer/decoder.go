package lexer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/atlassian/mockstatsd"
)

// LineError is returned by Decoder.Next for a line that could not be decoded.
// It unwraps to ErrMalformedLine or ErrUnknownMetricKind.
type LineError struct {
	Line string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Line)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Decoder yields the metrics of a newline separated payload, one line at a time.
// A Decoder is single pass and not safe for concurrent use.
type Decoder struct {
	payload []byte
	lexer   Lexer
}

func NewDecoder(payload []byte) *Decoder {
	return &Decoder{payload: payload}
}

// Next returns the next metric of the payload. Blank lines are skipped.
// io.EOF is returned once the payload is exhausted. Any other error is a *LineError
// scoped to a single line and Next may be called again to continue with the remaining lines.
func (d *Decoder) Next() (*mockstatsd.Metric, error) {
	for len(d.payload) > 0 {
		var line []byte
		if idx := bytes.IndexByte(d.payload, '\n'); idx >= 0 {
			line, d.payload = d.payload[:idx], d.payload[idx+1:]
		} else {
			line, d.payload = d.payload, nil
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		m, err := d.lexer.Run(line)
		if err != nil {
			return nil, &LineError{Line: string(line), Err: err}
		}
		return m, nil
	}
	return nil, io.EOF
}

// DecodeAll decodes the whole payload. Bad lines are collected in errs and do not stop decoding.
func DecodeAll(payload []byte) (metrics []*mockstatsd.Metric, errs []error) {
	d := NewDecoder(payload)
	for {
		m, err := d.Next()
		if err == io.EOF {
			return metrics, errs
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		metrics = append(metrics, m)
	}
}
