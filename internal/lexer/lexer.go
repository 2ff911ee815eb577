package lexer

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/atlassian/mockstatsd"
)

var (
	// ErrMalformedLine is returned for a line that does not follow name:value|type[|modifier]*.
	ErrMalformedLine = errors.New("malformed line")
	// ErrUnknownMetricKind is returned for a type code outside c, ms, g, h, m and s.
	ErrUnknownMetricKind = errors.New("unknown metric kind")
)

var (
	errMissingKeySep   = fmt.Errorf("%w: missing key separator", ErrMalformedLine)
	errEmptyKey        = fmt.Errorf("%w: key zero len", ErrMalformedLine)
	errMissingValueSep = fmt.Errorf("%w: missing value separator", ErrMalformedLine)
	errInvalidValue    = fmt.Errorf("%w: invalid value", ErrMalformedLine)
	errNaN             = fmt.Errorf("%w: invalid value NaN", ErrMalformedLine)
	errInf             = fmt.Errorf("%w: invalid value Inf", ErrMalformedLine)
	errInvalidRate     = fmt.Errorf("%w: invalid sample rate", ErrMalformedLine)
)

// Lexer turns a single line into a Metric. A Lexer may be reused, but not concurrently.
type Lexer struct {
	// any field added must be considered in Lexer.reset
	input      []byte
	len        uint32
	start      uint32
	pos        uint32
	valueStart uint32
	valueEnd   uint32
	m          *mockstatsd.Metric
	err        error
}

// next returns the byte at pos and advances. ok is false once the input is exhausted;
// any byte value, NUL included, is valid content.
func (l *Lexer) next() (b byte, ok bool) {
	if l.pos >= l.len {
		l.pos++ // keeps pos-1 pointing past the last byte
		return 0, false
	}
	b = l.input[l.pos]
	l.pos++
	return b, true
}

func (l *Lexer) reset() {
	l.start = 0
	l.pos = 0
	l.valueStart = 0
	l.valueEnd = 0
	l.m = nil
	l.err = nil
}

// Run lexes one line. The line must not contain a newline.
func (l *Lexer) Run(input []byte) (*mockstatsd.Metric, error) {
	l.reset()
	l.input = input
	l.len = uint32(len(l.input))
	l.m = &mockstatsd.Metric{Rate: 1}

	for state := lexKeySep; state != nil; {
		state = state(l)
	}
	if l.err != nil {
		return nil, l.err
	}
	v, err := strconv.ParseFloat(string(l.input[l.valueStart:l.valueEnd]), 64)
	if err != nil {
		return nil, fmt.Errorf("%w %q", errInvalidValue, l.input[l.valueStart:l.valueEnd])
	}
	if math.IsNaN(v) {
		return nil, errNaN
	}
	if math.IsInf(v, 0) {
		return nil, errInf
	}
	l.m.Value = v
	return l.m, nil
}

type stateFn func(*Lexer) stateFn

// lex until we find the colon separator between key and value.
func lexKeySep(l *Lexer) stateFn {
	p := bytes.IndexByte(l.input, ':')
	if p == -1 {
		l.err = errMissingKeySep
		return nil
	}
	l.pos = uint32(p) + 1
	return lexKey
}

// lex the key.
func lexKey(l *Lexer) stateFn {
	if l.start == l.pos-1 {
		l.err = errEmptyKey
		return nil
	}
	l.m.Name = string(l.input[l.start : l.pos-1])
	l.start = l.pos
	return lexValueSep
}

// lex until we find the pipe separator between value and type.
func lexValueSep(l *Lexer) stateFn {
	for {
		// the value itself is validated by ParseFloat in Run
		b, ok := l.next()
		if !ok {
			l.err = errMissingValueSep
			return nil
		}
		if b == '|' {
			return lexValue
		}
	}
}

// lex the value.
func lexValue(l *Lexer) stateFn {
	l.valueStart = l.start
	l.valueEnd = l.pos - 1
	l.start = l.pos
	return lexType
}

// lex the type.
func lexType(l *Lexer) stateFn {
	code := l.seekUntil('|')
	switch string(code) {
	case "c":
		l.m.Type = mockstatsd.COUNTER
	case "ms":
		l.m.Type = mockstatsd.TIMER
	case "g":
		l.m.Type = mockstatsd.GAUGE
	case "h":
		l.m.Type = mockstatsd.HISTOGRAM
	case "m":
		l.m.Type = mockstatsd.METER
	case "s":
		l.m.Type = mockstatsd.SET
	default:
		l.err = fmt.Errorf("%w %q", ErrUnknownMetricKind, code)
		return nil
	}
	return lexMetricFields
}

// lex the possible separator between type and the optional fields.
func lexMetricFields(l *Lexer) stateFn {
	// seekUntil only stops at '|' or the end of input.
	if b, ok := l.next(); ok && b == '|' {
		l.start = l.pos
		return lexMetricField
	}
	return nil
}

// lexMetricField lex optional fields sample rate and tags. Will ignore unrecognised and empty fields.
func lexMetricField(l *Lexer) stateFn {
	b, ok := l.next()
	if !ok {
		return nil
	}
	switch b {
	case '@':
		return lexSampleRate
	case '#':
		return lexTags
	case '|':
		l.pos-- // empty field, leave the separator for lexMetricFields
		return lexMetricFields
	default:
		// error not raised to allow new fields to be sent but ignored
		l.seekUntil('|')
		return lexMetricFields
	}
}

// lexSampleRate expects a float value which will be used to set the metric rate.
// Consumes all bytes up to the stop byte ('|') or the end of input. The stop byte is not consumed.
func lexSampleRate(l *Lexer) stateFn {
	data := l.seekUntil('|')
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		l.err = fmt.Errorf("%w %q", errInvalidRate, data)
		return nil
	}
	l.m.Rate = v
	return lexMetricFields
}

// lexTags expects a comma separated list of key:value tags.
// An empty list, an empty tag or a tag without a key is simply ignored.
// Consumes all bytes up to the stop byte ('|') or the end of input. The stop byte is not consumed.
func lexTags(l *Lexer) stateFn {
	l.start = l.pos
	for {
		b, ok := l.next()
		if !ok {
			l.appendTag(l.start, l.len)
			return nil
		}
		switch b {
		case ',':
			l.appendTag(l.start, l.pos-1)
			l.start = l.pos
		case '|':
			l.appendTag(l.start, l.pos-1)
			l.pos-- // reverse one position to support same pattern as seekUntil
			return lexMetricFields
		}
	}
}

func (l *Lexer) appendTag(start, end uint32) {
	data := l.input[start:end]
	idx := bytes.IndexByte(data, ':')
	if idx <= 0 {
		return
	}
	if l.m.Tags == nil {
		l.m.Tags = make(mockstatsd.Tags, 1)
	}
	l.m.Tags[string(data[:idx])] = string(data[idx+1:])
}

// seekUntil returns all bytes up to the stop byte or the end of input.
// The stop byte is not consumed.
func (l *Lexer) seekUntil(stop byte) []byte {
	start := l.pos
	if start >= l.len {
		return nil
	}
	p := bytes.IndexByte(l.input[l.pos:], stop)
	switch p {
	case -1:
		l.pos = l.len
	default:
		l.pos += uint32(p)
	}
	return l.input[start:l.pos]
}
