package lexer

import (
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/mockstatsd"
	"github.com/atlassian/mockstatsd/internal/fixtures"
)

func TestDecoderMultiLine(t *testing.T) {
	t.Parallel()
	metrics, errs := DecodeAll([]byte("g1:1|g\nc1:5|c"))
	require.Empty(t, errs)
	assert.Equal(t, []*mockstatsd.Metric{
		{Name: "g1", Value: 1, Type: mockstatsd.GAUGE, Rate: 1},
		{Name: "c1", Value: 5, Type: mockstatsd.COUNTER, Rate: 1},
	}, metrics)
}

func TestDecoderBlankLines(t *testing.T) {
	t.Parallel()
	tests := map[string]int{
		" \n \nfoo:1|c\n \n":    1,
		"":                      0,
		"\n":                    0,
		"  \n\t\n \r\n":         0,
		"a:1|c\r\nb:2|c\r\n":    2,
		"\n\na:1|c\n\n\nb:2|g": 2,
	}
	for input, expected := range tests {
		input := input
		expected := expected
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			metrics, errs := DecodeAll([]byte(input))
			assert.Empty(t, errs)
			assert.Len(t, metrics, expected)
		})
	}
}

func TestDecoderBlankLinesKeepsMetric(t *testing.T) {
	t.Parallel()
	d := NewDecoder([]byte(" \n \nfoo:1|c\n \n"))
	m, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, &mockstatsd.Metric{Name: "foo", Value: 1, Type: mockstatsd.COUNTER, Rate: 1}, m)

	_, err = d.Next()
	assert.Equal(t, io.EOF, err)
	_, err = d.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderErrorIsolatedToLine(t *testing.T) {
	t.Parallel()
	d := NewDecoder([]byte("foo:1|zz\nbar:2|c\nbaz\nqux:3|g"))

	_, err := d.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMetricKind)
	var lineErr *LineError
	require.True(t, errors.As(err, &lineErr))
	assert.Equal(t, "foo:1|zz", lineErr.Line)

	m, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, "bar", m.Name)

	_, err = d.Next()
	assert.ErrorIs(t, err, ErrMalformedLine)

	m, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, "qux", m.Name)

	_, err = d.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecodeAllCollectsErrors(t *testing.T) {
	t.Parallel()
	metrics, errs := DecodeAll([]byte("a:1|c\nfoo:1|zz\nb:x|c\nc:2|s"))
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], ErrUnknownMetricKind)
	assert.ErrorIs(t, errs[1], ErrMalformedLine)
	require.Len(t, metrics, 2)
	assert.Equal(t, "a", metrics[0].Name)
	assert.Equal(t, "c", metrics[1].Name)
}

func TestLineErrorMessage(t *testing.T) {
	t.Parallel()
	err := &LineError{Line: "foo:1|zz", Err: ErrUnknownMetricKind}
	assert.Equal(t, `unknown metric kind: "foo:1|zz"`, err.Error())
}

func TestDecoderRoundTrip(t *testing.T) {
	t.Parallel()
	expected := []*mockstatsd.Metric{
		fixtures.MakeMetric(),
		fixtures.MakeMetric(fixtures.Name("req"), fixtures.Type(mockstatsd.TIMER), fixtures.Value(12), fixtures.Rate(0.1)),
		fixtures.MakeMetric(fixtures.Name("req"), fixtures.DropTag("host"), fixtures.Value(3)),
		fixtures.MakeMetric(fixtures.Name("users"), fixtures.Type(mockstatsd.SET), fixtures.NoTags),
		fixtures.MakeMetric(fixtures.Name("load"), fixtures.Type(mockstatsd.GAUGE), fixtures.Value(-0.5), fixtures.AddTag("env", "test")),
	}
	lines := make([]string, 0, len(expected))
	// reverse order, so the comparison depends on sorting
	for i := len(expected) - 1; i >= 0; i-- {
		lines = append(lines, fixtures.Line(expected[i]))
	}

	actual, errs := DecodeAll([]byte(strings.Join(lines, "\n")))
	require.Empty(t, errs)
	sort.Slice(expected, fixtures.SortCompare(expected))
	sort.Slice(actual, fixtures.SortCompare(actual))
	assert.Equal(t, expected, actual)
}
