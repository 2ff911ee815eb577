package mockstatsd

import (
	"strconv"
	"strings"
)

// MetricID identifies an aggregate: a metric name plus its full tag set.
// Two MetricIDs are the same aggregate only if their Key is equal; use Matches for queries.
type MetricID struct {
	Name string
	Tags Tags
	key  string
}

// NewMetricID constructs a MetricID. The tags are copied so later changes to the
// caller's map do not affect the identity.
func NewMetricID(name string, tags Tags) MetricID {
	return MetricID{
		Name: name,
		Tags: tags.Copy(),
		key:  FormatKey(name, tags),
	}
}

// Key returns the exact-equality storage key of the identity.
func (id MetricID) Key() string {
	if id.key == "" {
		return FormatKey(id.Name, id.Tags)
	}
	return id.key
}

// Matches reports whether the identity satisfies a query. A nil wantedTags is a
// name-only query. Otherwise every wanted tag must be present with an equal value;
// the identity may carry additional tags.
func (id MetricID) Matches(wantedName string, wantedTags Tags) bool {
	if id.Name != wantedName {
		return false
	}
	if wantedTags == nil {
		return true
	}
	return id.Tags.Contains(wantedTags)
}

func (id MetricID) String() string {
	if len(id.Tags) == 0 {
		return id.Name
	}
	return id.Name + "|#" + id.Tags.String()
}

// FormatKey renders name and tags into a string that uniquely identifies the pair.
// Tags are sorted so insertion order does not matter. Every part is written with its
// byte length in front, so no content of a name, key or value can collide with
// another identity.
func FormatKey(name string, tags Tags) string {
	var sb strings.Builder
	writeKeyPart(&sb, name)
	for _, k := range tags.keys() {
		writeKeyPart(&sb, k)
		writeKeyPart(&sb, tags[k])
	}
	return sb.String()
}

func writeKeyPart(sb *strings.Builder, s string) {
	sb.WriteString(strconv.Itoa(len(s)))
	sb.WriteByte(':')
	sb.WriteString(s)
}
