package mockstatsd

import (
	"errors"
	"sort"
	"strings"
)

// Tags represents a set of "key:value" tags. Keys are unique, order is irrelevant.
type Tags map[string]string

// ErrInvalidTag is returned by ParseTags for a tag without a key.
var ErrInvalidTag = errors.New("tag must be in key:value form")

// String returns a comma-separated "key:value" representation of the tags, sorted by key.
func (tags Tags) String() string {
	if len(tags) == 0 {
		return ""
	}
	keys := tags.keys()
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte(':')
		sb.WriteString(tags[k])
	}
	return sb.String()
}

func (tags Tags) keys() []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Copy returns a copy of the Tags
func (tags Tags) Copy() Tags {
	if tags == nil {
		return nil
	}
	tagCopy := make(Tags, len(tags))
	for k, v := range tags {
		tagCopy[k] = v
	}
	return tagCopy
}

// Contains reports whether every tag in wanted is present in tags with the same value.
func (tags Tags) Contains(wanted Tags) bool {
	if len(wanted) > len(tags) {
		return false
	}
	for k, v := range wanted {
		if have, ok := tags[k]; !ok || have != v {
			return false
		}
	}
	return true
}

// SplitTag splits "key:value" on the first colon. Values may contain colons.
func SplitTag(tag string) (key, value string, ok bool) {
	idx := strings.IndexByte(tag, ':')
	if idx <= 0 {
		return "", "", false
	}
	return tag[:idx], tag[idx+1:], true
}

// ParseTags builds Tags from a list of "key:value" strings. A later duplicate key wins.
func ParseTags(list []string) (Tags, error) {
	if len(list) == 0 {
		return nil, nil
	}
	tags := make(Tags, len(list))
	for _, t := range list {
		k, v, ok := SplitTag(t)
		if !ok {
			return nil, ErrInvalidTag
		}
		tags[k] = v
	}
	return tags, nil
}
