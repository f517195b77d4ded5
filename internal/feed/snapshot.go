package feed

import (
	"slices"
	"sort"
	"time"

	"github.com/rsx129921/FortinetExternalFeeds/internal/netaddr"
)

// Snapshot is one published revision of the feed. It is never modified after
// the cache hands it out; accessors return copies.
type Snapshot struct {
	ChangeNumber int64
	RefreshedAt  time.Time

	tags  map[string][]string
	names []string
}

func newSnapshot(doc *Document, refreshedAt time.Time) *Snapshot {
	tags := make(map[string][]string, len(doc.Values))
	for _, entry := range doc.Values {
		// Later duplicates replace earlier ones.
		tags[entry.Name] = slices.Clone(entry.prefixes())
	}

	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Snapshot{
		ChangeNumber: *doc.ChangeNumber,
		RefreshedAt:  refreshedAt,
		tags:         tags,
		names:        names,
	}
}

// TagNames returns the tag names in lexicographic order.
func (s *Snapshot) TagNames() []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s.names)
}

// Len returns the number of tags in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Tag returns the prefixes of name in feed order. Unless includeIPv6 is set,
// only IPv4 prefixes are returned. The second result is false when the tag
// does not exist.
func (s *Snapshot) Tag(name string, includeIPv6 bool) ([]string, bool) {
	if s == nil {
		return nil, false
	}
	prefixes, ok := s.tags[name]
	if !ok {
		return nil, false
	}
	if includeIPv6 {
		out := make([]string, len(prefixes))
		copy(out, prefixes)
		return out, true
	}

	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if netaddr.IsIPv4(p) {
			out = append(out, p)
		}
	}
	return out, true
}
