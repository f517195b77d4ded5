package feed

import (
	"sync/atomic"
	"time"
)

// Cache holds the latest published Snapshot. Load replaces the snapshot with a
// single pointer store, so readers see either the previous or the new
// revision in full. The zero value is an empty cache ready for use.
type Cache struct {
	current atomic.Pointer[Snapshot]

	// now is replaceable in tests.
	now func() time.Time
}

func NewCache() *Cache {
	return &Cache{}
}

// Load validates doc, builds a fresh snapshot from it and publishes it. On
// error the previously published snapshot stays in place.
func (c *Cache) Load(doc *Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	c.current.Store(newSnapshot(doc, c.clock().UTC()))
	return nil
}

// Snapshot returns the current snapshot, or nil before the first Load.
func (c *Cache) Snapshot() *Snapshot {
	return c.current.Load()
}

// TagNames returns the sorted tag names of the current snapshot.
func (c *Cache) TagNames() []string {
	return c.current.Load().TagNames()
}

// Tag looks name up in the current snapshot. See Snapshot.Tag.
func (c *Cache) Tag(name string, includeIPv6 bool) ([]string, bool) {
	return c.current.Load().Tag(name, includeIPv6)
}

func (c *Cache) ChangeNumber() (int64, bool) {
	snap := c.current.Load()
	if snap == nil {
		return 0, false
	}
	return snap.ChangeNumber, true
}

func (c *Cache) LastRefreshedAt() (time.Time, bool) {
	snap := c.current.Load()
	if snap == nil {
		return time.Time{}, false
	}
	return snap.RefreshedAt, true
}

func (c *Cache) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}
