package device

import (
	"sort"
	"time"
)

// Cache is the in-memory store of last-known device snapshots, keyed by ID.
//
// Entries never expire by time. A device stays cached until it is replaced
// by a newer snapshot, removed by ID, or its vendor is removed wholesale.
//
// Cache is not safe for concurrent use; callers serialise access.
type Cache struct {
	entries map[string]*Entry
	now     func() time.Time
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// UpdateDevices merges a batch of snapshots into the cache.
//
// Every input snapshot replaces (or creates) its entry. Snapshots absent
// from the input are untouched.
//
// Parameters:
//   - snapshots: Poll result from one integration
//
// Returns:
//   - []Snapshot: Copies of the snapshots that are new or differ from the
//     previous entry on a change-relevant field, in input order
func (c *Cache) UpdateDevices(snapshots []Snapshot) []Snapshot {
	now := c.now()
	changed := make([]Snapshot, 0, len(snapshots))

	for _, s := range snapshots {
		prev, ok := c.entries[s.ID]
		if !ok || !fieldsEqual(prev.Snapshot, s) {
			changed = append(changed, s.Clone())
		}
		c.entries[s.ID] = &Entry{Snapshot: s.Clone(), LastUpdated: now}
	}

	return changed
}

// GetAllDevices returns copies of every cached snapshot, ordered by ID.
func (c *Cache) GetAllDevices() []Snapshot {
	out := make([]Snapshot, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Snapshot.Clone())
	}
	sortByID(out)
	return out
}

// GetDevicesByType returns copies of the cached snapshots for one vendor,
// ordered by ID.
func (c *Cache) GetDevicesByType(vendor Vendor) []Snapshot {
	out := make([]Snapshot, 0)
	for _, e := range c.entries {
		if e.Snapshot.Vendor == vendor {
			out = append(out, e.Snapshot.Clone())
		}
	}
	sortByID(out)
	return out
}

// GetDevice returns a copy of one cached snapshot.
// Returns ErrDeviceNotFound if the ID is not cached.
func (c *Cache) GetDevice(id string) (Snapshot, error) {
	e, ok := c.entries[id]
	if !ok {
		return Snapshot{}, ErrDeviceNotFound
	}
	return e.Snapshot.Clone(), nil
}

// LastUpdated returns when the entry for id was last replaced.
func (c *Cache) LastUpdated(id string) (time.Time, bool) {
	e, ok := c.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return e.LastUpdated, true
}

// RemoveDevice deletes the entry for id and reports whether it existed.
func (c *Cache) RemoveDevice(id string) bool {
	if _, ok := c.entries[id]; !ok {
		return false
	}
	delete(c.entries, id)
	return true
}

// RemoveDevicesByType deletes every entry for vendor.
//
// Returns:
//   - int: Number of entries removed
func (c *Cache) RemoveDevicesByType(vendor Vendor) int {
	removed := 0
	for id, e := range c.entries {
		if e.Snapshot.Vendor == vendor {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Clear empties the cache.
func (c *Cache) Clear() {
	clear(c.entries)
}

// Len returns the number of cached devices.
func (c *Cache) Len() int {
	return len(c.entries)
}

// fieldsEqual compares the change-relevant fields of two snapshots.
// Model, Capabilities and the entry timestamp are ignored.
func fieldsEqual(a, b Snapshot) bool {
	if a.Name != b.Name || a.Reachable != b.Reachable {
		return false
	}
	return stateEqual(a.State, b.State) && placementEqual(a.Placement, b.Placement)
}

func stateEqual(a, b State) bool {
	if a.On != b.On || a.Brightness != b.Brightness {
		return false
	}
	return ptrEqual(a.TiltPosition, b.TiltPosition) &&
		ptrEqual(a.Color, b.Color) &&
		ptrEqual(a.ColorTemp, b.ColorTemp) &&
		ptrEqual(a.ColorMode, b.ColorMode)
}

func placementEqual(a, b *Placement) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Hidden == b.Hidden &&
		ptrEqual(a.RoomID, b.RoomID) &&
		ptrEqual(a.RoomName, b.RoomName)
}

// ptrEqual treats two nil pointers as equal and otherwise compares values.
func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sortByID(s []Snapshot) {
	sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
}

// IDs returns the IDs of snapshots, preserving order.
func IDs(snapshots []Snapshot) []string {
	ids := make([]string, 0, len(snapshots))
	for _, s := range snapshots {
		ids = append(ids, s.ID)
	}
	return ids
}
