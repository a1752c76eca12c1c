package traverse

import (
	"github.com/udisondev/portalgraph/internal/geom"
	"github.com/udisondev/portalgraph/internal/zone"
)

// VisibilityRecord is the per-zone result of a visibility pass.
type VisibilityRecord struct {
	Render  bool
	Frustum geom.Frustum
}

// VisibilityTable holds one record per zone id. Record 0 describes the
// exterior: Render is set when the pass reached it and Frustum encloses every
// narrowed frustum that led outside.
type VisibilityTable struct {
	records []VisibilityRecord
}

// NewVisibilityTable creates a table with room for n ids.
func NewVisibilityTable(n int) *VisibilityTable {
	return &VisibilityTable{records: make([]VisibilityRecord, max(n, 1))}
}

// Len returns the number of records.
func (t *VisibilityTable) Len() int { return len(t.records) }

// Record returns the record for id, or the zero record when id is out of range.
func (t *VisibilityTable) Record(id zone.ID) VisibilityRecord {
	if int(id) >= len(t.records) {
		return VisibilityRecord{}
	}
	return t.records[id]
}

// Visible returns the ids of real zones marked for rendering, ascending.
func (t *VisibilityTable) Visible() []zone.ID {
	var ids []zone.ID
	for i := 1; i < len(t.records); i++ {
		if t.records[i].Render {
			ids = append(ids, zone.ID(i))
		}
	}
	return ids
}

// Reset clears every record and grows the table to at least n records.
func (t *VisibilityTable) Reset(n int) {
	clear(t.records)
	if len(t.records) < n {
		t.records = append(t.records, make([]VisibilityRecord, n-len(t.records))...)
	}
}

func (t *VisibilityTable) at(id zone.ID) *VisibilityRecord {
	return &t.records[id]
}
