// Package traverse walks the zone graph. A visibility pass narrows the camera
// frustum through portals and records which zones may be seen; a scope pass
// collects the zones relevant to a reference position and radius.
//
// Per-pass state lives in the context values, never on the zones, so any
// number of contexts may walk the same graph as long as the graph is not
// mutated meanwhile (see zone.Manager.Read).
package traverse

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/udisondev/portalgraph/internal/zone"
)

// Graph is the read side of the zone tables. *zone.Manager implements it.
type Graph interface {
	Zone(id zone.ID) *zone.Zone
	Portal(pid zone.PortalID) *zone.Portal
	Zones() []*zone.Zone
	MaxID() zone.ID
	PointZone(p mgl32.Vec3) zone.ID
}

var _ Graph = (*zone.Manager)(nil)

// stamps guards against revisiting a zone within one pass.
// A zone is visited in the current pass iff its slot equals pass.
type stamps struct {
	pass  uint32
	slots []uint32
}

// begin starts a new pass sized for ids up to maxID.
func (s *stamps) begin(maxID zone.ID) {
	if n := int(maxID) + 1; len(s.slots) < n {
		s.slots = append(s.slots, make([]uint32, n-len(s.slots))...)
	}
	s.pass++
	if s.pass == 0 {
		clear(s.slots)
		s.pass = 1
	}
}

func (s *stamps) seen(id zone.ID) bool {
	return int(id) < len(s.slots) && s.slots[id] == s.pass
}

func (s *stamps) mark(id zone.ID) {
	s.slots[id] = s.pass
}

// resolve maps id to the first id of its owning zone, or Exterior when it
// does not resolve.
func resolve(g Graph, id zone.ID) (*zone.Zone, zone.ID) {
	if id == zone.Exterior {
		return nil, zone.Exterior
	}
	z := g.Zone(id)
	if z == nil {
		return nil, zone.Exterior
	}
	return z, z.ID()
}
