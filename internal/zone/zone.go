// Package zone implements the portal-connected zone graph: convex zones,
// the portals joining them, and the Manager that owns both tables and hands
// out zone id ranges.
package zone

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/udisondev/portalgraph/internal/geom"
)

// ID identifies a zone. Exterior (0) is the unbounded region outside every
// registered zone and is never assigned to a real Zone.
type ID uint32

// Exterior is the reserved id of the outside region.
const Exterior ID = 0

// PortalID is a handle into the Manager's portal table. 0 is invalid.
type PortalID uint32

// Zone is a convex world region. It keeps handles to the portals attached to
// it; per-pass traversal state lives in the traversal contexts, not here.
type Zone struct {
	id               ID
	count            int
	name             string
	bounds           geom.Box
	portals          []PortalID
	outdoorReachable bool
}

// NewZone creates an unregistered zone with the given world bounds.
func NewZone(name string, bounds geom.Box) *Zone {
	return &Zone{name: name, bounds: bounds}
}

// ID returns the first id of the zone's registered range, or Exterior when
// the zone is not registered.
func (z *Zone) ID() ID { return z.id }

// Count returns the size of the zone's id range.
func (z *Zone) Count() int { return z.count }

// Name returns the zone name.
func (z *Zone) Name() string { return z.name }

// Bounds returns the world-space bounds.
func (z *Zone) Bounds() geom.Box { return z.bounds }

// Center returns the center of the bounds.
func (z *Zone) Center() mgl32.Vec3 { return z.bounds.Center() }

// Portals returns the attached portal handles.
// IMPORTANT: the returned slice is owned by the zone, do not modify.
func (z *Zone) Portals() []PortalID { return z.portals }

// OutdoorReachable reports whether any attached portal leads to the exterior.
func (z *Zone) OutdoorReachable() bool { return z.outdoorReachable }

// PointZone returns the zone's id when p lies inside its bounds, Exterior otherwise.
func (z *Zone) PointZone(p mgl32.Vec3) ID {
	if z.bounds.Contains(p) {
		return z.id
	}
	return Exterior
}

// attachPortal adds pid to the portal list. Returns false if already attached.
func (z *Zone) attachPortal(pid PortalID) bool {
	if slices.Contains(z.portals, pid) {
		return false
	}
	z.portals = append(z.portals, pid)
	return true
}

// detachPortal removes pid from the portal list, keeping the order of the rest.
func (z *Zone) detachPortal(pid PortalID) bool {
	i := slices.Index(z.portals, pid)
	if i < 0 {
		return false
	}
	z.portals = slices.Delete(z.portals, i, i+1)
	return true
}

// refreshOutdoor recomputes outdoorReachable from the attached portals.
func (z *Zone) refreshOutdoor(lookup func(PortalID) *Portal) {
	z.outdoorReachable = false
	for _, pid := range z.portals {
		if p := lookup(pid); p != nil && p.HasExterior() {
			z.outdoorReachable = true
			return
		}
	}
}
