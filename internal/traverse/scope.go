package traverse

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/udisondev/portalgraph/internal/zone"
)

// DefaultPlaneEpsilon is the slack used by the portal plane-side test.
const DefaultPlaneEpsilon float32 = 1e-4

// ScopeContext carries the state of scope passes. It keeps its own stamps,
// so a scope pass never disturbs a visibility pass over the same graph.
type ScopeContext struct {
	planeEps float32
	stamps   stamps
	stack    []zone.ID
	visited  int
}

// NewScopeContext creates a context with the given plane-side slack.
func NewScopeContext(planeEps float32) *ScopeContext {
	return &ScopeContext{planeEps: planeEps, stack: make([]zone.ID, 0, 32)}
}

// Visited returns how many zones the last pass walked through.
func (c *ScopeContext) Visited() int { return c.visited }

// ScopePass runs Pass from the zone containing pos.
func (c *ScopeContext) ScopePass(g Graph, pos mgl32.Vec3, radius float32, out []bool) []bool {
	return c.Pass(g, g.PointZone(pos), pos, radius, out)
}

// Pass marks in out every zone reachable from start whose center lies within
// radius of pos. out is cleared and grown to cover every zone id; the
// (possibly reallocated) slice is returned.
//
// A portal is crossed when pos lies on the same side of its plane as the zone
// being left, or on the plane itself. Zones outside radius are still walked
// through. The exterior is a sink: starting there (or from an id that does
// not resolve) enters every zone whose exterior portal faces pos.
func (c *ScopeContext) Pass(g Graph, start zone.ID, pos mgl32.Vec3, radius float32, out []bool) []bool {
	c.stamps.begin(g.MaxID())
	c.visited = 0
	out = resetScope(out, int(g.MaxID())+1)

	c.stack = c.stack[:0]
	if _, id := resolve(g, start); id != zone.Exterior {
		c.stack = append(c.stack, id)
	} else {
		c.enterFromExterior(g, pos)
	}

	r2 := radius * radius
	for len(c.stack) > 0 {
		id := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]

		z, id := resolve(g, id)
		if z == nil || c.stamps.seen(id) {
			continue
		}
		c.stamps.mark(id)
		c.visited++

		center := z.Center()
		if distSq(center, pos) <= r2 {
			out[id] = true
		}

		for _, pid := range z.Portals() {
			p := g.Portal(pid)
			if p == nil {
				continue
			}
			_, other := resolve(g, p.Other(id))
			if other == zone.Exterior || c.stamps.seen(other) {
				continue
			}
			pl := p.Plane()
			side := pl.Side(pos, c.planeEps)
			if side == 0 || side == pl.Side(center, c.planeEps) {
				c.stack = append(c.stack, other)
			}
		}
	}
	return out
}

func (c *ScopeContext) enterFromExterior(g Graph, pos mgl32.Vec3) {
	for _, z := range g.Zones() {
		if !z.OutdoorReachable() {
			continue
		}
		for _, pid := range z.Portals() {
			p := g.Portal(pid)
			if p == nil || !p.HasExterior() {
				continue
			}
			pl := p.Plane()
			side := pl.Side(pos, c.planeEps)
			if side == 0 || side != pl.Side(z.Center(), c.planeEps) {
				c.stack = append(c.stack, z.ID())
				break
			}
		}
	}
}

func resetScope(out []bool, n int) []bool {
	if cap(out) < n {
		return make([]bool, n)
	}
	out = out[:n]
	clear(out)
	return out
}
