package traverse

import (
	"cmp"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/udisondev/portalgraph/internal/geom"
	"github.com/udisondev/portalgraph/internal/zone"
)

type visEntry struct {
	id      zone.ID
	frustum geom.Frustum
}

// VisibilityContext carries the state of visibility passes for one viewpoint.
// It is not safe for concurrent use; give each viewpoint its own context.
type VisibilityContext struct {
	opts   zone.DeriveOptions
	stamps stamps

	stack   []visEntry
	portals []*zone.Portal

	bounds  geom.Box
	visited int
}

// NewVisibilityContext creates a context using opts for frustum narrowing.
func NewVisibilityContext(opts zone.DeriveOptions) *VisibilityContext {
	return &VisibilityContext{
		opts:   opts,
		stack:  make([]visEntry, 0, 32),
		bounds: geom.EmptyBox(),
	}
}

// Bounds returns the union of the bounds of every zone visited by the last pass.
func (c *VisibilityContext) Bounds() geom.Box { return c.bounds }

// Visited returns how many zones the last pass expanded.
func (c *VisibilityContext) Visited() int { return c.visited }

// Pass walks the graph from start, narrowing frustum through each portal it
// can see, and writes the results into table (which is reset first).
// It returns true when the exterior was reached.
//
// start may be zone.Exterior or an id that does not resolve; the pass then
// begins outside and looks in through every portal leading to the exterior.
func (c *VisibilityContext) Pass(g Graph, start zone.ID, frustum geom.Frustum, cam geom.Camera, table *VisibilityTable) bool {
	c.stamps.begin(g.MaxID())
	c.bounds = geom.EmptyBox()
	c.visited = 0
	table.Reset(int(g.MaxID()) + 1)

	exterior := false
	exteriorQueued := false
	pushExterior := func(narrowed geom.Frustum) {
		rec := table.at(zone.Exterior)
		rec.Render = true
		if rec.Frustum.IsZero() {
			rec.Frustum = narrowed
		} else {
			rec.Frustum = rec.Frustum.Union(narrowed)
		}
		if !exteriorQueued {
			exteriorQueued = true
			c.stack = append(c.stack, visEntry{id: zone.Exterior, frustum: narrowed})
		}
	}

	camPos := cam.Position()
	c.stack = c.stack[:0]

	if _, id := resolve(g, start); id != zone.Exterior {
		c.stack = append(c.stack, visEntry{id: id, frustum: frustum})
	} else {
		exterior = true
		exteriorQueued = true
		rec := table.at(zone.Exterior)
		rec.Render = true
		rec.Frustum = frustum
		c.enterFromExterior(g, frustum, cam, table)
	}

	for len(c.stack) > 0 {
		e := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]

		z, id := resolve(g, e.id)
		if id == zone.Exterior {
			exterior = true
			continue
		}

		rec := table.at(id)
		if c.stamps.seen(id) {
			// reached again through another portal before it was expanded
			rec.Frustum = rec.Frustum.Union(e.frustum)
			continue
		}
		c.stamps.mark(id)
		c.visited++
		rec.Render = true
		rec.Frustum = e.frustum
		c.bounds = c.bounds.Union(z.Bounds())

		clip := e.frustum
		for _, p := range c.sortedPortals(g, z, camPos) {
			other := p.Other(id)
			oz, other := resolve(g, other)

			if oz != nil && oz.PointZone(camPos) != zone.Exterior {
				orec := table.at(other)
				orec.Render = true
				if orec.Frustum.IsZero() {
					orec.Frustum = frustum
				}
			}

			obb, _ := p.Corners()
			if !e.frustum.IntersectsOBB(obb) || !clip.IntersectsOBB(obb) {
				continue
			}

			if oz != nil {
				table.at(other).Render = true
			}
			narrowed := p.DeriveSubFrustum(e.frustum, cam, c.opts)
			clip = narrowed.Invert()

			switch {
			case other == zone.Exterior:
				pushExterior(narrowed)
			case !c.stamps.seen(other):
				c.stack = append(c.stack, visEntry{id: other, frustum: narrowed})
			}
		}
	}

	return exterior
}

// enterFromExterior seeds the stack with the zones whose exterior portals
// are in view.
func (c *VisibilityContext) enterFromExterior(g Graph, frustum geom.Frustum, cam geom.Camera, table *VisibilityTable) {
	for _, z := range g.Zones() {
		if !z.OutdoorReachable() {
			continue
		}
		for _, pid := range z.Portals() {
			p := g.Portal(pid)
			if p == nil || !p.HasExterior() {
				continue
			}
			obb, _ := p.Corners()
			if !frustum.IntersectsOBB(obb) {
				continue
			}
			table.at(z.ID()).Render = true
			c.stack = append(c.stack, visEntry{id: z.ID(), frustum: p.DeriveSubFrustum(frustum, cam, c.opts)})
		}
	}
}

// sortedPortals returns z's resolvable portals, farthest from the camera
// first. Equal distances fall back to portal id so the order is stable.
func (c *VisibilityContext) sortedPortals(g Graph, z *zone.Zone, camPos mgl32.Vec3) []*zone.Portal {
	c.portals = c.portals[:0]
	for _, pid := range z.Portals() {
		if p := g.Portal(pid); p != nil {
			c.portals = append(c.portals, p)
		}
	}
	if len(c.portals) > 1 {
		slices.SortStableFunc(c.portals, func(a, b *zone.Portal) int {
			da, db := distSq(a.Center(), camPos), distSq(b.Center(), camPos)
			if r := cmp.Compare(db, da); r != 0 {
				return r
			}
			return cmp.Compare(a.ID(), b.ID())
		})
	}
	return c.portals
}

func distSq(a, b mgl32.Vec3) float32 {
	d := a.Sub(b)
	return d.Dot(d)
}
