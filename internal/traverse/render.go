package traverse

import "github.com/udisondev/portalgraph/internal/zone"

// Renderer draws zones chosen by a visibility pass. id zone.Exterior stands
// for the outside world.
type Renderer interface {
	RenderZone(id zone.ID, rec VisibilityRecord)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(id zone.ID, rec VisibilityRecord)

func (f RendererFunc) RenderZone(id zone.ID, rec VisibilityRecord) { f(id, rec) }

// Dispatch hands every record marked for rendering to r, exterior first then
// by ascending id, and returns how many were dispatched.
func Dispatch(t *VisibilityTable, r Renderer) int {
	n := 0
	for i, rec := range t.records {
		if !rec.Render {
			continue
		}
		r.RenderZone(zone.ID(i), rec)
		n++
	}
	return n
}
