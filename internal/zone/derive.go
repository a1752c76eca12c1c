package zone

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/udisondev/portalgraph/internal/geom"
)

// DefaultDegenerateDistance is the camera-to-portal distance under which a
// portal whose corners all fail to project keeps the parent frustum.
const DefaultDegenerateDistance float32 = 2.0

// DeriveOptions tunes DeriveSubFrustum.
type DeriveOptions struct {
	DegenerateDistance float32
}

// DefaultDeriveOptions returns the stock tuning.
func DefaultDeriveOptions() DeriveOptions {
	return DeriveOptions{DegenerateDistance: DefaultDegenerateDistance}
}

// DeriveSubFrustum narrows parent to the screen rectangle covered by the
// portal's opening quad. The result shares the parent's clip distances and
// transform. Degenerate cases return a wider frustum, never a narrower one:
//   - every corner fails to project while the camera is within
//     DegenerateDistance of the portal: parent is returned unchanged
//   - the rectangle misses the parent's extents: parent extents are kept
//
// Corners behind the camera are reflected through the viewport center before
// clamping, so a portal the camera straddles still widens toward its far side.
func (p *Portal) DeriveSubFrustum(parent geom.Frustum, cam geom.Camera, opts DeriveOptions) geom.Frustum {
	_, quad := p.Corners()
	vp := cam.Viewport()

	var pts [4]mgl32.Vec2
	failed := 0
	for i, c := range quad {
		s, ok := cam.ProjectWorldToScreen(c)
		pt := mgl32.Vec2{s[0], s[1]}
		if !ok {
			failed++
			if s[2] > 1 {
				pt = vp.Mirror(pt)
			}
		}
		pts[i] = vp.Clamp(pt)
	}

	if failed > 3 && cam.Position().Sub(p.Center()).Len() < opts.DegenerateDistance {
		return parent
	}
	if vp.W <= 0 || vp.H <= 0 {
		return parent
	}

	minX, minY := pts[0][0], pts[0][1]
	maxX, maxY := minX, minY
	for _, pt := range pts[1:] {
		minX, maxX = min(minX, pt[0]), max(maxX, pt[0])
		minY, maxY = min(minY, pt[1]), max(maxY, pt[1])
	}

	// Window coordinates come from the camera projection, so they rescale
	// against the camera's root extents, not the parent's.
	root := cam.CurrentFrustum()
	sx := (root.Right() - root.Left()) / vp.W
	sy := (root.Top() - root.Bottom()) / vp.H
	left := root.Left() + (minX-vp.X)*sx
	right := root.Left() + (maxX-vp.X)*sx
	bottom := root.Bottom() + (minY-vp.Y)*sy
	top := root.Bottom() + (maxY-vp.Y)*sy

	// An inverted parent describes what is left over, so only a regular
	// parent bounds the result.
	bound := root
	if !parent.Inverted() {
		bound = parent
		left, right = max(left, parent.Left()), min(right, parent.Right())
		bottom, top = max(bottom, parent.Bottom()), min(top, parent.Top())
	}
	if left >= right || bottom >= top {
		left, right, top, bottom = bound.Left(), bound.Right(), bound.Top(), bound.Bottom()
	}

	return geom.NewFrustum(left, right, top, bottom, parent.Near(), parent.Far(), parent.Transform())
}
