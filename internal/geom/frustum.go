package geom

import "github.com/go-gl/mathgl/mgl32"

// Frustum plane indices, in the order Planes returns them.
const (
	PlaneLeft = iota
	PlaneRight
	PlaneBottom
	PlaneTop
	PlaneNear
	PlaneFar
)

// Frustum is an immutable perspective view volume. The side offsets describe
// the near-plane rectangle in camera space (camera looks down -Z, +Y up);
// transform maps camera space to world space.
//
// An inverted frustum swaps its inside/outside sense: IntersectsOBB reports
// true for anything that is not entirely inside the base volume.
type Frustum struct {
	left, right, top, bottom float32
	near, far                float32
	transform                mgl32.Mat4
	inverted                 bool
}

// NewFrustum builds a frustum from near-plane offsets, clip distances and a
// camera-to-world transform.
func NewFrustum(left, right, top, bottom, near, far float32, transform mgl32.Mat4) Frustum {
	return Frustum{
		left:      left,
		right:     right,
		top:       top,
		bottom:    bottom,
		near:      near,
		far:       far,
		transform: transform,
	}
}

// NewPerspectiveFrustum builds a symmetric frustum from a vertical field of
// view in degrees and an aspect ratio (width / height).
func NewPerspectiveFrustum(fovYDeg, aspect, near, far float32, transform mgl32.Mat4) Frustum {
	top := near * tan(mgl32.DegToRad(fovYDeg)/2)
	right := top * aspect
	return NewFrustum(-right, right, top, -top, near, far, transform)
}

func (f Frustum) Left() float32   { return f.left }
func (f Frustum) Right() float32  { return f.right }
func (f Frustum) Top() float32    { return f.top }
func (f Frustum) Bottom() float32 { return f.bottom }
func (f Frustum) Near() float32   { return f.near }
func (f Frustum) Far() float32    { return f.far }

// Transform returns the camera-to-world transform.
func (f Frustum) Transform() mgl32.Mat4 { return f.transform }

// Inverted reports whether the inside/outside sense is swapped.
func (f Frustum) Inverted() bool { return f.inverted }

// IsZero reports whether f is the zero value (never assigned).
func (f Frustum) IsZero() bool { return f == Frustum{} }

// Position returns the world-space apex of the frustum.
func (f Frustum) Position() mgl32.Vec3 {
	return f.transform.Col(3).Vec3()
}

// Invert returns a copy with the inside/outside sense swapped.
func (f Frustum) Invert() Frustum {
	f.inverted = !f.inverted
	return f
}

// WithExtents returns a copy sharing near/far/transform/sense with new side offsets.
func (f Frustum) WithExtents(left, right, top, bottom float32) Frustum {
	f.left, f.right, f.top, f.bottom = left, right, top, bottom
	return f
}

// Projection returns the OpenGL projection matrix for this frustum.
func (f Frustum) Projection() mgl32.Mat4 {
	return mgl32.Frustum(f.left, f.right, f.bottom, f.top, f.near, f.far)
}

// View returns the world-to-camera matrix.
func (f Frustum) View() mgl32.Mat4 {
	return f.transform.Inv()
}

// Planes returns the six world-space clip planes with normals pointing inward,
// extracted from projection*view (Gribb/Hartmann).
func (f Frustum) Planes() [6]Plane {
	m := f.Projection().Mul4(f.View())
	r0, r1, r2, r3 := m.Row(0), m.Row(1), m.Row(2), m.Row(3)

	var pl [6]Plane
	pl[PlaneLeft] = planeFromRow(r3.Add(r0))
	pl[PlaneRight] = planeFromRow(r3.Sub(r0))
	pl[PlaneBottom] = planeFromRow(r3.Add(r1))
	pl[PlaneTop] = planeFromRow(r3.Sub(r1))
	pl[PlaneNear] = planeFromRow(r3.Add(r2))
	pl[PlaneFar] = planeFromRow(r3.Sub(r2))
	return pl
}

func planeFromRow(r mgl32.Vec4) Plane {
	return Plane{Normal: r.Vec3(), D: r.W()}.normalized()
}

// IntersectsOBB reports whether the box given by its 8 corners overlaps the
// frustum. The test rejects only boxes with every corner outside a single
// plane, so it may report overlap for boxes near a frustum edge.
func (f Frustum) IntersectsOBB(corners [8]mgl32.Vec3) bool {
	planes := f.Planes()
	if f.inverted {
		return !allInside(planes, corners)
	}
	return !separated(planes, corners)
}

// ContainsPoint reports whether p lies inside the frustum, honoring inversion.
func (f Frustum) ContainsPoint(p mgl32.Vec3) bool {
	inside := true
	for _, pl := range f.Planes() {
		if pl.Distance(p) < 0 {
			inside = false
			break
		}
	}
	return inside != f.inverted
}

func separated(planes [6]Plane, corners [8]mgl32.Vec3) bool {
	for _, pl := range planes {
		out := 0
		for _, c := range corners {
			if pl.Distance(c) < 0 {
				out++
			}
		}
		if out == len(corners) {
			return true
		}
	}
	return false
}

func allInside(planes [6]Plane, corners [8]mgl32.Vec3) bool {
	for _, pl := range planes {
		for _, c := range corners {
			if pl.Distance(c) < 0 {
				return false
			}
		}
	}
	return true
}

// Contains reports whether the near-plane rectangle of o lies within that of f,
// allowing eps of slack on every side.
func (f Frustum) Contains(o Frustum, eps float32) bool {
	return o.left >= f.left-eps && o.right <= f.right+eps &&
		o.bottom >= f.bottom-eps && o.top <= f.top+eps
}

// Union returns a frustum whose near-plane rectangle encloses both f and o.
// Clip distances, transform and sense come from f.
func (f Frustum) Union(o Frustum) Frustum {
	return f.WithExtents(min(f.left, o.left), max(f.right, o.right), max(f.top, o.top), min(f.bottom, o.bottom))
}
