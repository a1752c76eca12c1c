package geom

import "github.com/go-gl/mathgl/mgl32"

// Plane is the half-space Normal·p + D >= 0.
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

// PlaneFromPointNormal builds the plane through point with the given normal.
// The normal is normalized; a zero normal yields a zero plane.
func PlaneFromPointNormal(point, normal mgl32.Vec3) Plane {
	if normal.Len() == 0 {
		return Plane{}
	}
	n := normal.Normalize()
	return Plane{Normal: n, D: -n.Dot(point)}
}

// Distance returns the signed distance from p to the plane.
func (pl Plane) Distance(p mgl32.Vec3) float32 {
	return pl.Normal.Dot(p) + pl.D
}

// Side classifies p against the plane: +1 in front, -1 behind,
// 0 when within eps of the plane.
func (pl Plane) Side(p mgl32.Vec3, eps float32) int {
	d := pl.Distance(p)
	switch {
	case d > eps:
		return 1
	case d < -eps:
		return -1
	default:
		return 0
	}
}

// normalized rescales the plane so the normal has unit length.
func (pl Plane) normalized() Plane {
	l := pl.Normal.Len()
	if l == 0 {
		return pl
	}
	return Plane{Normal: pl.Normal.Mul(1 / l), D: pl.D / l}
}
