package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Viewport is a pixel rectangle. Y grows upward from the bottom edge,
// matching OpenGL window coordinates.
type Viewport struct {
	X, Y, W, H float32
}

// Center returns the viewport midpoint.
func (vp Viewport) Center() mgl32.Vec2 {
	return mgl32.Vec2{vp.X + vp.W/2, vp.Y + vp.H/2}
}

// Clamp moves p into the viewport rectangle.
func (vp Viewport) Clamp(p mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{
		mgl32.Clamp(p[0], vp.X, vp.X+vp.W),
		mgl32.Clamp(p[1], vp.Y, vp.Y+vp.H),
	}
}

// Mirror reflects p through the viewport center, which negates its
// normalized device x and y.
func (vp Viewport) Mirror(p mgl32.Vec2) mgl32.Vec2 {
	c := vp.Center()
	return c.Mul(2).Sub(p)
}

// Project maps a world point to window coordinates. The returned z is the
// depth in [0,1] for points between the near and far planes; points behind
// the camera come out with depth > 1 and x/y reflected through the center.
// ok is false for points behind the camera or in front of the near plane.
// Points beyond the far plane still count as projected.
func Project(p mgl32.Vec3, view, proj mgl32.Mat4, vp Viewport) (mgl32.Vec3, bool) {
	clip := proj.Mul4(view).Mul4x1(p.Vec4(1))
	w := clip.W()
	if w == 0 {
		c := vp.Center()
		return mgl32.Vec3{c[0], c[1], float32(math.Inf(1))}, false
	}
	ndc := clip.Vec3().Mul(1 / w)
	screen := mgl32.Vec3{
		vp.X + (ndc[0]+1)/2*vp.W,
		vp.Y + (ndc[1]+1)/2*vp.H,
		(ndc[2] + 1) / 2,
	}
	return screen, w > 0 && screen[2] >= 0
}

func tan(x float32) float32 {
	return float32(math.Tan(float64(x)))
}
