package geom

import "github.com/go-gl/mathgl/mgl32"

// Camera is the per-frame camera state the traversals read.
type Camera interface {
	CurrentFrustum() Frustum
	Position() mgl32.Vec3
	Viewport() Viewport
	ViewTransform() mgl32.Mat4
	ProjectionTransform() mgl32.Mat4
	NearDistance() float32
	FarDistance() float32
	// ProjectWorldToScreen returns window x, y and depth; see Project.
	ProjectWorldToScreen(p mgl32.Vec3) (mgl32.Vec3, bool)
}

// FrameCamera is a Camera built from a root frustum and a viewport.
// View and projection are computed once at construction.
type FrameCamera struct {
	frustum  Frustum
	viewport Viewport
	view     mgl32.Mat4
	proj     mgl32.Mat4
}

// NewFrameCamera returns the camera state for one frame.
func NewFrameCamera(f Frustum, vp Viewport) *FrameCamera {
	return &FrameCamera{
		frustum:  f,
		viewport: vp,
		view:     f.View(),
		proj:     f.Projection(),
	}
}

// LookAt returns a camera-to-world transform for a camera at eye facing target.
func LookAt(eye, target, up mgl32.Vec3) mgl32.Mat4 {
	return mgl32.LookAtV(eye, target, up).Inv()
}

func (c *FrameCamera) CurrentFrustum() Frustum         { return c.frustum }
func (c *FrameCamera) Position() mgl32.Vec3            { return c.frustum.Position() }
func (c *FrameCamera) Viewport() Viewport              { return c.viewport }
func (c *FrameCamera) ViewTransform() mgl32.Mat4       { return c.view }
func (c *FrameCamera) ProjectionTransform() mgl32.Mat4 { return c.proj }
func (c *FrameCamera) NearDistance() float32           { return c.frustum.Near() }
func (c *FrameCamera) FarDistance() float32            { return c.frustum.Far() }

func (c *FrameCamera) ProjectWorldToScreen(p mgl32.Vec3) (mgl32.Vec3, bool) {
	return Project(p, c.view, c.proj, c.viewport)
}
