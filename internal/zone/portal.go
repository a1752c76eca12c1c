package zone

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/udisondev/portalgraph/internal/geom"
)

// Portal is a thin oriented box joining up to two zones. Local +Z is the
// portal normal; the opening quad is the local z = 0 face.
type Portal struct {
	id       PortalID
	name     string
	zones    [2]ID
	position mgl32.Vec3
	rotation mgl32.Quat
	extents  mgl32.Vec3

	dirty bool
	obb   [8]mgl32.Vec3
	quad  [4]mgl32.Vec3
}

// NewPortal creates an unregistered portal. a and b name the zones it should
// connect; either may be Exterior or an id that is not registered yet.
func NewPortal(name string, a, b ID, position mgl32.Vec3, rotation mgl32.Quat, extents mgl32.Vec3) *Portal {
	return &Portal{
		name:     name,
		zones:    [2]ID{a, b},
		position: position,
		rotation: rotation.Normalize(),
		extents:  extents,
		dirty:    true,
	}
}

// ID returns the portal handle (0 until registered).
func (p *Portal) ID() PortalID { return p.id }

// Name returns the portal name.
func (p *Portal) Name() string { return p.name }

// ConnectedZones returns both zone slots; Exterior marks an outside side.
func (p *Portal) ConnectedZones() (ID, ID) { return p.zones[0], p.zones[1] }

// Other returns the slot opposite z, or Exterior when z is not connected.
func (p *Portal) Other(z ID) ID {
	switch z {
	case p.zones[0]:
		return p.zones[1]
	case p.zones[1]:
		return p.zones[0]
	default:
		return Exterior
	}
}

// Connects reports whether z occupies one of the slots.
func (p *Portal) Connects(z ID) bool {
	return z != Exterior && (p.zones[0] == z || p.zones[1] == z)
}

// HasExterior reports whether a slot is the exterior.
func (p *Portal) HasExterior() bool {
	return p.zones[0] == Exterior || p.zones[1] == Exterior
}

// Center returns the portal position.
func (p *Portal) Center() mgl32.Vec3 { return p.position }

// Rotation returns the portal orientation.
func (p *Portal) Rotation() mgl32.Quat { return p.rotation }

// Extents returns the half sizes along the local axes.
func (p *Portal) Extents() mgl32.Vec3 { return p.extents }

// Normal returns the world-space portal normal.
func (p *Portal) Normal() mgl32.Vec3 {
	return p.rotation.Rotate(mgl32.Vec3{0, 0, 1})
}

// Plane returns the plane of the opening quad.
func (p *Portal) Plane() geom.Plane {
	return geom.PlaneFromPointNormal(p.position, p.Normal())
}

// Transform returns the portal's local-to-world matrix.
func (p *Portal) Transform() mgl32.Mat4 {
	return mgl32.Translate3D(p.position[0], p.position[1], p.position[2]).Mul4(p.rotation.Mat4())
}

// SetTransform moves the portal; corners are recomputed on next use.
func (p *Portal) SetTransform(position mgl32.Vec3, rotation mgl32.Quat) {
	p.position = position
	p.rotation = rotation.Normalize()
	p.dirty = true
}

// SetExtents resizes the portal; corners are recomputed on next use.
func (p *Portal) SetExtents(extents mgl32.Vec3) {
	p.extents = extents
	p.dirty = true
}

// Corners returns the 8 OBB corners and the 4 opening-quad corners,
// recomputing them if the transform or extents changed.
func (p *Portal) Corners() ([8]mgl32.Vec3, [4]mgl32.Vec3) {
	if p.dirty {
		m := p.Transform()
		p.obb = geom.OBBCorners(m, p.extents)
		p.quad = geom.QuadCorners(m, p.extents)
		p.dirty = false
	}
	return p.obb, p.quad
}

// setSlot stores z in slot i.
func (p *Portal) setSlot(i int, z ID) {
	p.zones[i] = z
}
