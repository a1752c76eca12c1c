package geom

import "github.com/go-gl/mathgl/mgl32"

// OBBCorners returns the 8 world-space corners of the box [-extents, extents]
// placed by transform. Corner i has bit 0 → +x, bit 1 → +y, bit 2 → +z.
func OBBCorners(transform mgl32.Mat4, extents mgl32.Vec3) [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	for i := range out {
		local := mgl32.Vec3{-extents[0], -extents[1], -extents[2]}
		if i&1 != 0 {
			local[0] = extents[0]
		}
		if i&2 != 0 {
			local[1] = extents[1]
		}
		if i&4 != 0 {
			local[2] = extents[2]
		}
		out[i] = TransformPoint(transform, local)
	}
	return out
}

// QuadCorners returns the 4 world-space corners of the z = 0 face of the
// box [-extents, extents] placed by transform, wound counter-clockwise
// when viewed from +z.
func QuadCorners(transform mgl32.Mat4, extents mgl32.Vec3) [4]mgl32.Vec3 {
	return [4]mgl32.Vec3{
		TransformPoint(transform, mgl32.Vec3{-extents[0], -extents[1], 0}),
		TransformPoint(transform, mgl32.Vec3{extents[0], -extents[1], 0}),
		TransformPoint(transform, mgl32.Vec3{extents[0], extents[1], 0}),
		TransformPoint(transform, mgl32.Vec3{-extents[0], extents[1], 0}),
	}
}

// TransformPoint applies an affine transform to a point.
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	return mgl32.TransformCoordinate(p, m)
}

// CornersBox returns the axis-aligned box enclosing the given points.
func CornersBox(points []mgl32.Vec3) Box {
	b := EmptyBox()
	for _, p := range points {
		b = b.Union(Box{Min: p, Max: p})
	}
	return b
}
