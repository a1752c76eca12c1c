package traverse

import (
	"math"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/portalgraph/internal/geom"
	"github.com/udisondev/portalgraph/internal/zone"
)

// testCamera sits at the origin looking down -Z with a 90° field of view.
func testCamera() *geom.FrameCamera {
	f := geom.NewFrustum(-0.1, 0.1, 0.1, -0.1, 0.1, 100, mgl32.Ident4())
	return geom.NewFrameCamera(f, geom.Viewport{W: 800, H: 600})
}

func cube(zMin, zMax float32) geom.Box {
	return geom.NewBox(mgl32.Vec3{-0.5, -0.5, zMin}, mgl32.Vec3{0.5, 0.5, zMax})
}

func addZone(t testing.TB, m *zone.Manager, name string, b geom.Box) zone.ID {
	t.Helper()
	id, err := m.RegisterZone(zone.NewZone(name, b))
	require.NoError(t, err)
	return id
}

func addPortal(t testing.TB, m *zone.Manager, a, b zone.ID, pos, ext mgl32.Vec3) zone.PortalID {
	t.Helper()
	pid, err := m.AddPortal(zone.NewPortal("p", a, b, pos, mgl32.QuatIdent(), ext))
	require.NoError(t, err)
	return pid
}

var unitSquare = mgl32.Vec3{0.5, 0.5, 0.01}

// chain builds three unit cubes stacked along -Z joined by unit-square
// portals; the camera origin is the center of the first.
func chain(t testing.TB) (*zone.Manager, [3]zone.ID) {
	m := zone.NewManager()
	var ids [3]zone.ID
	ids[0] = addZone(t, m, "z0", cube(-0.5, 0.5))
	ids[1] = addZone(t, m, "z1", cube(-1.5, -0.5))
	ids[2] = addZone(t, m, "z2", cube(-2.5, -1.5))
	addPortal(t, m, ids[0], ids[1], mgl32.Vec3{0, 0, -0.5}, unitSquare)
	addPortal(t, m, ids[1], ids[2], mgl32.Vec3{0, 0, -1.5}, unitSquare)
	return m, ids
}

func TestVisibilityPass_MarksStartZone(t *testing.T) {
	m, _ := chain(t)
	cam := testCamera()
	ctx := NewVisibilityContext(zone.DefaultDeriveOptions())
	table := NewVisibilityTable(0)

	for _, z := range m.Zones() {
		ctx.Pass(m, z.ID(), cam.CurrentFrustum(), cam, table)
		assert.True(t, table.Record(z.ID()).Render, "zone %s", z.Name())
	}
}

func TestVisibilityPass_NarrowsAlongChain(t *testing.T) {
	m, ids := chain(t)
	cam := testCamera()
	ctx := NewVisibilityContext(zone.DefaultDeriveOptions())
	table := NewVisibilityTable(0)

	exterior := ctx.Pass(m, ids[0], cam.CurrentFrustum(), cam, table)
	assert.False(t, exterior)
	assert.Equal(t, 3, ctx.Visited())
	assert.Equal(t, []zone.ID{ids[0], ids[1], ids[2]}, table.Visible())

	f0 := table.Record(ids[0]).Frustum
	f1 := table.Record(ids[1]).Frustum
	f2 := table.Record(ids[2]).Frustum
	const eps = 1e-5
	assert.True(t, f0.Contains(f1, eps))
	assert.True(t, f1.Contains(f2, eps))
	assert.InDelta(t, 0.1/3, f2.Right(), 1e-4)
	assert.InDelta(t, -0.1/3, f2.Left(), 1e-4)

	bounds := ctx.Bounds()
	assert.InDelta(t, -2.5, bounds.Min[2], 1e-6)
	assert.InDelta(t, 0.5, bounds.Max[2], 1e-6)
}

func TestVisibilityPass_Cycle(t *testing.T) {
	m := zone.NewManager()
	a := addZone(t, m, "a", geom.NewBox(mgl32.Vec3{-1, -1, -2}, mgl32.Vec3{1, 1, 0}))
	b := addZone(t, m, "b", geom.NewBox(mgl32.Vec3{-1, -1, -4}, mgl32.Vec3{1, 1, -2}))
	ext := mgl32.Vec3{0.4, 0.4, 0.01}
	addPortal(t, m, a, b, mgl32.Vec3{-0.5, 0, -2}, ext)
	addPortal(t, m, b, a, mgl32.Vec3{0.5, 0, -2}, ext)

	cam := testCamera()
	ctx := NewVisibilityContext(zone.DefaultDeriveOptions())
	table := NewVisibilityTable(0)

	for range 2 {
		ctx.Pass(m, a, cam.CurrentFrustum(), cam, table)
		assert.Equal(t, 2, ctx.Visited())
		assert.True(t, table.Record(a).Render)
		assert.True(t, table.Record(b).Render)
	}

	// seen through both portals, so the frustum spans both openings
	fb := table.Record(b).Frustum
	assert.Less(t, fb.Left(), float32(0))
	assert.Greater(t, fb.Right(), float32(0))
}

func TestSortedPortals(t *testing.T) {
	tests := []struct {
		name      string
		positions []mgl32.Vec3
		want      []zone.PortalID
	}{
		{
			name:      "farthest first, ties by id",
			positions: []mgl32.Vec3{{1, 0, -2}, {-1, 0, -2}, {0, 0, -3}},
			want:      []zone.PortalID{3, 1, 2},
		},
		{
			name:      "tie order does not follow insertion",
			positions: []mgl32.Vec3{{0, 0, -3}, {-1, 0, -2}, {1, 0, -2}},
			want:      []zone.PortalID{1, 2, 3},
		},
		{
			name:      "single portal",
			positions: []mgl32.Vec3{{0, 0, -1}},
			want:      []zone.PortalID{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := zone.NewManager()
			a := addZone(t, m, "hall", geom.NewBox(mgl32.Vec3{-4, -4, -4}, mgl32.Vec3{4, 4, 4}))
			for _, pos := range tt.positions {
				addPortal(t, m, a, zone.Exterior, pos, unitSquare)
			}

			ctx := NewVisibilityContext(zone.DefaultDeriveOptions())
			var got []zone.PortalID
			for _, p := range ctx.sortedPortals(m, m.Zone(a), mgl32.Vec3{}) {
				got = append(got, p.ID())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVisibilityPass_Exterior(t *testing.T) {
	cam := testCamera()
	ctx := NewVisibilityContext(zone.DefaultDeriveOptions())
	table := NewVisibilityTable(0)

	t.Run("window ahead", func(t *testing.T) {
		m := zone.NewManager()
		a := addZone(t, m, "room", geom.NewBox(mgl32.Vec3{-1, -1, -2}, mgl32.Vec3{1, 1, 1}))
		addPortal(t, m, a, zone.Exterior, mgl32.Vec3{0, 0, -2}, unitSquare)

		require.True(t, ctx.Pass(m, a, cam.CurrentFrustum(), cam, table))
		rec := table.Record(zone.Exterior)
		assert.True(t, rec.Render)
		assert.False(t, rec.Frustum.IsZero())
		assert.True(t, cam.CurrentFrustum().Contains(rec.Frustum, 1e-5))
	})

	t.Run("window behind", func(t *testing.T) {
		m := zone.NewManager()
		a := addZone(t, m, "room", geom.NewBox(mgl32.Vec3{-1, -1, -2}, mgl32.Vec3{1, 1, 1}))
		addPortal(t, m, a, zone.Exterior, mgl32.Vec3{0, 0, 1}, unitSquare)

		assert.False(t, ctx.Pass(m, a, cam.CurrentFrustum(), cam, table))
		assert.False(t, table.Record(zone.Exterior).Render)
	})

	t.Run("unresolved neighbour is exterior", func(t *testing.T) {
		m := zone.NewManager()
		a := addZone(t, m, "room", geom.NewBox(mgl32.Vec3{-1, -1, -2}, mgl32.Vec3{1, 1, 1}))
		addPortal(t, m, a, 42, mgl32.Vec3{0, 0, -2}, unitSquare)

		assert.True(t, ctx.Pass(m, a, cam.CurrentFrustum(), cam, table))
	})

	t.Run("looking in from outside", func(t *testing.T) {
		m := zone.NewManager()
		a := addZone(t, m, "hut", geom.NewBox(mgl32.Vec3{-1, -1, -4}, mgl32.Vec3{1, 1, -2}))
		addPortal(t, m, a, zone.Exterior, mgl32.Vec3{0, 0, -2}, unitSquare)

		assert.True(t, ctx.Pass(m, zone.Exterior, cam.CurrentFrustum(), cam, table))
		assert.True(t, table.Record(a).Render)
		assert.Equal(t, 1, ctx.Visited())
	})
}

func TestVisibilityPass_EagerMarksCameraZone(t *testing.T) {
	m, ids := chain(t)

	// turned around: every portal of the middle zone is behind the camera
	f := geom.NewFrustum(-0.1, 0.1, 0.1, -0.1, 0.1, 100,
		geom.LookAt(mgl32.Vec3{}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}))
	cam := geom.NewFrameCamera(f, geom.Viewport{W: 800, H: 600})
	ctx := NewVisibilityContext(zone.DefaultDeriveOptions())
	table := NewVisibilityTable(0)

	ctx.Pass(m, ids[1], f, cam, table)
	assert.Equal(t, 1, ctx.Visited())
	assert.True(t, table.Record(ids[0]).Render, "zone holding the camera")
	assert.Equal(t, f, table.Record(ids[0]).Frustum)
	assert.False(t, table.Record(ids[2]).Render)
}

func TestVisibilityPass_StampWrap(t *testing.T) {
	m, ids := chain(t)
	cam := testCamera()
	ctx := NewVisibilityContext(zone.DefaultDeriveOptions())
	table := NewVisibilityTable(0)

	ctx.Pass(m, ids[0], cam.CurrentFrustum(), cam, table)
	ctx.stamps.pass = math.MaxUint32 - 1
	for range 3 {
		ctx.Pass(m, ids[0], cam.CurrentFrustum(), cam, table)
		assert.Equal(t, 3, ctx.Visited())
	}
}

func TestVisibilityPass_IndependentContexts(t *testing.T) {
	m, ids := chain(t)
	cam := testCamera()

	var wg sync.WaitGroup
	visited := make([]int, 8)
	for i := range visited {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := NewVisibilityContext(zone.DefaultDeriveOptions())
			table := NewVisibilityTable(0)
			m.Read(func() {
				ctx.Pass(m, ids[0], cam.CurrentFrustum(), cam, table)
			})
			visited[i] = ctx.Visited()
		}()
	}
	wg.Wait()

	for _, v := range visited {
		assert.Equal(t, 3, v)
	}
}

func TestDispatch(t *testing.T) {
	m, ids := chain(t)
	cam := testCamera()
	ctx := NewVisibilityContext(zone.DefaultDeriveOptions())
	table := NewVisibilityTable(0)
	ctx.Pass(m, ids[0], cam.CurrentFrustum(), cam, table)

	var got []zone.ID
	n := Dispatch(table, RendererFunc(func(id zone.ID, rec VisibilityRecord) {
		assert.True(t, rec.Render)
		got = append(got, id)
	}))
	assert.Equal(t, 3, n)
	assert.Equal(t, []zone.ID{ids[0], ids[1], ids[2]}, got)
}

func TestVisibilityTable(t *testing.T) {
	table := NewVisibilityTable(2)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, VisibilityRecord{}, table.Record(10))

	table.Reset(5)
	assert.Equal(t, 5, table.Len())
	table.at(3).Render = true
	assert.Equal(t, []zone.ID{3}, table.Visible())

	table.Reset(1)
	assert.Equal(t, 5, table.Len())
	assert.Empty(t, table.Visible())
}

// line builds A–B–C unit cubes along -Z with portals facing +Z.
func line(t testing.TB) (*zone.Manager, [3]zone.ID) {
	return chain(t)
}

func TestScopePass(t *testing.T) {
	m, ids := line(t)
	ctx := NewScopeContext(DefaultPlaneEpsilon)

	t.Run("radius covers the first two", func(t *testing.T) {
		out := ctx.ScopePass(m, mgl32.Vec3{0, 0, 0}, 1.5, nil)
		require.Len(t, out, int(m.MaxID())+1)
		assert.True(t, out[ids[0]])
		assert.True(t, out[ids[1]])
		assert.False(t, out[ids[2]])
		assert.Equal(t, 3, ctx.Visited(), "walks through B into C")
	})

	t.Run("walks through out of range zones", func(t *testing.T) {
		out := ctx.ScopePass(m, mgl32.Vec3{0, 0, -2}, 0.6, nil)
		assert.Equal(t, []bool{false, false, false, true}, out)
		assert.Equal(t, 3, ctx.Visited())
	})

	t.Run("portal facing away is not crossed", func(t *testing.T) {
		out := ctx.Pass(m, ids[2], mgl32.Vec3{0, 0, 0}, 1.5, nil)
		assert.Equal(t, 1, ctx.Visited())
		assert.NotContains(t, out, true)
	})

	t.Run("output is reused and cleared", func(t *testing.T) {
		buf := make([]bool, 16)
		buf[9] = true
		out := ctx.ScopePass(m, mgl32.Vec3{0, 0, 0}, 0.1, buf)
		assert.Len(t, out, int(m.MaxID())+1)
		assert.Equal(t, []bool{false, true, false, false}, out)
	})
}

func TestScopePass_ReachesInRangeZoneBeyondOutOfRange(t *testing.T) {
	m := zone.NewManager()
	a := addZone(t, m, "a", geom.NewBox(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}))
	b := addZone(t, m, "b", geom.NewBox(mgl32.Vec3{-1, -1, -3}, mgl32.Vec3{1, 20, -1}))
	c := addZone(t, m, "c", geom.NewBox(mgl32.Vec3{1, -1, -3}, mgl32.Vec3{3, 1, -1}))
	addPortal(t, m, a, b, mgl32.Vec3{0, 0, -1}, unitSquare)
	// side door of b, normal along +X
	_, err := m.AddPortal(zone.NewPortal("side", b, c, mgl32.Vec3{1, 0, -2},
		mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}), unitSquare))
	require.NoError(t, err)

	ctx := NewScopeContext(DefaultPlaneEpsilon)
	out := ctx.ScopePass(m, mgl32.Vec3{}, 3, nil)

	assert.True(t, out[a])
	assert.False(t, out[b], "center of b is far above")
	assert.True(t, out[c], "c is reached through b")
	assert.Equal(t, 3, ctx.Visited())
}

func TestScopePass_FromExterior(t *testing.T) {
	m, ids := line(t)
	addPortal(t, m, ids[0], zone.Exterior, mgl32.Vec3{0, 0, 0.5}, unitSquare)

	ctx := NewScopeContext(DefaultPlaneEpsilon)
	out := ctx.ScopePass(m, mgl32.Vec3{0, 0, 3}, 3.1, nil)

	assert.True(t, out[ids[0]])
	assert.False(t, out[ids[1]])
	assert.Equal(t, 3, ctx.Visited())

	// behind the building the exterior portal faces away
	out = ctx.ScopePass(m, mgl32.Vec3{0, 0, -10}, 20, out)
	assert.Equal(t, 0, ctx.Visited())
	assert.NotContains(t, out, true)
}

func TestScopePass_DoesNotDisturbVisibility(t *testing.T) {
	m, ids := chain(t)
	cam := testCamera()
	vis := NewVisibilityContext(zone.DefaultDeriveOptions())
	scope := NewScopeContext(DefaultPlaneEpsilon)
	table := NewVisibilityTable(0)

	vis.Pass(m, ids[0], cam.CurrentFrustum(), cam, table)
	before := vis.stamps.pass
	scope.ScopePass(m, mgl32.Vec3{}, 10, nil)
	assert.Equal(t, before, vis.stamps.pass)
	assert.True(t, vis.stamps.seen(ids[2]))
}

// grid builds an n×n floor of 2×2×2 rooms joined by portals on every shared wall.
func grid(b testing.TB, n int) (*zone.Manager, zone.ID) {
	m := zone.NewManager()
	ids := make([]zone.ID, n*n)
	for i := range n {
		for j := range n {
			x, z := float32(i*2), -float32(j*2)
			ids[i*n+j] = addZone(b, m, "room", geom.NewBox(mgl32.Vec3{x - 1, -1, z - 2}, mgl32.Vec3{x + 1, 1, z}))
		}
	}
	wall := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	for i := range n {
		for j := range n {
			x, z := float32(i*2), -float32(j*2)
			if j+1 < n {
				addPortal(b, m, ids[i*n+j], ids[i*n+j+1], mgl32.Vec3{x, 0, z - 2}, unitSquare)
			}
			if i+1 < n {
				_, err := m.AddPortal(zone.NewPortal("side", ids[i*n+j], ids[(i+1)*n+j],
					mgl32.Vec3{x + 1, 0, z - 1}, wall, unitSquare))
				require.NoError(b, err)
			}
		}
	}
	return m, ids[0]
}

func BenchmarkVisibilityPass(b *testing.B) {
	m, start := grid(b, 16)
	cam := testCamera()
	ctx := NewVisibilityContext(zone.DefaultDeriveOptions())
	table := NewVisibilityTable(int(m.MaxID()) + 1)

	b.ReportAllocs()
	for b.Loop() {
		ctx.Pass(m, start, cam.CurrentFrustum(), cam, table)
	}
}

func BenchmarkScopePass(b *testing.B) {
	m, _ := grid(b, 16)
	ctx := NewScopeContext(DefaultPlaneEpsilon)
	out := make([]bool, int(m.MaxID())+1)

	b.ReportAllocs()
	for b.Loop() {
		out = ctx.ScopePass(m, mgl32.Vec3{0, 0, -1}, 8, out)
	}
}
