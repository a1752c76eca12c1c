package relevance

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/udisondev/portalgraph/internal/geom"
	"github.com/udisondev/portalgraph/internal/traverse"
	"github.com/udisondev/portalgraph/internal/zone"
)

type ManagerSuite struct {
	suite.Suite

	graph   *zone.Manager
	ids     [3]zone.ID
	portals [2]zone.PortalID
	mgr     *Manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

// SetupTest builds three unit cubes in a row along -Z joined by portals.
func (s *ManagerSuite) SetupTest() {
	s.graph = zone.NewManager()
	for i := range s.ids {
		z := -float32(i)
		id, err := s.graph.RegisterZone(zone.NewZone("room",
			geom.NewBox(mgl32.Vec3{-0.5, -0.5, z - 0.5}, mgl32.Vec3{0.5, 0.5, z + 0.5})))
		s.Require().NoError(err)
		s.ids[i] = id
	}
	for i := range s.portals {
		pid, err := s.graph.AddPortal(zone.NewPortal("door", s.ids[i], s.ids[i+1],
			mgl32.Vec3{0, 0, -float32(i) - 0.5}, mgl32.QuatIdent(), mgl32.Vec3{0.5, 0.5, 0.01}))
		s.Require().NoError(err)
		s.portals[i] = pid
	}
	s.mgr = NewManager(s.graph, 10*time.Millisecond, time.Hour)
}

func (s *ManagerSuite) TestUpdateAll_ComputesScope() {
	s.mgr.Register(1, mgl32.Vec3{}, 1.5)

	s.Equal(1, s.mgr.UpdateAll())
	s.True(s.mgr.Relevant(1, s.ids[0]))
	s.True(s.mgr.Relevant(1, s.ids[1]))
	s.False(s.mgr.Relevant(1, s.ids[2]))
	s.Len(s.mgr.Scope(1), int(s.graph.MaxID())+1)
}

func (s *ManagerSuite) TestUpdateAll_SkipsFresh() {
	o := s.mgr.Register(1, mgl32.Vec3{}, 1.5)
	s.mgr.SetMinMove(0.25)

	s.Equal(1, s.mgr.UpdateAll())
	first := o.Snapshot()

	s.Equal(0, s.mgr.UpdateAll())
	s.Same(first, o.Snapshot())

	o.Move(mgl32.Vec3{0, 0, -0.1})
	s.Equal(0, s.mgr.UpdateAll(), "moved less than min move")

	o.Move(mgl32.Vec3{0, 0, -2})
	s.Equal(1, s.mgr.UpdateAll())
	s.True(s.mgr.Relevant(1, s.ids[2]))
	s.False(s.mgr.Relevant(1, s.ids[0]))
}

func (s *ManagerSuite) TestUpdateAll_TopologyChange() {
	s.mgr.Register(1, mgl32.Vec3{}, 5)
	s.Equal(1, s.mgr.UpdateAll())
	s.True(s.mgr.Relevant(1, s.ids[2]))

	s.Require().NoError(s.graph.RemovePortal(s.portals[1]))

	s.Equal(1, s.mgr.UpdateAll())
	s.False(s.mgr.Relevant(1, s.ids[2]))
}

func (s *ManagerSuite) TestUpdateAll_StaleSnapshot() {
	mgr := NewManager(s.graph, time.Hour, time.Nanosecond)
	mgr.Register(1, mgl32.Vec3{}, 1)

	s.Equal(1, mgr.UpdateAll())
	time.Sleep(time.Millisecond)
	s.Equal(1, mgr.UpdateAll())
}

func (s *ManagerSuite) TestUpdateAll_Parallel() {
	s.mgr.SetParallelThreshold(1)
	s.mgr.SetWorkers(4)
	for i := range 50 {
		s.mgr.Register(uint64(i), mgl32.Vec3{0, 0, -float32(i%3)}, 0.4)
	}

	s.Equal(50, s.mgr.UpdateAll())
	for i := range 50 {
		s.True(s.mgr.Relevant(uint64(i), s.ids[i%3]), "observer %d", i)
	}
	s.Equal(0, s.mgr.UpdateAll())
}

func (s *ManagerSuite) TestRegistration() {
	s.mgr.Register(7, mgl32.Vec3{}, 1)
	s.Equal(1, s.mgr.Count())
	s.NotNil(s.mgr.Observer(7))
	s.Nil(s.mgr.Scope(7), "no scope before the first update")

	s.mgr.Unregister(7)
	s.Equal(0, s.mgr.Count())
	s.Nil(s.mgr.Observer(7))
	s.Nil(s.mgr.Scope(7))
	s.False(s.mgr.Relevant(7, s.ids[0]))
	s.Equal(0, s.mgr.UpdateAll())
}

func (s *ManagerSuite) TestStart() {
	s.mgr.Register(1, mgl32.Vec3{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.mgr.Start(ctx) }()

	s.Eventually(func() bool {
		return s.mgr.Relevant(1, s.ids[0])
	}, time.Second, 5*time.Millisecond)

	cancel()
	s.ErrorIs(<-done, context.Canceled)
}

func TestSnapshot(t *testing.T) {
	snap := &Snapshot{Zones: []bool{false, true}, ComputedAt: time.Now().Add(-time.Minute)}

	assert.True(t, snap.Relevant(1))
	assert.False(t, snap.Relevant(0))
	assert.False(t, snap.Relevant(9))
	assert.True(t, snap.IsStale(time.Second))
	assert.False(t, snap.IsStale(time.Hour))

	o := newObserver(3, mgl32.Vec3{1, 2, 3}, 4)
	require.Nil(t, o.Snapshot())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, o.Position())
	assert.Equal(t, float32(4), o.Radius())
	assert.Equal(t, uint64(3), o.ID())
}

func (s *ManagerSuite) TestTuningDuringUpdates() {
	for i := range 20 {
		s.mgr.Register(uint64(i), mgl32.Vec3{0, 0, -float32(i % 3)}, 1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 50 {
			s.mgr.SetWorkers(i%4 + 1)
			s.mgr.SetParallelThreshold(i%2*10 + 1)
			s.mgr.SetMinMove(float32(i%3) * 0.1)
			s.mgr.SetPlaneEpsilon(traverse.DefaultPlaneEpsilon)
		}
	}()

	for range 50 {
		s.mgr.UpdateAll()
	}
	<-done

	s.mgr.UpdateAll()
	for i := range 20 {
		s.True(s.mgr.Relevant(uint64(i), s.ids[i%3]), "observer %d", i)
	}
}
