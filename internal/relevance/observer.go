// Package relevance keeps per-observer scope results fresh. Network code asks
// it which zones matter to a client instead of running a scope pass per
// packet.
package relevance

import (
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/udisondev/portalgraph/internal/zone"
)

// Snapshot is an immutable scope result. Zones is indexed by zone id.
type Snapshot struct {
	Zones      []bool
	Position   mgl32.Vec3
	Version    uint64
	ComputedAt time.Time
}

// IsStale reports whether the snapshot is older than maxAge.
func (s *Snapshot) IsStale(maxAge time.Duration) bool {
	return time.Since(s.ComputedAt) > maxAge
}

// Relevant reports whether zone id was in scope.
func (s *Snapshot) Relevant(id zone.ID) bool {
	return int(id) < len(s.Zones) && s.Zones[id]
}

// Observer is a reference point (usually a connected client) whose scope is
// recomputed by the Manager.
type Observer struct {
	id     uint64
	radius float32

	position atomic.Pointer[mgl32.Vec3]
	snapshot atomic.Pointer[Snapshot]
}

func newObserver(id uint64, pos mgl32.Vec3, radius float32) *Observer {
	o := &Observer{id: id, radius: radius}
	o.position.Store(&pos)
	return o
}

// ID returns the observer id.
func (o *Observer) ID() uint64 { return o.id }

// Radius returns the scope radius.
func (o *Observer) Radius() float32 { return o.radius }

// Position returns the last reported position.
func (o *Observer) Position() mgl32.Vec3 { return *o.position.Load() }

// Move reports a new position. The scope is refreshed on the next update.
func (o *Observer) Move(pos mgl32.Vec3) {
	o.position.Store(&pos)
}

// Snapshot returns the last computed scope, or nil before the first update.
func (o *Observer) Snapshot() *Snapshot { return o.snapshot.Load() }
