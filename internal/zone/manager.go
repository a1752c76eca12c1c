package zone

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultMaxZones bounds the id space handed out by a Manager.
const DefaultMaxZones = 4096

// DefaultRezoneEpsilon is how far past the portal plane Rezone probes for zones.
const DefaultRezoneEpsilon float32 = 0.05

var (
	ErrReservedID     = errors.New("zone id 0 is reserved for the exterior")
	ErrAlreadyExists  = errors.New("already registered")
	ErrRangeExhausted = errors.New("zone id range exhausted")
	ErrUnknownZone    = errors.New("unknown zone")
	ErrUnknownPortal  = errors.New("unknown portal")
	ErrPortalFull     = errors.New("portal already connects two zones")
	ErrInvalidCount   = errors.New("zone range count must be positive")
	ErrNotAttached    = errors.New("portal not attached to zone")
)

// Manager owns the zone and portal tables. Zones and portals reference each
// other only through ids resolved here.
//
// Topology mutations take the write lock. Lookups do not lock: call them from
// the owning goroutine or inside Read, which holds the read lock so traversals
// never observe a half-applied mutation.
type Manager struct {
	mu sync.RWMutex

	owners  []*Zone // id → owning zone; index 0 stays nil
	zones   []*Zone // registered zones ordered by id
	portals []*Portal
	free    []PortalID

	maxZones      int
	rezoneEpsilon float32

	// version is bumped on every topology change
	version atomic.Uint64
}

// NewManager creates an empty manager with default limits.
func NewManager() *Manager {
	return &Manager{
		owners:        make([]*Zone, 1, 64),
		portals:       make([]*Portal, 1, 64),
		maxZones:      DefaultMaxZones,
		rezoneEpsilon: DefaultRezoneEpsilon,
	}
}

// SetMaxZones caps the highest zone id the manager will assign.
func (m *Manager) SetMaxZones(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 1 {
		n = 1
	}
	m.maxZones = n
}

// SetRezoneEpsilon sets the probe distance used by Rezone.
func (m *Manager) SetRezoneEpsilon(eps float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rezoneEpsilon = eps
}

// Read runs fn under the read lock.
func (m *Manager) Read(fn func()) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn()
}

// Version returns a counter bumped on every topology change.
func (m *Manager) Version() uint64 {
	return m.version.Load()
}

// RegisterZoneRange assigns count contiguous ids to z and returns the first.
// Freed ranges are reused first-fit.
func (m *Manager) RegisterZoneRange(z *Zone, count int) (ID, error) {
	if count < 1 {
		return Exterior, ErrInvalidCount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if z.id != Exterior {
		return Exterior, fmt.Errorf("registering zone %q: %w", z.name, ErrAlreadyExists)
	}

	start := m.findRange(count)
	end := int(start) + count
	if end-1 > m.maxZones {
		return Exterior, fmt.Errorf("registering zone %q (%d ids): %w", z.name, count, ErrRangeExhausted)
	}
	for len(m.owners) < end {
		m.owners = append(m.owners, nil)
	}
	for i := int(start); i < end; i++ {
		m.owners[i] = z
	}

	z.id = start
	z.count = count
	m.insertOrdered(z)
	m.version.Add(1)

	slog.Debug("zone registered", "zone", z.name, "id", start, "count", count)
	return start, nil
}

// RegisterZone is RegisterZoneRange with a single id.
func (m *Manager) RegisterZone(z *Zone) (ID, error) {
	return m.RegisterZoneRange(z, 1)
}

// UnregisterZoneRange releases z's ids and detaches every portal from it.
// The detached portal slots become Exterior.
func (m *Manager) UnregisterZoneRange(z *Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if z.id == Exterior || m.owner(z.id) != z {
		return fmt.Errorf("unregistering zone %q: %w", z.name, ErrUnknownZone)
	}

	for _, pid := range append([]PortalID(nil), z.portals...) {
		if p := m.portal(pid); p != nil {
			m.detach(p, z)
		}
	}

	for i := int(z.id); i < int(z.id)+z.count; i++ {
		m.owners[i] = nil
	}
	for i, zz := range m.zones {
		if zz == z {
			m.zones = append(m.zones[:i], m.zones[i+1:]...)
			break
		}
	}

	slog.Debug("zone unregistered", "zone", z.name, "id", z.id)
	z.id = Exterior
	z.count = 0
	m.version.Add(1)
	return nil
}

// Zone resolves id to the zone owning it, or nil.
func (m *Manager) Zone(id ID) *Zone {
	return m.owner(id)
}

// Zones returns the registered zones ordered by id.
// IMPORTANT: the returned slice is owned by the manager, do not modify.
func (m *Manager) Zones() []*Zone {
	return m.zones
}

// MaxID returns the highest id currently backed by the table.
func (m *Manager) MaxID() ID {
	return ID(len(m.owners) - 1)
}

// PointZone returns the lowest-id zone containing p, or Exterior.
func (m *Manager) PointZone(p mgl32.Vec3) ID {
	for _, z := range m.zones {
		if id := z.PointZone(p); id != Exterior {
			return id
		}
	}
	return Exterior
}

// Portal resolves a portal handle, or nil.
func (m *Manager) Portal(pid PortalID) *Portal {
	return m.portal(pid)
}

// PortalCount returns the number of registered portals.
func (m *Manager) PortalCount() int {
	n := 0
	for _, p := range m.portals {
		if p != nil {
			n++
		}
	}
	return n
}

// AddPortal registers p and attaches it to the zones named by its slots.
// Slots naming ids that do not resolve become Exterior.
func (m *Manager) AddPortal(p *Portal) (PortalID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.id != 0 {
		return 0, fmt.Errorf("adding portal %q: %w", p.name, ErrAlreadyExists)
	}

	if n := len(m.free); n > 0 {
		p.id = m.free[n-1]
		m.free = m.free[:n-1]
		m.portals[p.id] = p
	} else {
		p.id = PortalID(len(m.portals))
		m.portals = append(m.portals, p)
	}
	p.Corners()

	for i, zid := range p.zones {
		if zid == Exterior {
			continue
		}
		z := m.owner(zid)
		if z == nil {
			slog.Warn("portal references unknown zone, treating as exterior",
				"portal", p.name, "zone", zid)
			p.setSlot(i, Exterior)
			continue
		}
		p.setSlot(i, z.id)
		z.attachPortal(p.id)
	}
	m.refreshPortalZones(p)
	m.version.Add(1)

	slog.Debug("portal added", "portal", p.name, "id", p.id, "zones", p.zones)
	return p.id, nil
}

// RemovePortal detaches p from both zones and frees its handle.
func (m *Manager) RemovePortal(pid PortalID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.portal(pid)
	if p == nil {
		return fmt.Errorf("removing portal %d: %w", pid, ErrUnknownPortal)
	}
	for _, zid := range p.zones {
		if z := m.owner(zid); z != nil {
			m.detach(p, z)
		}
	}
	m.portals[pid] = nil
	m.free = append(m.free, pid)
	p.id = 0
	m.version.Add(1)
	return nil
}

// AttachPortal connects portal pid to zone zid on both sides.
// Attaching an already connected pair is a no-op.
func (m *Manager) AttachPortal(pid PortalID, zid ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, z, err := m.lookupPair(pid, zid)
	if err != nil {
		return fmt.Errorf("attaching portal: %w", err)
	}
	if p.Connects(z.id) {
		z.attachPortal(p.id)
		return nil
	}

	slot := -1
	for i, s := range p.zones {
		if s == Exterior {
			slot = i
			break
		}
	}
	if slot < 0 {
		return fmt.Errorf("attaching portal %q to zone %q: %w", p.name, z.name, ErrPortalFull)
	}

	p.setSlot(slot, z.id)
	z.attachPortal(p.id)
	m.refreshPortalZones(p)
	m.version.Add(1)
	return nil
}

// DetachPortal disconnects portal pid from zone zid on both sides; the
// portal slot becomes Exterior.
func (m *Manager) DetachPortal(pid PortalID, zid ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, z, err := m.lookupPair(pid, zid)
	if err != nil {
		return fmt.Errorf("detaching portal: %w", err)
	}
	if !p.Connects(z.id) {
		return fmt.Errorf("detaching portal %q from zone %q: %w", p.name, z.name, ErrNotAttached)
	}
	m.detach(p, z)
	m.version.Add(1)
	return nil
}

// UpdatePortal moves or resizes a registered portal and re-resolves its zones.
// Both happen under one write lock, so readers never see the new transform
// with the old zone slots.
func (m *Manager) UpdatePortal(pid PortalID, position mgl32.Vec3, rotation mgl32.Quat, extents mgl32.Vec3) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.portal(pid)
	if p == nil {
		return fmt.Errorf("updating portal %d: %w", pid, ErrUnknownPortal)
	}
	p.SetTransform(position, rotation)
	p.SetExtents(extents)
	p.Corners()
	m.version.Add(1)

	m.rezone(p)
	return nil
}

// Rezone re-resolves the zones on both sides of portal pid by probing
// just in front of and just behind the portal plane. A side with no zone
// becomes Exterior.
func (m *Manager) Rezone(pid PortalID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.portal(pid)
	if p == nil {
		return fmt.Errorf("rezoning portal %d: %w", pid, ErrUnknownPortal)
	}
	m.rezone(p)
	return nil
}

// rezone does the work of Rezone. The caller holds the write lock.
func (m *Manager) rezone(p *Portal) {
	n := p.Normal().Mul(m.rezoneEpsilon)
	front := m.PointZone(p.position.Add(n))
	back := m.PointZone(p.position.Sub(n))
	if back == front {
		back = Exterior
	}

	old := p.zones
	if (old[0] == front && old[1] == back) || (old[0] == back && old[1] == front) {
		return
	}

	for _, zid := range old {
		if z := m.owner(zid); z != nil {
			z.detachPortal(p.id)
			z.refreshOutdoor(m.portal)
		}
	}
	p.zones = [2]ID{front, back}
	for _, zid := range p.zones {
		if z := m.owner(zid); z != nil {
			z.attachPortal(p.id)
		}
	}
	m.refreshPortalZones(p)
	m.version.Add(1)

	slog.Info("portal rezoned", "portal", p.name, "from", old, "to", p.zones)
}

// RezoneAll re-resolves every registered portal.
func (m *Manager) RezoneAll() error {
	m.mu.RLock()
	ids := make([]PortalID, 0, len(m.portals))
	for _, p := range m.portals {
		if p != nil {
			ids = append(ids, p.id)
		}
	}
	m.mu.RUnlock()

	var errs []error
	for _, pid := range ids {
		if err := m.Rezone(pid); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) owner(id ID) *Zone {
	if id == Exterior || int(id) >= len(m.owners) {
		return nil
	}
	return m.owners[id]
}

func (m *Manager) portal(pid PortalID) *Portal {
	if pid == 0 || int(pid) >= len(m.portals) {
		return nil
	}
	return m.portals[pid]
}

func (m *Manager) lookupPair(pid PortalID, zid ID) (*Portal, *Zone, error) {
	if zid == Exterior {
		return nil, nil, ErrReservedID
	}
	p := m.portal(pid)
	if p == nil {
		return nil, nil, fmt.Errorf("portal %d: %w", pid, ErrUnknownPortal)
	}
	z := m.owner(zid)
	if z == nil {
		return nil, nil, fmt.Errorf("zone %d: %w", zid, ErrUnknownZone)
	}
	return p, z, nil
}

// detach clears p's slot for z and removes p from z, then refreshes the
// outdoor flag of everything the portal touched.
func (m *Manager) detach(p *Portal, z *Zone) {
	for i, s := range p.zones {
		if s == z.id {
			p.setSlot(i, Exterior)
		}
	}
	z.detachPortal(p.id)
	z.refreshOutdoor(m.portal)
	m.refreshPortalZones(p)
}

func (m *Manager) refreshPortalZones(p *Portal) {
	for _, zid := range p.zones {
		if z := m.owner(zid); z != nil {
			z.refreshOutdoor(m.portal)
		}
	}
}

// findRange returns the first id of a free run of count ids, possibly past
// the end of the table.
func (m *Manager) findRange(count int) ID {
	run := 0
	for i := 1; i < len(m.owners); i++ {
		if m.owners[i] != nil {
			run = 0
			continue
		}
		run++
		if run == count {
			return ID(i - count + 1)
		}
	}
	return ID(len(m.owners) - run)
}

func (m *Manager) insertOrdered(z *Zone) {
	i := len(m.zones)
	for i > 0 && m.zones[i-1].id > z.id {
		i--
	}
	m.zones = append(m.zones, nil)
	copy(m.zones[i+1:], m.zones[i:])
	m.zones[i] = z
}
