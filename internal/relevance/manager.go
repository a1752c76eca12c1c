package relevance

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/portalgraph/internal/traverse"
	"github.com/udisondev/portalgraph/internal/zone"
)

// DefaultParallelThreshold is the observer count from which updates are
// spread over workers.
const DefaultParallelThreshold = 256

// Graph is the zone graph the manager scopes against. *zone.Manager implements it.
type Graph interface {
	traverse.Graph
	Read(fn func())
	Version() uint64
}

var _ Graph = (*zone.Manager)(nil)

// Manager recomputes observer scopes periodically.
type Manager struct {
	mu        sync.RWMutex
	observers map[uint64]*Observer

	graph Graph

	interval time.Duration // update period
	maxAge   time.Duration // snapshot considered stale after this
	minMove  float32       // movement below this keeps a fresh snapshot

	planeEps          float32
	workers           int
	parallelThreshold int

	updateMu sync.Mutex // serializes UpdateAll and the tuning setters
	scope    *traverse.ScopeContext
}

// NewManager creates a relevance manager over g. Workers default to
// runtime.NumCPU().
func NewManager(g Graph, interval, maxAge time.Duration) *Manager {
	return &Manager{
		observers:         make(map[uint64]*Observer, 64),
		graph:             g,
		interval:          interval,
		maxAge:            maxAge,
		planeEps:          traverse.DefaultPlaneEpsilon,
		workers:           runtime.NumCPU(),
		parallelThreshold: DefaultParallelThreshold,
		scope:             traverse.NewScopeContext(traverse.DefaultPlaneEpsilon),
	}
}

// SetWorkers sets the number of parallel workers.
func (m *Manager) SetWorkers(n int) {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()
	m.workers = max(n, 1)
}

// SetParallelThreshold sets the observer count from which updates go parallel.
func (m *Manager) SetParallelThreshold(n int) {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()
	m.parallelThreshold = max(n, 1)
}

// SetMinMove sets the distance an observer must travel before a fresh
// snapshot is recomputed.
func (m *Manager) SetMinMove(d float32) {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()
	m.minMove = d
}

// SetPlaneEpsilon sets the slack of the portal plane-side test.
func (m *Manager) SetPlaneEpsilon(eps float32) {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()
	m.planeEps = eps
	m.scope = traverse.NewScopeContext(eps)
}

// Register adds an observer. Registering an existing id replaces it.
func (m *Manager) Register(id uint64, pos mgl32.Vec3, radius float32) *Observer {
	o := newObserver(id, pos, radius)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers[id] = o
	slog.Debug("observer registered", "observer", id, "total", len(m.observers))
	return o
}

// Unregister removes an observer.
func (m *Manager) Unregister(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.observers, id)
	slog.Debug("observer unregistered", "observer", id, "remaining", len(m.observers))
}

// Observer returns the observer registered under id, or nil.
func (m *Manager) Observer(id uint64) *Observer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.observers[id]
}

// Count returns the number of registered observers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observers)
}

// Scope returns the observer's last scope array, or nil.
func (m *Manager) Scope(id uint64) []bool {
	o := m.Observer(id)
	if o == nil {
		return nil
	}
	if s := o.Snapshot(); s != nil {
		return s.Zones
	}
	return nil
}

// Relevant reports whether zone zid was in the observer's last scope.
func (m *Manager) Relevant(id uint64, zid zone.ID) bool {
	o := m.Observer(id)
	if o == nil {
		return false
	}
	s := o.Snapshot()
	return s != nil && s.Relevant(zid)
}

// Start runs UpdateAll every interval until ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.updateMu.Lock()
	workers := m.workers
	m.updateMu.Unlock()
	slog.Info("relevance manager started", "interval", m.interval, "maxAge", m.maxAge, "workers", workers)

	for {
		select {
		case <-ctx.Done():
			slog.Info("relevance manager stopping")
			return ctx.Err()
		case <-ticker.C:
			m.UpdateAll()
		}
	}
}

// UpdateAll refreshes every observer whose snapshot is missing, stale,
// computed against an older graph, or left behind by movement.
// It returns how many snapshots were recomputed.
func (m *Manager) UpdateAll() int {
	m.mu.RLock()
	n := len(m.observers)
	if n == 0 {
		m.mu.RUnlock()
		return 0
	}
	list := make([]*Observer, 0, n)
	for _, o := range m.observers {
		list = append(list, o)
	}
	m.mu.RUnlock()

	m.updateMu.Lock()
	defer m.updateMu.Unlock()

	if n < m.parallelThreshold || m.workers == 1 {
		return m.updateSequential(list)
	}
	return m.updateParallel(list)
}

func (m *Manager) updateSequential(list []*Observer) int {
	updated := 0
	m.graph.Read(func() {
		version := m.graph.Version()
		for _, o := range list {
			if m.update(m.scope, o, version) {
				updated++
			}
		}
	})

	slog.Debug("relevance update completed (sequential)",
		"observers", len(list),
		"updated", updated,
		"skipped", len(list)-updated)
	return updated
}

func (m *Manager) updateParallel(list []*Observer) int {
	var updated atomic.Int32

	workers := min(m.workers, len(list))
	chunk := (len(list) + workers - 1) / workers

	var g errgroup.Group
	g.SetLimit(workers)
	m.graph.Read(func() {
		version := m.graph.Version()
		for start := 0; start < len(list); start += chunk {
			part := list[start:min(start+chunk, len(list))]
			g.Go(func() error {
				ctx := traverse.NewScopeContext(m.planeEps)
				for _, o := range part {
					if m.update(ctx, o, version) {
						updated.Add(1)
					}
				}
				return nil
			})
		}
		_ = g.Wait()
	})

	slog.Debug("relevance update completed (parallel)",
		"observers", len(list),
		"workers", workers,
		"updated", updated.Load(),
		"skipped", len(list)-int(updated.Load()))
	return int(updated.Load())
}

// update recomputes o's scope if needed. Returns false when the snapshot
// was still valid.
func (m *Manager) update(ctx *traverse.ScopeContext, o *Observer, version uint64) bool {
	pos := o.Position()
	if s := o.Snapshot(); s != nil {
		if s.Version == version && !s.IsStale(m.maxAge) && s.Position.Sub(pos).Len() <= m.minMove {
			return false
		}
	}

	zones := ctx.ScopePass(m.graph, pos, o.radius, nil)
	o.snapshot.Store(&Snapshot{
		Zones:      zones,
		Position:   pos,
		Version:    version,
		ComputedAt: time.Now(),
	})
	return true
}
