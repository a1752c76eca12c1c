package level

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/udisondev/portalgraph/internal/geom"
	"github.com/udisondev/portalgraph/internal/zone"
)

// Level is a definition loaded into a zone.Manager.
type Level struct {
	Name    string
	Zones   map[string]zone.ID
	Portals map[string]zone.PortalID
	Cameras []CameraDef

	zones []*zone.Zone
}

// ZoneName returns the name of the zone owning id, or ExteriorName.
func (l *Level) ZoneName(id zone.ID) string {
	for _, z := range l.zones {
		if id >= z.ID() && int(id) < int(z.ID())+z.Count() {
			return z.Name()
		}
	}
	return ExteriorName
}

// Camera returns the viewpoint named name.
func (l *Level) Camera(name string) (CameraDef, bool) {
	for _, c := range l.Cameras {
		if c.Name == name {
			return c, true
		}
	}
	return CameraDef{}, false
}

// Build registers def's zones and portals with m. Portals without explicit
// zones are resolved from their position. On error everything registered so
// far is removed again.
func Build(def *Definition, m *zone.Manager) (*Level, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("level %q: %w", def.Name, err)
	}

	lvl := &Level{
		Name:    def.Name,
		Zones:   make(map[string]zone.ID, len(def.Zones)),
		Portals: make(map[string]zone.PortalID, len(def.Portals)),
		Cameras: def.Cameras,
	}

	for _, zd := range def.Zones {
		z := zone.NewZone(zd.Name, geom.NewBox(zd.Min.Vec(), zd.Max.Vec()))
		id, err := m.RegisterZoneRange(z, max(zd.IDs, 1))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("level %q: %w", def.Name, err), lvl.Unload(m))
		}
		lvl.Zones[zd.Name] = id
		lvl.zones = append(lvl.zones, z)
	}

	for _, pd := range def.Portals {
		a, b := zone.Exterior, zone.Exterior
		if len(pd.Zones) > 0 {
			a = lvl.Zones[pd.Zones[0]]
		}
		if len(pd.Zones) > 1 {
			b = lvl.Zones[pd.Zones[1]]
		}

		p := zone.NewPortal(pd.Name, a, b, pd.Position.Vec(), pd.Quat(), pd.Extents.Vec())
		pid, err := m.AddPortal(p)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("level %q: portal %q: %w", def.Name, pd.Name, err), lvl.Unload(m))
		}
		lvl.Portals[pd.Name] = pid

		if len(pd.Zones) == 0 {
			if err := m.Rezone(pid); err != nil {
				return nil, errors.Join(fmt.Errorf("level %q: portal %q: %w", def.Name, pd.Name, err), lvl.Unload(m))
			}
		}
	}

	slog.Info("level built", "level", def.Name, "zones", len(lvl.Zones), "portals", len(lvl.Portals))
	return lvl, nil
}

// Unload removes the level's portals and zones from m.
func (l *Level) Unload(m *zone.Manager) error {
	var errs []error
	for name, pid := range l.Portals {
		if err := m.RemovePortal(pid); err != nil {
			errs = append(errs, fmt.Errorf("portal %q: %w", name, err))
		}
	}
	for _, z := range l.zones {
		if err := m.UnregisterZoneRange(z); err != nil {
			errs = append(errs, fmt.Errorf("zone %q: %w", z.Name(), err))
		}
	}
	clear(l.Portals)
	clear(l.Zones)
	l.zones = nil
	return errors.Join(errs...)
}
