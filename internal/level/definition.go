// Package level describes zone graphs as data and builds them into a
// zone.Manager. Definitions come from YAML files or from the database.
package level

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// ExteriorName names the outside region in portal definitions.
const ExteriorName = "exterior"

// Definition is a whole level: its zones, the portals joining them and
// optional named viewpoints.
type Definition struct {
	Name    string      `yaml:"name"`
	Zones   []ZoneDef   `yaml:"zones"`
	Portals []PortalDef `yaml:"portals"`
	Cameras []CameraDef `yaml:"cameras,omitempty"`
}

// ZoneDef is an axis-aligned zone. IDs reserves a contiguous id range
// (default 1).
type ZoneDef struct {
	Name string `yaml:"name"`
	Min  Vec3   `yaml:"min"`
	Max  Vec3   `yaml:"max"`
	IDs  int    `yaml:"ids,omitempty"`
}

// PortalDef places a portal. Zones names the two sides; leave it empty to
// resolve the sides from the portal position.
type PortalDef struct {
	Name     string   `yaml:"name"`
	Zones    []string `yaml:"zones,omitempty"`
	Position Vec3     `yaml:"position"`
	Rotation Vec3     `yaml:"rotation,omitempty"` // XYZ Euler angles, degrees
	Extents  Vec3     `yaml:"extents"`
}

// CameraDef is a named viewpoint.
type CameraDef struct {
	Name   string  `yaml:"name"`
	Eye    Vec3    `yaml:"eye"`
	Target Vec3    `yaml:"target"`
	FOV    float32 `yaml:"fov,omitempty"` // vertical, degrees
}

// Vec3 is a YAML [x, y, z] triple.
type Vec3 [3]float32

// Vec returns v as an mgl32 vector.
func (v Vec3) Vec() mgl32.Vec3 { return mgl32.Vec3(v) }

// UnmarshalYAML accepts a three element sequence.
func (v *Vec3) UnmarshalYAML(node *yaml.Node) error {
	var xs []float32
	if err := node.Decode(&xs); err != nil {
		return err
	}
	if len(xs) != 3 {
		return fmt.Errorf("line %d: expected 3 components, got %d", node.Line, len(xs))
	}
	copy(v[:], xs)
	return nil
}

// Quat returns the portal orientation.
func (p PortalDef) Quat() mgl32.Quat {
	return mgl32.AnglesToQuat(
		mgl32.DegToRad(p.Rotation[0]),
		mgl32.DegToRad(p.Rotation[1]),
		mgl32.DegToRad(p.Rotation[2]),
		mgl32.XYZ,
	)
}

// Validate reports authoring mistakes: duplicate or missing names, empty
// zone bounds and portals naming unknown zones.
func (d *Definition) Validate() error {
	var errs []error

	zones := make(map[string]struct{}, len(d.Zones))
	for i, z := range d.Zones {
		switch {
		case z.Name == "":
			errs = append(errs, fmt.Errorf("zone #%d: missing name", i))
		case z.Name == ExteriorName:
			errs = append(errs, fmt.Errorf("zone #%d: name %q is reserved", i, ExteriorName))
		default:
			if _, dup := zones[z.Name]; dup {
				errs = append(errs, fmt.Errorf("zone %q: duplicate name", z.Name))
			}
			zones[z.Name] = struct{}{}
		}
		if z.IDs < 0 {
			errs = append(errs, fmt.Errorf("zone %q: negative id count", z.Name))
		}
		for a := range 3 {
			if z.Min[a] > z.Max[a] {
				errs = append(errs, fmt.Errorf("zone %q: min exceeds max on axis %d", z.Name, a))
				break
			}
		}
	}

	portals := make(map[string]struct{}, len(d.Portals))
	for i, p := range d.Portals {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("portal #%d: missing name", i))
		} else if _, dup := portals[p.Name]; dup {
			errs = append(errs, fmt.Errorf("portal %q: duplicate name", p.Name))
		}
		portals[p.Name] = struct{}{}

		if len(p.Zones) > 2 {
			errs = append(errs, fmt.Errorf("portal %q: connects %d zones, at most 2 allowed", p.Name, len(p.Zones)))
		}
		for _, name := range p.Zones {
			if name == ExteriorName || name == "" {
				continue
			}
			if _, ok := zones[name]; !ok {
				errs = append(errs, fmt.Errorf("portal %q: unknown zone %q", p.Name, name))
			}
		}
	}

	return errors.Join(errs...)
}

// Parse decodes and validates a YAML level definition. Unknown keys are errors.
func Parse(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decoding level: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("level %q: %w", def.Name, err)
	}
	return &def, nil
}

// Load reads and parses a level file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading level %s: %w", path, err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading level %s: %w", path, err)
	}
	return def, nil
}
