// zonecull runs one visibility pass and one scope pass over a level and
// prints the result.
//
// Usage:
//
//	go run ./cmd/zonecull -level config/level.yaml -camera doorway
//	go run ./cmd/zonecull -level config/level.yaml -eye 0,1.5,1 -target 0,1.5,-6 -radius 8
//	go run ./cmd/zonecull -level config/level.yaml -save
//	go run ./cmd/zonecull -from-db house -camera doorway
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/udisondev/portalgraph/internal/config"
	"github.com/udisondev/portalgraph/internal/db"
	"github.com/udisondev/portalgraph/internal/geom"
	"github.com/udisondev/portalgraph/internal/level"
	"github.com/udisondev/portalgraph/internal/traverse"
	"github.com/udisondev/portalgraph/internal/zone"
)

type options struct {
	camera string
	eye    mgl32.Vec3
	target mgl32.Vec3
	fov    float32
	width  float32
	height float32
	near   float32
	far    float32
	radius float32
}

func main() {
	cfgPath := flag.String("config", "config/zoneserver.yaml", "zone server config (culling tuning, database)")
	levelPath := flag.String("level", "", "level YAML file (defaults to level_file from the config)")
	fromDB := flag.String("from-db", "", "load the named level from the database instead of a file")
	save := flag.Bool("save", false, "store the loaded level in the database and exit")
	camera := flag.String("camera", "", "named viewpoint from the level")
	eye := flag.String("eye", "0,0,0", "camera position x,y,z")
	target := flag.String("target", "0,0,-1", "point the camera looks at x,y,z")
	fov := flag.Float64("fov", 90, "vertical field of view, degrees")
	size := flag.String("size", "800x600", "viewport WxH in pixels")
	near := flag.Float64("near", 0.1, "near clip distance")
	far := flag.Float64("far", 1000, "far clip distance")
	radius := flag.Float64("radius", 0, "scope radius around the eye (0 skips the scope pass)")
	flag.Parse()

	opts := options{
		camera: *camera,
		fov:    float32(*fov),
		near:   float32(*near),
		far:    float32(*far),
		radius: float32(*radius),
	}
	var err error
	if opts.eye, err = parseVec(*eye); err != nil {
		fail(fmt.Errorf("-eye: %w", err))
	}
	if opts.target, err = parseVec(*target); err != nil {
		fail(fmt.Errorf("-target: %w", err))
	}
	if opts.width, opts.height, err = parseSize(*size); err != nil {
		fail(fmt.Errorf("-size: %w", err))
	}

	cfg, err := config.LoadZoneServer(*cfgPath)
	if err != nil {
		fail(err)
	}

	ctx := context.Background()
	def, err := loadLevel(ctx, cfg, *levelPath, *fromDB)
	if err != nil {
		fail(err)
	}

	if *save {
		if err := saveLevel(ctx, cfg, def); err != nil {
			fail(err)
		}
		fmt.Printf("level %q stored\n", def.Name)
		return
	}

	if err := cull(os.Stdout, def, cfg.Culling, opts); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func loadLevel(ctx context.Context, cfg config.ZoneServer, path, name string) (*level.Definition, error) {
	if name == "" {
		if path == "" {
			path = cfg.LevelFile
		}
		return level.Load(path)
	}

	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	defer database.Close()
	return database.Levels().Load(ctx, name)
}

func saveLevel(ctx context.Context, cfg config.ZoneServer, def *level.Definition) error {
	if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return err
	}
	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer database.Close()
	return database.Levels().Save(ctx, def)
}

// cull builds def and prints the visibility and scope results for the
// viewpoint described by opts.
func cull(w io.Writer, def *level.Definition, tuning config.Culling, opts options) error {
	graph := zone.NewManager()
	graph.SetMaxZones(tuning.MaxZones)
	graph.SetRezoneEpsilon(tuning.RezoneEpsilon)

	lvl, err := level.Build(def, graph)
	if err != nil {
		return err
	}

	if opts.camera != "" {
		cam, ok := lvl.Camera(opts.camera)
		if !ok {
			return fmt.Errorf("level %q has no camera %q", lvl.Name, opts.camera)
		}
		opts.eye, opts.target = cam.Eye.Vec(), cam.Target.Vec()
		if cam.FOV > 0 {
			opts.fov = cam.FOV
		}
	}
	if opts.eye.ApproxEqual(opts.target) {
		return errors.New("eye and target coincide")
	}

	up := mgl32.Vec3{0, 1, 0}
	if dir := opts.target.Sub(opts.eye).Normalize(); mgl32.Abs(dir.Dot(up)) > 0.999 {
		up = mgl32.Vec3{0, 0, -1}
	}
	frustum := geom.NewPerspectiveFrustum(opts.fov, opts.width/opts.height, opts.near, opts.far,
		geom.LookAt(opts.eye, opts.target, up))
	cam := geom.NewFrameCamera(frustum, geom.Viewport{W: opts.width, H: opts.height})

	start := graph.PointZone(opts.eye)
	vis := traverse.NewVisibilityContext(zone.DeriveOptions{DegenerateDistance: tuning.DegenerateDistance})
	table := traverse.NewVisibilityTable(int(graph.MaxID()) + 1)
	exterior := vis.Pass(graph, start, frustum, cam, table)

	fmt.Fprintf(w, "level %s: %d zones, %d portals\n", lvl.Name, len(graph.Zones()), graph.PortalCount())
	fmt.Fprintf(w, "camera in %s\n", lvl.ZoneName(start))
	traverse.Dispatch(table, traverse.RendererFunc(func(id zone.ID, rec traverse.VisibilityRecord) {
		f := rec.Frustum
		fmt.Fprintf(w, "  visible %-16s l=%.4f r=%.4f b=%.4f t=%.4f\n",
			lvl.ZoneName(id), f.Left(), f.Right(), f.Bottom(), f.Top())
	}))
	fmt.Fprintf(w, "exterior reached: %t (%d zones expanded)\n", exterior, vis.Visited())

	if opts.radius > 0 {
		scope := traverse.NewScopeContext(tuning.PlaneEpsilon)
		out := scope.ScopePass(graph, opts.eye, opts.radius, nil)
		var names []string
		for id, in := range out {
			if in {
				names = append(names, lvl.ZoneName(zone.ID(id)))
			}
		}
		fmt.Fprintf(w, "in scope (r=%g): %s\n", opts.radius, strings.Join(names, ", "))
	}
	return nil
}

func parseVec(s string) (mgl32.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return mgl32.Vec3{}, fmt.Errorf("expected x,y,z, got %q", s)
	}
	var v mgl32.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return mgl32.Vec3{}, fmt.Errorf("component %d: %w", i, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}

func parseSize(s string) (float32, float32, error) {
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("expected WxH, got %q", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, err
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("viewport must be positive, got %q", s)
	}
	return float32(w), float32(h), nil
}
