package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/portalgraph/internal/level"
)

// ErrLevelNotFound is returned when no level has the requested name.
var ErrLevelNotFound = errors.New("level not found")

// LevelRepository persists level definitions.
type LevelRepository struct {
	pool *pgxpool.Pool
}

// NewLevelRepository creates a new level repository.
func NewLevelRepository(pool *pgxpool.Pool) *LevelRepository {
	return &LevelRepository{pool: pool}
}

// Save stores def under def.Name, replacing any previous version, in a
// single transaction.
func (r *LevelRepository) Save(ctx context.Context, def *level.Definition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("saving level %q: %w", def.Name, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var levelID int32
	if err := tx.QueryRow(ctx,
		`INSERT INTO levels (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET updated_at = now()
		 RETURNING level_id`,
		def.Name,
	).Scan(&levelID); err != nil {
		return fmt.Errorf("upserting level %q: %w", def.Name, err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM level_zones WHERE level_id = $1`, levelID)
	batch.Queue(`DELETE FROM level_portals WHERE level_id = $1`, levelID)
	batch.Queue(`DELETE FROM level_cameras WHERE level_id = $1`, levelID)
	for i, z := range def.Zones {
		batch.Queue(
			`INSERT INTO level_zones (level_id, ordinal, name, min_xyz, max_xyz, id_count)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			levelID, i, z.Name, z.Min[:], z.Max[:], max(z.IDs, 1),
		)
	}
	for i, p := range def.Portals {
		zones := p.Zones
		if zones == nil {
			zones = []string{}
		}
		batch.Queue(
			`INSERT INTO level_portals (level_id, ordinal, name, zones, position_xyz, rotation_xyz, extents_xyz)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			levelID, i, p.Name, zones, p.Position[:], p.Rotation[:], p.Extents[:],
		)
	}
	for i, c := range def.Cameras {
		batch.Queue(
			`INSERT INTO level_cameras (level_id, ordinal, name, eye_xyz, target_xyz, fov)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			levelID, i, c.Name, c.Eye[:], c.Target[:], c.FOV,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range batch.Len() {
		if _, err := br.Exec(); err != nil {
			br.Close() //nolint:errcheck
			return fmt.Errorf("saving level %q contents: %w", def.Name, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close level batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit level %q: %w", def.Name, err)
	}

	slog.Info("level saved", "level", def.Name, "zones", len(def.Zones), "portals", len(def.Portals))
	return nil
}

// Load reads the level named name. Returns ErrLevelNotFound if absent.
func (r *LevelRepository) Load(ctx context.Context, name string) (*level.Definition, error) {
	var levelID int32
	err := r.pool.QueryRow(ctx, `SELECT level_id FROM levels WHERE name = $1`, name).Scan(&levelID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("loading level %q: %w", name, ErrLevelNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying level %q: %w", name, err)
	}

	def := &level.Definition{Name: name}
	if def.Zones, err = r.loadZones(ctx, levelID); err != nil {
		return nil, err
	}
	if def.Portals, err = r.loadPortals(ctx, levelID); err != nil {
		return nil, err
	}
	if def.Cameras, err = r.loadCameras(ctx, levelID); err != nil {
		return nil, err
	}
	return def, nil
}

func (r *LevelRepository) loadZones(ctx context.Context, levelID int32) ([]level.ZoneDef, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, min_xyz, max_xyz, id_count
		 FROM level_zones WHERE level_id = $1 ORDER BY ordinal`, levelID)
	if err != nil {
		return nil, fmt.Errorf("loading zones: %w", err)
	}
	defer rows.Close()

	var zones []level.ZoneDef
	for rows.Next() {
		var (
			z      level.ZoneDef
			lo, hi []float32
			count  int32
		)
		if err := rows.Scan(&z.Name, &lo, &hi, &count); err != nil {
			return nil, fmt.Errorf("scanning zone row: %w", err)
		}
		if z.Min, err = toVec3(lo); err != nil {
			return nil, fmt.Errorf("zone %q min: %w", z.Name, err)
		}
		if z.Max, err = toVec3(hi); err != nil {
			return nil, fmt.Errorf("zone %q max: %w", z.Name, err)
		}
		if count > 1 {
			z.IDs = int(count)
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating zone rows: %w", err)
	}
	return zones, nil
}

func (r *LevelRepository) loadPortals(ctx context.Context, levelID int32) ([]level.PortalDef, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, zones, position_xyz, rotation_xyz, extents_xyz
		 FROM level_portals WHERE level_id = $1 ORDER BY ordinal`, levelID)
	if err != nil {
		return nil, fmt.Errorf("loading portals: %w", err)
	}
	defer rows.Close()

	var portals []level.PortalDef
	for rows.Next() {
		var (
			p             level.PortalDef
			pos, rot, ext []float32
		)
		if err := rows.Scan(&p.Name, &p.Zones, &pos, &rot, &ext); err != nil {
			return nil, fmt.Errorf("scanning portal row: %w", err)
		}
		if len(p.Zones) == 0 {
			p.Zones = nil
		}
		if p.Position, err = toVec3(pos); err != nil {
			return nil, fmt.Errorf("portal %q position: %w", p.Name, err)
		}
		if p.Rotation, err = toVec3(rot); err != nil {
			return nil, fmt.Errorf("portal %q rotation: %w", p.Name, err)
		}
		if p.Extents, err = toVec3(ext); err != nil {
			return nil, fmt.Errorf("portal %q extents: %w", p.Name, err)
		}
		portals = append(portals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating portal rows: %w", err)
	}
	return portals, nil
}

func (r *LevelRepository) loadCameras(ctx context.Context, levelID int32) ([]level.CameraDef, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, eye_xyz, target_xyz, fov
		 FROM level_cameras WHERE level_id = $1 ORDER BY ordinal`, levelID)
	if err != nil {
		return nil, fmt.Errorf("loading cameras: %w", err)
	}
	defer rows.Close()

	var cameras []level.CameraDef
	for rows.Next() {
		var (
			c           level.CameraDef
			eye, target []float32
		)
		if err := rows.Scan(&c.Name, &eye, &target, &c.FOV); err != nil {
			return nil, fmt.Errorf("scanning camera row: %w", err)
		}
		if c.Eye, err = toVec3(eye); err != nil {
			return nil, fmt.Errorf("camera %q eye: %w", c.Name, err)
		}
		if c.Target, err = toVec3(target); err != nil {
			return nil, fmt.Errorf("camera %q target: %w", c.Name, err)
		}
		cameras = append(cameras, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating camera rows: %w", err)
	}
	return cameras, nil
}

// List returns the stored level names in alphabetical order.
func (r *LevelRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM levels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing levels: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("listing levels: %w", err)
	}
	return names, nil
}

// Delete removes the level named name. Returns ErrLevelNotFound if absent.
func (r *LevelRepository) Delete(ctx context.Context, name string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM levels WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("deleting level %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting level %q: %w", name, ErrLevelNotFound)
	}
	return nil
}

func toVec3(xs []float32) (level.Vec3, error) {
	var v level.Vec3
	if len(xs) != 3 {
		return v, fmt.Errorf("expected 3 components, got %d", len(xs))
	}
	copy(v[:], xs)
	return v, nil
}
