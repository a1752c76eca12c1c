package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Level sources.
const (
	SourceFile     = "file"
	SourceDatabase = "database"
)

// ZoneServer holds all configuration for the zone server.
type ZoneServer struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	// Level definition
	LevelSource string `yaml:"level_source"` // file or database
	LevelFile   string `yaml:"level_file"`
	LevelName   string `yaml:"level_name"` // row to load when level_source is database

	// Database
	Database DatabaseConfig `yaml:"database"`

	Culling   Culling   `yaml:"culling"`
	Relevance Relevance `yaml:"relevance"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Culling tunes the zone graph and its traversals.
type Culling struct {
	// camera-to-portal distance below which an unprojectable portal keeps
	// the parent frustum
	DegenerateDistance float32 `yaml:"degenerate_distance"`
	RezoneEpsilon      float32 `yaml:"rezone_epsilon"`
	PlaneEpsilon       float32 `yaml:"plane_epsilon"`
	MaxZones           int     `yaml:"max_zones"`
}

// Relevance tunes the periodic observer scope updates.
type Relevance struct {
	Interval          time.Duration `yaml:"interval"`
	MaxAge            time.Duration `yaml:"max_age"`
	MinMove           float32       `yaml:"min_move"`
	Workers           int           `yaml:"workers"` // 0 = runtime.NumCPU()
	ParallelThreshold int           `yaml:"parallel_threshold"`
	Radius            float32       `yaml:"radius"` // scope radius of level viewpoints
}

// DefaultZoneServer returns ZoneServer config with sensible defaults.
func DefaultZoneServer() ZoneServer {
	return ZoneServer{
		LogLevel:    "info",
		LevelSource: SourceFile,
		LevelFile:   "config/level.yaml",
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "portalgraph",
			Password: "portalgraph",
			DBName:   "portalgraph",
			SSLMode:  "disable",
		},
		Culling: Culling{
			DegenerateDistance: 2.0,
			RezoneEpsilon:      0.05,
			PlaneEpsilon:       1e-4,
			MaxZones:           4096,
		},
		Relevance: Relevance{
			Interval:          100 * time.Millisecond,
			MaxAge:            time.Second,
			MinMove:           0.5,
			ParallelThreshold: 256,
			Radius:            32,
		},
	}
}

// Validate checks values the zone server cannot start with.
func (c ZoneServer) Validate() error {
	var errs []error
	switch c.LevelSource {
	case SourceFile:
		if c.LevelFile == "" {
			errs = append(errs, errors.New("level_file is required when level_source is file"))
		}
	case SourceDatabase:
		if c.LevelName == "" {
			errs = append(errs, errors.New("level_name is required when level_source is database"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown level_source %q", c.LevelSource))
	}
	if c.Culling.MaxZones < 1 {
		errs = append(errs, fmt.Errorf("culling.max_zones must be positive, got %d", c.Culling.MaxZones))
	}
	if c.Culling.DegenerateDistance < 0 {
		errs = append(errs, fmt.Errorf("culling.degenerate_distance must not be negative, got %g", c.Culling.DegenerateDistance))
	}
	if c.Relevance.Interval <= 0 {
		errs = append(errs, fmt.Errorf("relevance.interval must be positive, got %s", c.Relevance.Interval))
	}
	return errors.Join(errs...)
}

// LoadZoneServer loads zone server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadZoneServer(path string) (ZoneServer, error) {
	cfg := DefaultZoneServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
