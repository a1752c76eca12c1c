package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/portalgraph/internal/config"
	"github.com/udisondev/portalgraph/internal/db"
	"github.com/udisondev/portalgraph/internal/level"
	"github.com/udisondev/portalgraph/internal/relevance"
	"github.com/udisondev/portalgraph/internal/zone"
)

const ConfigPath = "config/zoneserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("PORTALGRAPH_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadZoneServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	slog.Info("zone server starting", "log_level", cfg.LogLevel, "level_source", cfg.LevelSource)

	def, err := loadDefinition(ctx, cfg)
	if err != nil {
		return err
	}

	graph := zone.NewManager()
	graph.SetMaxZones(cfg.Culling.MaxZones)
	graph.SetRezoneEpsilon(cfg.Culling.RezoneEpsilon)

	lvl, err := level.Build(def, graph)
	if err != nil {
		return fmt.Errorf("building level: %w", err)
	}
	defer func() {
		if err := lvl.Unload(graph); err != nil {
			slog.Error("unloading level", "level", lvl.Name, "err", err)
		}
	}()

	relevanceMgr := relevance.NewManager(graph, cfg.Relevance.Interval, cfg.Relevance.MaxAge)
	relevanceMgr.SetMinMove(cfg.Relevance.MinMove)
	relevanceMgr.SetPlaneEpsilon(cfg.Culling.PlaneEpsilon)
	relevanceMgr.SetParallelThreshold(cfg.Relevance.ParallelThreshold)
	if cfg.Relevance.Workers > 0 {
		relevanceMgr.SetWorkers(cfg.Relevance.Workers)
	}

	// level viewpoints act as fixed observers until clients connect
	for i, cam := range lvl.Cameras {
		relevanceMgr.Register(uint64(i+1), cam.Eye.Vec(), cfg.Relevance.Radius)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting relevance manager", "interval", cfg.Relevance.Interval, "maxAge", cfg.Relevance.MaxAge)
		if err := relevanceMgr.Start(gctx); err != nil && gctx.Err() == nil {
			return fmt.Errorf("relevance manager: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		reportStats(gctx, graph, relevanceMgr, lvl, time.Minute)
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// loadDefinition reads the level from the configured source.
func loadDefinition(ctx context.Context, cfg config.ZoneServer) (*level.Definition, error) {
	if cfg.LevelSource != config.SourceDatabase {
		def, err := level.Load(cfg.LevelFile)
		if err != nil {
			return nil, fmt.Errorf("loading level file: %w", err)
		}
		return def, nil
	}

	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	slog.Info("database connected")

	if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	def, err := database.Levels().Load(ctx, cfg.LevelName)
	if err != nil {
		return nil, fmt.Errorf("loading level from database: %w", err)
	}
	return def, nil
}

// reportStats logs graph and observer counts every interval until ctx is done.
func reportStats(ctx context.Context, graph *zone.Manager, rel *relevance.Manager, lvl *level.Level, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var zones, portals int
			graph.Read(func() {
				zones = len(graph.Zones())
				portals = graph.PortalCount()
			})
			slog.Info("zone server stats",
				"level", lvl.Name,
				"zones", zones,
				"portals", portals,
				"observers", rel.Count(),
				"graph_version", graph.Version())
		}
	}
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
