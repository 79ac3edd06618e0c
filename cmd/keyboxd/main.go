package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/keyboxlab/keyboxd/internal/config"
	"github.com/keyboxlab/keyboxd/internal/db"
	"github.com/keyboxlab/keyboxd/internal/httpapi"
	"github.com/keyboxlab/keyboxd/internal/keybox/actuator"
	"github.com/keyboxlab/keyboxd/internal/keybox/journal"
	"github.com/keyboxlab/keyboxd/internal/keybox/schedule"
	"github.com/keyboxlab/keyboxd/internal/keybox/service"
	"github.com/keyboxlab/keyboxd/internal/keybox/store"
	"github.com/keyboxlab/keyboxd/internal/keybox/store/sqlite"
)

func main() {
	var (
		configPath = pflag.String("config", "", "path to YAML config file")
		addr       = pflag.String("addr", "", "listen address (overrides config)")
		seedDev    = pflag.Bool("seed-dev", false, "seed a dev room and device, then continue")
	)
	pflag.Parse()

	logger := log.New(os.Stdout, "keyboxd ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage.
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	if *seedDev || cfg.Env == "dev" {
		if err := db.SeedDev(ctx, conn); err != nil {
			logger.Fatalf("seed dev data: %v", err)
		}
	}

	writer := db.NewWorker(conn)
	defer writer.Close()

	attempts := sqlite.NewAttemptStore(conn, writer)
	sessions := sqlite.NewSessionStore(conn, writer)
	devices := sqlite.NewDeviceStore(conn, writer)
	heartbeats := sqlite.NewHeartbeatStore(conn, writer)
	commands := sqlite.NewManualCommandStore(conn, writer)

	// Durable decision journal. Replay first: it trims any tail torn by a
	// power cut and reports what survived on disk before appends resume.
	var granted int
	replayed, err := journal.Replay(cfg.JournalPath, func(payload []byte) error {
		var rec store.AttemptRecord
		if err := journal.Decode(payload, &rec); err != nil {
			return fmt.Errorf("decode journal record: %w", err)
		}
		if rec.Granted {
			granted++
		}
		return nil
	})
	if err != nil {
		logger.Fatalf("replay journal: %v", err)
	}
	if replayed > 0 {
		logger.Printf("journal: %d decisions on disk (%d granted)", replayed, granted)
	}

	jnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		logger.Fatalf("open journal: %v", err)
	}
	defer jnl.Close()

	// Schedules, reloaded on file change.
	bundle, err := schedule.Load(cfg.SchedulePath)
	if err != nil {
		logger.Fatalf("load schedules: %v", err)
	}
	schedules := schedule.NewStore(bundle)
	logger.Printf("loaded schedules: %s %s, %d rooms",
		bundle.AcademicYear, bundle.Semester, len(bundle.Rooms()))

	watcher, err := schedule.NewWatcher(schedules, cfg.SchedulePath, logger)
	if err != nil {
		logger.Fatalf("watch schedules: %v", err)
	}
	watcher.Start(ctx)
	defer watcher.Stop()

	// Services.
	registry := service.NewDeviceRegistry(devices)
	accessSvc := service.NewAccessService(service.AccessConfig{
		Registry:  registry,
		Schedules: schedules,
		Locks:     actuator.NewController(cfg.Pulse(), cfg.Cooldown()),
		Attempts:  attempts,
		Sessions:  sessions,
		Journal:   jnl,
		Policy:    service.CooldownPolicy(cfg.CooldownPolicy),
		Logger:    logger,
	})

	pruner := service.NewPruner(map[string]service.Prunable{
		"heartbeats":      heartbeats,
		"manual_commands": commands,
	}, service.PrunerConfig{
		RetentionDays: cfg.RetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	// HTTP.
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:           logger,
		Addr:             cfg.HTTPAddr,
		AccessService:    accessSvc,
		HeartbeatService: service.NewHeartbeatService(heartbeats, registry),
		SyncService:      service.NewSyncService(schedules, 5*time.Minute),
		OfflineService:   service.NewOfflineLogService(registry, attempts, jnl, logger),
		ManualService:    service.NewManualService(commands, registry, cfg.ManualWindow()),
		Journal:          jnl,
		RateLimitRPS:     cfg.RateLimitRPS,
		RateLimitBurst:   cfg.RateLimitBurst,
	})

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
