// Command oscillon runs the four-axis particle oscillation service: the
// tick engine, the HTTP/WebSocket API, and SQLite persistence.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/oscillon/internal/api"
	"github.com/talgya/oscillon/internal/engine"
	"github.com/talgya/oscillon/internal/entropy"
	"github.com/talgya/oscillon/internal/persistence"
)

// defaultParticles is how many randomized oscillators a fresh world
// starts with.
const defaultParticles = 3

func main() {
	port := flag.Int("port", 8002, "HTTP API port")
	dbPath := flag.String("db", "data/oscillon.db", "SQLite database path")
	seed := flag.Int64("seed", 0, "entropy seed (0 = non-deterministic)")
	autostart := flag.Bool("autostart", true, "start ticking immediately")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("oscillon — four-axis particle oscillation service")

	// ── Entropy ───────────────────────────────────────────────────────
	var src entropy.Source
	if *seed != 0 {
		src = entropy.NewSeeded(*seed)
		slog.Info("entropy seeded", "seed", *seed)
	} else {
		src = entropy.NewSystem()
	}

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(*dbPath), 0755)
	db, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", *dbPath)

	// ── Coordinator ───────────────────────────────────────────────────
	coord := engine.NewCoordinator(src)

	if db.HasState() {
		slog.Info("found saved simulation state, restoring...")

		cfg, simTime, err := db.LoadConfig(coord.CurrentConfig())
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		coord.UpdateConfig(engine.ConfigPatch{
			GlobalCoupling:     &cfg.GlobalCoupling,
			EnvironmentalNoise: &cfg.EnvironmentalNoise,
			UpdateRate:         &cfg.UpdateRate,
		})
		coord.RestoreClock(simTime)

		stored, err := db.LoadOscillators()
		if err != nil {
			slog.Error("failed to load oscillators", "error", err)
			os.Exit(1)
		}
		for _, s := range stored {
			if err := coord.Restore(s.ID, s.Params, s.State, s.ElapsedTime); err != nil {
				slog.Error("failed to restore oscillator", "id", s.ID, "error", err)
				os.Exit(1)
			}
		}

		slog.Info("simulation state restored",
			"oscillators", len(stored),
			"simulation_time", fmt.Sprintf("%.3f", simTime),
		)
	} else {
		slog.Info("no saved state found, spawning default particles", "count", defaultParticles)
		for i := 0; i < defaultParticles; i++ {
			id, err := coord.Create(fmt.Sprintf("particle-%d", i), nil)
			if err != nil {
				slog.Error("failed to create oscillator", "error", err)
				os.Exit(1)
			}
			slog.Info("oscillator created", "id", id)
		}
	}

	if *autostart {
		coord.Start()
	}

	// ── Broadcast hub + scheduler ─────────────────────────────────────
	hub := api.NewHub(coord)
	sched := engine.NewScheduler(coord, hub)
	go sched.Run()

	// ── HTTP API ──────────────────────────────────────────────────────
	server := &api.Server{
		Coord: coord,
		Hub:   hub,
		Port:  *port,
	}
	server.Start()

	// Auto-save once a minute.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.SaveSnapshot(coord.Snapshot(), coord.CurrentConfig()); err != nil {
				slog.Error("periodic save failed", "error", err)
			}
		}
	}()

	// ── Shutdown ──────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("\noscillon is live: %d oscillators ticking at %v intervals.\n",
		coord.Count(), coord.StepInterval())
	fmt.Printf("API: http://localhost:%d/api/status\n", *port)
	fmt.Printf("WebSocket: ws://localhost:%d/api/ws\n", *port)
	fmt.Println("Press Ctrl+C to stop.")

	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
	sched.Stop()
	coord.Stop()

	slog.Info("final save...")
	if err := db.SaveSnapshot(coord.Snapshot(), coord.CurrentConfig()); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println("Simulation stopped. State saved.")
}
