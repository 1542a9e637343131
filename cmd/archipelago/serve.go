package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/archipelago/internal/api"
	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/config"
	"github.com/talgya/archipelago/internal/engine"
	"github.com/talgya/archipelago/internal/persistence"
)

// eventFlushEvery is how often buffered events are written to the log.
const eventFlushEvery = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		founders []string
		catchUp  bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg, founders, catchUp)
		},
	}
	cmd.Flags().StringSliceVar(&founders, "found", []string{"Knossos:minos"},
		"Cities to found in a new game, as name:owner")
	cmd.Flags().BoolVar(&catchUp, "catch-up", true,
		"Process the time the server was down as one tick on start")
	return cmd
}

func serve(cfg config.Config, founders []string, catchUp bool) error {
	slog.Info("Archipelago game server", "config", configFile, "speed", cfg.Speed, "tick_interval", cfg.TickInterval)

	cat, err := cfg.Catalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Load or Generate Game ─────────────────────────────────────────
	game, err := loadOrCreate(db, cfg, cat, founders)
	if err != nil {
		return err
	}

	elog := newEventLog(game.Bus())
	defer elog.close()

	// ── Engine ────────────────────────────────────────────────────────
	start := game.LastUpdate()
	if now := time.Now().UTC(); catchUp && now.After(start) {
		slog.Info("catching up", "offline", now.Sub(start).Round(time.Second))
		start = now
	}
	eng := engine.NewEngine(start)
	eng.Interval = cfg.TickInterval
	eng.SetSpeed(cfg.Speed)
	eng.OnTick = game.Tick

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn(config.EnvAdminKey + " not set, admin endpoints will be disabled")
	}
	apiServer := &api.Server{
		Game:     game,
		Eng:      eng,
		Saver:    db,
		Port:     cfg.APIPort,
		AdminKey: cfg.AdminKey,
		Limiter:  api.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
	}
	go func() {
		if err := apiServer.ListenAndServe(ctx); err != nil {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	// ── Background saves ──────────────────────────────────────────────
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		background(ctx, cfg.SaveEvery, game, db, elog)
	}()

	fmt.Printf("\nArchipelago is running: %d cities.\n", len(game.Cities()))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.APIPort)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("engine stopped", "error", err)
	}
	wg.Wait()

	// Final save on shutdown.
	slog.Info("final save...")
	elog.flush(db)
	if err := db.SaveState(game.State()); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	fmt.Println("Simulation stopped. Game saved.")
	return nil
}

// loadOrCreate restores the saved game or starts a new one with the given
// founders.
func loadOrCreate(db *persistence.DB, cfg config.Config, cat *catalog.Catalog, founders []string) (*engine.Game, error) {
	state, warnings, err := db.LoadState()
	switch {
	case err == nil:
		opts := cfg.GameOptions(cat, state.LastUpdate)
		opts.Islands = state.Islands
		game := engine.NewGame(opts)
		if err := game.Restore(state); err != nil {
			return nil, err
		}
		if len(warnings) > 0 {
			slog.Warn("game loaded with consistency warnings", "count", len(warnings))
		}
		return game, nil
	case !errors.Is(err, persistence.ErrNoState):
		return nil, fmt.Errorf("load game: %w", err)
	}

	slog.Info("no saved game found, generating a new archipelago...", "seed", cfg.Seed)
	game := engine.NewGame(cfg.GameOptions(cat, time.Now().UTC()))
	for _, isl := range game.Islands() {
		slog.Info("island", "id", isl.ID, "name", isl.Name, "size", isl.Size, "bonus", isl.Bonus)
	}
	for _, f := range founders {
		name, owner, ok := strings.Cut(f, ":")
		if !ok || name == "" || owner == "" {
			return nil, fmt.Errorf("--found %q: want name:owner", f)
		}
		c, err := game.FoundCity(name, owner, "")
		if err != nil {
			return nil, fmt.Errorf("found %s: %w", name, err)
		}
		slog.Info("city founded", "id", c.ID, "name", c.Name, "owner", c.Owner, "island", c.IslandID)
	}
	if err := db.SaveState(game.State()); err != nil {
		slog.Error("initial save failed", "error", err)
	}
	return game, nil
}

// background saves the game every saveEvery and flushes the event log
// until ctx is done.
func background(ctx context.Context, saveEvery time.Duration, game *engine.Game, db *persistence.DB, events *eventLog) {
	flush := time.NewTicker(eventFlushEvery)
	defer flush.Stop()

	var save <-chan time.Time
	if saveEvery > 0 {
		t := time.NewTicker(saveEvery)
		defer t.Stop()
		save = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-flush.C:
			events.flush(db)
		case <-save:
			if err := db.SaveState(game.State()); err != nil {
				slog.Error("periodic save failed", "error", err)
			}
		}
	}
}

// eventLog buffers bus events for the database. Per-tick updates are not
// logged.
type eventLog struct {
	mu          sync.Mutex
	pending     []engine.Event
	unsubscribe func()
}

func newEventLog(bus *engine.Bus) *eventLog {
	l := &eventLog{}
	l.unsubscribe = bus.Subscribe("", func(e engine.Event) {
		if e.Kind == engine.GameUpdated {
			return
		}
		l.mu.Lock()
		l.pending = append(l.pending, e)
		l.mu.Unlock()
	})
	return l
}

func (l *eventLog) flush(db *persistence.DB) {
	l.mu.Lock()
	events := l.pending
	l.pending = nil
	l.mu.Unlock()

	if err := db.SaveEvents(events); err != nil {
		slog.Error("event log write failed", "events", len(events), "error", err)
	}
}

func (l *eventLog) close() {
	l.unsubscribe()
}
