// Package config loads server settings from a YAML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/engine"
	"github.com/talgya/archipelago/internal/world"
)

// Environment variables read after the file.
const (
	EnvAdminKey = "ARCHIPELAGO_ADMIN_KEY"
	EnvDB       = "ARCHIPELAGO_DB"
)

// Config is the server configuration.
type Config struct {
	TickInterval     time.Duration `yaml:"tick_interval"`
	Speed            float64       `yaml:"speed"` // Game seconds per wall second
	DBPath           string        `yaml:"db_path"`
	APIPort          int           `yaml:"api_port"`
	SaveEvery        time.Duration `yaml:"save_every"` // 0 disables periodic saves
	Seed             int64         `yaml:"seed"`
	TaxRate          float64       `yaml:"tax_rate"`
	AllianceBonus    float64       `yaml:"alliance_bonus"`
	RateLimit        RateLimit     `yaml:"rate_limit"`
	CatalogOverrides string        `yaml:"catalog_overrides"`
	LogLevel         string        `yaml:"log_level"`
	World            World         `yaml:"world"`

	AdminKey string `yaml:"-"`
}

// RateLimit bounds player commands per client IP.
type RateLimit struct {
	PerSecond float64 `yaml:"per_second"` // 0 disables limiting
	Burst     int     `yaml:"burst"`
}

// World shapes the generated archipelago and its random events.
type World struct {
	Radius      int           `yaml:"radius"`
	SeaLevel    float64       `yaml:"sea_level"`
	MaxIslands  int           `yaml:"max_islands"`
	EventEvery  time.Duration `yaml:"event_every"`
	EventChance float64       `yaml:"event_chance"`
	MaxEvents   int           `yaml:"max_events"`
}

// Default returns the built-in configuration.
func Default() Config {
	gen := world.DefaultGenConfig()
	ev := world.DefaultSchedulerConfig()
	return Config{
		TickInterval:  time.Second,
		Speed:         1,
		DBPath:        "data/archipelago.db",
		APIPort:       8080,
		SaveEvery:     5 * time.Minute,
		Seed:          42,
		TaxRate:       0.05,
		AllianceBonus: 0.05,
		RateLimit:     RateLimit{PerSecond: 10, Burst: 20},
		LogLevel:      "info",
		World: World{
			Radius:      gen.Radius,
			SeaLevel:    gen.SeaLevel,
			MaxIslands:  gen.MaxIslands,
			EventEvery:  ev.RollEvery,
			EventChance: ev.Chance,
			MaxEvents:   ev.MaxActive,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path uses the defaults alone.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAdminKey); v != "" {
		c.AdminKey = v
	}
	if v := getenv(EnvDB); v != "" {
		c.DBPath = v
	}
}

// Normalize fills zero values that have an obvious meaning.
func (c *Config) Normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RateLimit.Burst < 1 {
		c.RateLimit.Burst = 1
	}
	if c.World.MaxEvents < 0 {
		c.World.MaxEvents = 0
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.TickInterval <= 0:
		return errors.New("tick_interval must be positive")
	case c.Speed < 0:
		return errors.New("speed must not be negative")
	case c.DBPath == "":
		return errors.New("db_path is required")
	case c.APIPort < 0 || c.APIPort > 65535:
		return fmt.Errorf("api_port %d out of range", c.APIPort)
	case c.SaveEvery < 0:
		return errors.New("save_every must not be negative")
	case c.TaxRate < 0 || c.TaxRate >= 1:
		return fmt.Errorf("tax_rate %v must be in [0, 1)", c.TaxRate)
	case c.AllianceBonus < 0:
		return errors.New("alliance_bonus must not be negative")
	case c.RateLimit.PerSecond < 0:
		return errors.New("rate_limit.per_second must not be negative")
	case c.World.Radius < 1:
		return errors.New("world.radius must be at least 1")
	case c.World.SeaLevel <= 0 || c.World.SeaLevel > 1:
		return fmt.Errorf("world.sea_level %v must be in (0, 1]", c.World.SeaLevel)
	case c.World.EventEvery <= 0:
		return errors.New("world.event_every must be positive")
	case c.World.EventChance < 0 || c.World.EventChance > 1:
		return fmt.Errorf("world.event_chance %v must be in [0, 1]", c.World.EventChance)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log_level %q", s)
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// Catalog returns the default tables with the configured overrides applied.
func (c Config) Catalog() (*catalog.Catalog, error) {
	if c.CatalogOverrides == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(c.CatalogOverrides)
}

// GameOptions builds the options for a new game.
func (c Config) GameOptions(cat *catalog.Catalog, start time.Time) engine.Options {
	return engine.Options{
		Catalog: cat,
		Gen: world.GenConfig{
			Radius:     c.World.Radius,
			Seed:       c.Seed,
			SeaLevel:   c.World.SeaLevel,
			MaxIslands: c.World.MaxIslands,
		},
		Events: world.SchedulerConfig{
			RollEvery: c.World.EventEvery,
			Chance:    c.World.EventChance,
			MaxActive: c.World.MaxEvents,
			Seed:      c.Seed,
		},
		TaxRate:       c.TaxRate,
		AllianceBonus: c.AllianceBonus,
		Seed:          c.Seed,
		Start:         start,
	}
}
