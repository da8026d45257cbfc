// Package config loads ordersync settings from a CUE file.
//
// The file is unified with an embedded schema (schema.cue), validated as
// concrete, and decoded over Default(), so a file only needs the fields it
// changes.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/ordersync/internal/lifecycle"
	"github.com/roach88/ordersync/internal/shared"
)

//go:embed schema.cue
var schemaCUE []byte

// Config is the resolved configuration of one peer.
type Config struct {
	Peer      string
	DBPath    string
	Redis     Redis
	Lifecycle lifecycle.Settings
	LogLevel  slog.Level
}

// Redis locates the shared store. An empty Addr selects local-only mode.
type Redis struct {
	Addr      string
	Namespace string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:    "ordersync.db",
		Redis:     Redis{Namespace: shared.DefaultNamespace},
		Lifecycle: lifecycle.DefaultSettings(),
		LogLevel:  slog.LevelInfo,
	}
}

// file mirrors #Config. Pointers distinguish omitted fields.
type file struct {
	Peer   *string `json:"peer"`
	DBPath *string `json:"db_path"`
	Redis  *struct {
		Addr      *string `json:"addr"`
		Namespace *string `json:"namespace"`
	} `json:"redis"`
	Windows *struct {
		Cancel        *string `json:"cancel"`
		AutoComplete  *string `json:"auto_complete"`
		SessionClear  *string `json:"session_clear"`
		Busy          *string `json:"busy"`
		CompletedBusy *string `json:"completed_busy"`
		Recent        *string `json:"recent"`
		View          *string `json:"view"`
	} `json:"windows"`
	Cooldowns *struct {
		Transition *string `json:"transition"`
		Cancel     *string `json:"cancel"`
		Item       *string `json:"item"`
	} `json:"cooldowns"`
	Guard *struct {
		MaxAge        *string `json:"max_age"`
		SweepInterval *string `json:"sweep_interval"`
	} `json:"guard"`
	LogLevel *string `json:"log_level"`
}

// Load reads and validates the CUE file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates CUE source and applies it over Default(). name is used
// in error positions.
func Parse(name string, data []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return Config{}, fmt.Errorf("parse config: %s", formatCUEError(err))
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("invalid config: %s", formatCUEError(err))
	}

	var f file
	if err := unified.Decode(&f); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg := Default()
	if err := f.apply(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (f file) apply(cfg *Config) error {
	if f.Peer != nil {
		cfg.Peer = *f.Peer
	}
	if f.DBPath != nil {
		cfg.DBPath = *f.DBPath
	}
	if f.Redis != nil {
		if f.Redis.Addr != nil {
			cfg.Redis.Addr = *f.Redis.Addr
		}
		if f.Redis.Namespace != nil {
			cfg.Redis.Namespace = *f.Redis.Namespace
		}
	}
	if f.LogLevel != nil {
		if err := cfg.LogLevel.UnmarshalText([]byte(*f.LogLevel)); err != nil {
			return fmt.Errorf("invalid config: log_level: %w", err)
		}
	}

	s := &cfg.Lifecycle
	var fields []durationField
	if w := f.Windows; w != nil {
		fields = append(fields,
			durationField{"windows.cancel", w.Cancel, &s.CancelWindow},
			durationField{"windows.auto_complete", w.AutoComplete, &s.AutoComplete},
			durationField{"windows.session_clear", w.SessionClear, &s.SessionClearDelay},
			durationField{"windows.busy", w.Busy, &s.BusyTTL},
			durationField{"windows.completed_busy", w.CompletedBusy, &s.CompletedBusyTTL},
			durationField{"windows.recent", w.Recent, &s.RecentTTL},
			durationField{"windows.view", w.View, &s.ViewTTL},
		)
	}
	if c := f.Cooldowns; c != nil {
		fields = append(fields,
			durationField{"cooldowns.transition", c.Transition, &s.TransitionCooldown},
			durationField{"cooldowns.cancel", c.Cancel, &s.CancelCooldown},
			durationField{"cooldowns.item", c.Item, &s.ItemCooldown},
		)
	}
	if g := f.Guard; g != nil {
		fields = append(fields,
			durationField{"guard.max_age", g.MaxAge, &s.GuardMaxAge},
			durationField{"guard.sweep_interval", g.SweepInterval, &s.SweepInterval},
		)
	}
	for _, df := range fields {
		if err := df.apply(); err != nil {
			return err
		}
	}
	return nil
}

type durationField struct {
	path string
	raw  *string
	dst  *time.Duration
}

func (d durationField) apply() error {
	if d.raw == nil {
		return nil
	}
	v, err := time.ParseDuration(*d.raw)
	if err != nil {
		return fmt.Errorf("invalid config: %s: %w", d.path, err)
	}
	if v <= 0 {
		return fmt.Errorf("invalid config: %s: must be positive, got %s", d.path, *d.raw)
	}
	*d.dst = v
	return nil
}

// formatCUEError flattens a CUE error list into one line per error,
// prefixed with every source position involved.
func formatCUEError(err error) string {
	lines := make([]string, 0, 1)
	for _, e := range errors.Errors(err) {
		var locs []string
		for _, pos := range errors.Positions(e) {
			if pos.IsValid() {
				locs = append(locs, fmt.Sprintf("%s:%d:%d", pos.Filename(), pos.Line(), pos.Column()))
			}
		}
		msg := e.Error()
		if len(locs) > 0 {
			msg = strings.Join(locs, ",") + ": " + msg
		}
		lines = append(lines, msg)
	}
	return strings.Join(lines, "; ")
}
