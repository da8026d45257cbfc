package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ordersync/internal/lifecycle"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, lifecycle.DefaultSettings(), cfg.Lifecycle)
	assert.Equal(t, 2*time.Minute, cfg.Lifecycle.CancelWindow)
	assert.Equal(t, 60*time.Second, cfg.Lifecycle.AutoComplete)
	assert.Equal(t, "ordersync", cfg.Redis.Namespace)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "ordersync.cue"))
	require.NoError(t, err)

	assert.Equal(t, "kitchen", cfg.Peer)
	assert.Equal(t, "/var/lib/ordersync/orders.db", cfg.DBPath)
	assert.Equal(t, Redis{Addr: "localhost:6379", Namespace: "bistro"}, cfg.Redis)
	assert.Equal(t, 90*time.Second, cfg.Lifecycle.CancelWindow)
	assert.Equal(t, 2*time.Minute, cfg.Lifecycle.AutoComplete)
	assert.Equal(t, 500*time.Millisecond, cfg.Lifecycle.ItemCooldown)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)

	// Untouched fields keep their defaults.
	def := lifecycle.DefaultSettings()
	assert.Equal(t, def.BusyTTL, cfg.Lifecycle.BusyTTL)
	assert.Equal(t, def.TransitionCooldown, cfg.Lifecycle.TransitionCooldown)
	assert.Equal(t, def.GuardMaxAge, cfg.Lifecycle.GuardMaxAge)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse("empty.cue", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown field", `colour: "blue"`, "invalid config"},
		{"bad duration", `windows: busy: "three seconds"`, "invalid config"},
		{"zero duration", `windows: busy: "0s"`, "must be positive"},
		{"bad log level", `log_level: "loud"`, "invalid config"},
		{"bad namespace", `redis: namespace: "Has Spaces"`, "invalid config"},
		{"syntax", `peer: "a`, "parse config"},
		{"non-concrete", `peer: string`, "invalid config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.cue", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_ErrorsCarryPosition(t *testing.T) {
	_, err := Parse("pos.cue", []byte("peer: \"ok\"\nwindows: cancel: 5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pos.cue")
}
