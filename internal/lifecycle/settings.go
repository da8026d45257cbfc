package lifecycle

import "time"

// Settings holds the time windows the engine enforces.
type Settings struct {
	CancelWindow      time.Duration
	AutoComplete      time.Duration
	SessionClearDelay time.Duration
	BusyTTL           time.Duration
	CompletedBusyTTL  time.Duration

	TransitionCooldown time.Duration
	CancelCooldown     time.Duration
	ItemCooldown       time.Duration

	// RecentTTL is how long an applied orderID:status pair is remembered
	// and ignored if requested again.
	RecentTTL time.Duration
	// ViewTTL bounds how long a computed view is memoized.
	ViewTTL time.Duration

	// GuardMaxAge is how old a guard entry must be before a sweep evicts it.
	GuardMaxAge time.Duration
	// SweepInterval is how often StartSweeper evicts expired entries.
	SweepInterval time.Duration
}

// DefaultSettings returns the standard windows.
func DefaultSettings() Settings {
	return Settings{
		CancelWindow:       2 * time.Minute,
		AutoComplete:       60 * time.Second,
		SessionClearDelay:  time.Second,
		BusyTTL:            3 * time.Second,
		CompletedBusyTTL:   1500 * time.Millisecond,
		TransitionCooldown: time.Second,
		CancelCooldown:     2 * time.Second,
		ItemCooldown:       300 * time.Millisecond,
		RecentTTL:          2 * time.Second,
		ViewTTL:            5 * time.Second,
		GuardMaxAge:        time.Hour,
		SweepInterval:      time.Hour,
	}
}
