package subscription

import "time"

// Config carries the tunable defaults of the subscription engine. Load it
// with pkg/config or construct it directly; zero values fall back to the
// defaults below inside NewService.
type Config struct {
	DefaultTrialDays int `env:"SUBSCRIPTION_TRIAL_DAYS" envDefault:"7"` // trial length when the plan does not specify one
	DefaultGraceDays int `env:"SUBSCRIPTION_GRACE_DAYS" envDefault:"7"` // grace length when the plan does not specify one

	ActiveTTL  time.Duration `env:"SUBSCRIPTION_CACHE_ACTIVE_TTL" envDefault:"5m"`   // TTL for the authoritative-subscription cache entry
	HistoryTTL time.Duration `env:"SUBSCRIPTION_CACHE_HISTORY_TTL" envDefault:"60m"` // TTL for the subscription-history cache entry
	UsageTTL   time.Duration `env:"SUBSCRIPTION_CACHE_USAGE_TTL" envDefault:"5m"`    // TTL for per-metric usage snapshots
}

const (
	defaultTrialDays  = 7
	defaultGraceDays  = 7
	defaultActiveTTL  = 5 * time.Minute
	defaultHistoryTTL = 60 * time.Minute
	defaultUsageTTL   = 5 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.DefaultTrialDays <= 0 {
		c.DefaultTrialDays = defaultTrialDays
	}
	if c.DefaultGraceDays <= 0 {
		c.DefaultGraceDays = defaultGraceDays
	}
	if c.ActiveTTL <= 0 {
		c.ActiveTTL = defaultActiveTTL
	}
	if c.HistoryTTL <= 0 {
		c.HistoryTTL = defaultHistoryTTL
	}
	if c.UsageTTL <= 0 {
		c.UsageTTL = defaultUsageTTL
	}
	return c
}
