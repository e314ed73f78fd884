package history

import (
	"errors"
	"fmt"
)

// Defaults applied by Config.withDefaults. DefaultKeepRecent is only
// applied through DefaultConfig: a zero KeepRecent is a valid policy.
const (
	DefaultTokenBudget         = 100_000
	DefaultTriggerRatio        = 0.8
	DefaultKeepRecent          = 10
	DefaultSummaryTargetLength = 2000
)

// Config is the compression policy for one session. It is not modified
// after the manager is created.
type Config struct {
	// TokenBudget is the token capacity reserved for history.
	TokenBudget int `yaml:"token_budget" json:"token_budget"`

	// TriggerRatio is the fraction of TokenBudget above which compression runs.
	TriggerRatio float64 `yaml:"trigger_ratio" json:"trigger_ratio"`

	// KeepRecent is the number of tail messages never compressed. Zero
	// makes every message eligible; negative values are rejected.
	KeepRecent int `yaml:"keep_recent" json:"keep_recent"`

	// SummaryTargetLength is the summary length, in characters, requested
	// from the summarizer.
	SummaryTargetLength int `yaml:"summary_target_length" json:"summary_target_length"`
}

// DefaultConfig returns the default compression policy.
func DefaultConfig() Config {
	return Config{
		TokenBudget:         DefaultTokenBudget,
		TriggerRatio:        DefaultTriggerRatio,
		KeepRecent:          DefaultKeepRecent,
		SummaryTargetLength: DefaultSummaryTargetLength,
	}
}

func (c Config) withDefaults() Config {
	if c.TokenBudget == 0 {
		c.TokenBudget = DefaultTokenBudget
	}
	if c.TriggerRatio == 0 {
		c.TriggerRatio = DefaultTriggerRatio
	}
	if c.SummaryTargetLength == 0 {
		c.SummaryTargetLength = DefaultSummaryTargetLength
	}
	return c
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	if c.TokenBudget < 0 {
		errs = append(errs, fmt.Errorf("token_budget must be positive, got %d", c.TokenBudget))
	}
	if c.TriggerRatio < 0 || c.TriggerRatio > 1 {
		errs = append(errs, fmt.Errorf("trigger_ratio must be in (0, 1], got %v", c.TriggerRatio))
	}
	if c.KeepRecent < 0 {
		errs = append(errs, fmt.Errorf("keep_recent must not be negative, got %d", c.KeepRecent))
	}
	if c.SummaryTargetLength < 0 {
		errs = append(errs, fmt.Errorf("summary_target_length must be positive, got %d", c.SummaryTargetLength))
	}
	return errors.Join(errs...)
}

// Threshold is the cost above which compression triggers.
func (c Config) Threshold() float64 {
	return float64(c.TokenBudget) * c.TriggerRatio
}
