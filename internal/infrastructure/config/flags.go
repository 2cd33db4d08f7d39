package config

import "sync/atomic"

// FeatureFlags holds the runtime-mutable switches. Unlike Config, these can
// be flipped by an admin without a restart.
type FeatureFlags struct {
	withdrawalsEnabled atomic.Bool
}

// NewFeatureFlags seeds the flags from the loaded configuration.
func NewFeatureFlags(cfg *Config) *FeatureFlags {
	f := &FeatureFlags{}
	f.withdrawalsEnabled.Store(cfg.Ledger.WithdrawalsEnabled)
	return f
}

// WithdrawalsEnabled reports whether new withdrawal requests are accepted.
func (f *FeatureFlags) WithdrawalsEnabled() bool {
	return f.withdrawalsEnabled.Load()
}

// SetWithdrawalsEnabled flips the withdrawal gate.
func (f *FeatureFlags) SetWithdrawalsEnabled(enabled bool) {
	f.withdrawalsEnabled.Store(enabled)
}
