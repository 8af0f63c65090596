package resilience

import "time"

// Settings is the flat, config-file form of retry and breaker tuning.
type Settings struct {
	MaxAttempts      int
	InitialBackoffMs int
	MaxBackoffMs     int
	Multiplier       float64
	JitterFraction   float64
	FailureThreshold int
	ResetTimeoutSecs int
}

// Retry converts s into a RetryConfig; zero fields keep the defaults.
func (s Settings) Retry() RetryConfig {
	cfg := DefaultRetryConfig()
	if s.MaxAttempts > 0 {
		cfg.MaxAttempts = s.MaxAttempts
	}
	if s.InitialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(s.InitialBackoffMs) * time.Millisecond
	}
	if s.MaxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(s.MaxBackoffMs) * time.Millisecond
	}
	if s.Multiplier > 0 {
		cfg.Multiplier = s.Multiplier
	}
	if s.JitterFraction >= 0 {
		cfg.JitterFraction = s.JitterFraction
	}
	return cfg
}

// Circuit converts s into a CircuitBreakerConfig; zero fields keep the defaults.
func (s Settings) Circuit() CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if s.FailureThreshold > 0 {
		cfg.FailureThreshold = s.FailureThreshold
	}
	if s.ResetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(s.ResetTimeoutSecs) * time.Second
	}
	return cfg
}
