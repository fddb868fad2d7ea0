// Package timeouts provides the per-operation deadlines used with
// context.WithTimeout around store and identity provider calls.
//
// Guidelines:
//   - Ping: health checks
//   - Short: single-document reads, membership lookups, guard checks
//   - Medium: page queries, single writes
//   - Long: writes that cascade across collections, parallel search
//   - Verify: one round trip to the identity provider
//
// Values are set once at startup with Configure (from app config).
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
	DefaultVerify = 5 * time.Second
)

var (
	mu     sync.RWMutex
	ping   = DefaultPing
	short  = DefaultShort
	medium = DefaultMedium
	long   = DefaultLong
	verify = DefaultVerify
)

func read(v *time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return *v
}

// Ping returns the timeout for health checks.
func Ping() time.Duration { return read(&ping) }

// Short returns the timeout for single-document reads and guard checks.
func Short() time.Duration { return read(&short) }

// Medium returns the timeout for page queries and single writes.
func Medium() time.Duration { return read(&medium) }

// Long returns the timeout for cascading writes and fan-out reads.
func Long() time.Duration { return read(&long) }

// Verify returns the timeout for a credential check against the identity provider.
func Verify() time.Duration { return read(&verify) }

// Config holds timeout overrides. Zero values keep the current setting.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
	Verify time.Duration
}

// Configure applies non-zero values from cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	set := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	set(&ping, cfg.Ping)
	set(&short, cfg.Short)
	set(&medium, cfg.Medium)
	set(&long, cfg.Long)
	set(&verify, cfg.Verify)
}

// Reset restores the defaults. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping, short, medium, long, verify = DefaultPing, DefaultShort, DefaultMedium, DefaultLong, DefaultVerify
}

// Current returns the active configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{Ping: ping, Short: short, Medium: medium, Long: long, Verify: verify}
}

// WithTimeout is context.WithTimeout with a cancel func that logs a warning
// when the deadline, rather than the caller, ended the operation.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete project")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
