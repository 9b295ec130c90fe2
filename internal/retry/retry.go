// Package retry classifies fetch attempt outcomes and computes exponential
// backoff. The fetcher owns the retry loop; this package only decides
// whether an attempt outcome is worth another try and how long to wait.
package retry

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strings"
	"time"
)

// Disposition is the classification of a single fetch attempt.
type Disposition int

const (
	// Proceed means the attempt succeeded.
	Proceed Disposition = iota
	// Retryable means the failure is transient and worth another attempt.
	Retryable
	// Terminal means further attempts cannot succeed.
	Terminal
)

func (d Disposition) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case Retryable:
		return "retryable"
	default:
		return "terminal"
	}
}

// Config defines backoff behavior between retryable attempts.
type Config struct {
	MaxAttempts    int           // Total attempts including the first
	InitialBackoff time.Duration // Backoff before the first retry
	MaxBackoff     time.Duration // Backoff cap
	Multiplier     float64       // Growth factor per attempt
}

// DefaultConfig returns a sensible default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// ClassifyStatus maps an HTTP status code to a disposition. 429 is
// treated as transient; all other 4xx are terminal.
func ClassifyStatus(code int) Disposition {
	switch {
	case code >= 200 && code < 400:
		return Proceed
	case code == http.StatusTooManyRequests:
		return Retryable
	case code >= 500:
		return Retryable
	default:
		return Terminal
	}
}

// ClassifyErr maps a transport-level error to a disposition. Timeouts,
// connection resets, and temporary network conditions are retryable.
func ClassifyErr(err error) Disposition {
	if err == nil {
		return Proceed
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Retryable
	}
	if errors.Is(err, context.Canceled) {
		return Terminal
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Retryable
	}

	// syscall-level resets surface as *net.OpError wrapping ECONNRESET;
	// matching the message avoids importing syscall for one constant
	msg := err.Error()
	if strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") || strings.Contains(msg, "EOF") {
		return Retryable
	}

	return Terminal
}

// Backoff computes the wait before retry number attempt (0-based):
// initial * multiplier^attempt, capped at MaxBackoff.
func Backoff(attempt int, cfg Config) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	return time.Duration(backoff)
}

// Wait sleeps for the given backoff or returns early when the context is
// cancelled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
