// Package reqctx tags each fetch with a short random ID so log lines from
// concurrent workers can be correlated.
package reqctx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

type key int

const fetchKey key = 0

// FetchContext identifies one fetch across retries.
type FetchContext struct {
	FetchID   string
	StartTime time.Time
}

// WithFetch attaches a fresh fetch ID to the context.
func WithFetch(ctx context.Context) context.Context {
	return context.WithValue(ctx, fetchKey, &FetchContext{
		FetchID:   newID(),
		StartTime: time.Now(),
	})
}

// FetchID returns the fetch ID from ctx, or "unknown" when absent.
func FetchID(ctx context.Context) string {
	if fc, ok := ctx.Value(fetchKey).(*FetchContext); ok {
		return fc.FetchID
	}
	return "unknown"
}

// Elapsed returns the time since the fetch started, zero when untagged.
func Elapsed(ctx context.Context) time.Duration {
	if fc, ok := ctx.Value(fetchKey).(*FetchContext); ok {
		return time.Since(fc.StartTime)
	}
	return 0
}

func newID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
