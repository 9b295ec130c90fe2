// Package frontier owns the crawl's discovered-URL state: the FIFO queue of
// candidates and the visited set. No other component deduplicates URLs.
package frontier

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sitegrain/sitegrain/internal/config"
)

// SkipReason explains why a discovered URL was not admitted.
type SkipReason string

const (
	SkipDepth     SkipReason = "depth"
	SkipDomain    SkipReason = "domain"
	SkipRobots    SkipReason = "robots"
	SkipMalformed SkipReason = "malformed"
)

// Candidate is one discovered-but-not-yet-fetched URL.
type Candidate struct {
	URL       string
	Depth     int
	ParentURL string
}

// Frontier is the single source of truth for "seen". All access is
// synchronized internally.
type Frontier struct {
	mu       sync.Mutex
	queue    []Candidate
	seen     map[string]struct{}
	skipped  map[string]SkipReason
	maxDepth int
	policy   config.DomainPolicy
	seedHost string
	allowed  []string
}

// New creates a Frontier enforcing the given depth and domain rules.
// seedURL must already be canonical; it is enqueued at depth 0.
func New(cfg *config.Config, seedURL string) (*Frontier, error) {
	host := Host(seedURL)
	if host == "" {
		return nil, fmt.Errorf("seed URL %q has no host", seedURL)
	}

	f := &Frontier{
		seen:     make(map[string]struct{}),
		skipped:  make(map[string]SkipReason),
		maxDepth: cfg.MaxDepth,
		policy:   cfg.Policy,
		seedHost: host,
		allowed:  cfg.AllowedDomains,
	}

	f.seen[seedURL] = struct{}{}
	f.queue = append(f.queue, Candidate{URL: seedURL, Depth: 0})
	return f, nil
}

// Enqueue admits rawURL (resolved against base when relative) if it has not
// been seen, the child depth is within bounds, and the host passes the
// domain policy. Rejections are recorded as skips, never errors.
// Returns true when the URL was queued.
func (f *Frontier) Enqueue(rawURL string, base *url.URL, parentDepth int, parentURL string) bool {
	canonical, err := Normalize(rawURL, base)
	if err != nil {
		log.Debug().Str("url", rawURL).Err(err).Msg("Dropping malformed URL")
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[canonical]; ok {
		return false
	}

	depth := parentDepth + 1
	if depth > f.maxDepth {
		f.markSkippedLocked(canonical, SkipDepth)
		return false
	}
	if !f.hostAllowed(Host(canonical)) {
		f.markSkippedLocked(canonical, SkipDomain)
		return false
	}

	f.seen[canonical] = struct{}{}
	f.queue = append(f.queue, Candidate{URL: canonical, Depth: depth, ParentURL: parentURL})
	return true
}

// Dequeue pops the oldest candidate, preserving breadth-first discovery
// order. The second return is false when the queue is empty; emptiness
// alone does not mean the run is quiescent while fetches are in flight.
func (f *Frontier) Dequeue() (Candidate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return Candidate{}, false
	}
	c := f.queue[0]
	f.queue = f.queue[1:]
	return c, true
}

// MarkSkipped records a policy rejection for a URL that was already
// admitted to the queue (robots disallow is only known at fetch time).
func (f *Frontier) MarkSkipped(canonical string, reason SkipReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markSkippedLocked(canonical, reason)
}

// MarkSeen records a canonical URL as visited without queueing it. Used
// for redirect targets so the final URL is not re-fetched later.
// Returns false if the URL had already been seen.
func (f *Frontier) MarkSeen(canonical string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[canonical]; ok {
		return false
	}
	f.seen[canonical] = struct{}{}
	return true
}

// Skips returns a copy of all recorded skips with their reasons.
func (f *Frontier) Skips() map[string]SkipReason {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]SkipReason, len(f.skipped))
	for k, v := range f.skipped {
		out[k] = v
	}
	return out
}

// QueueLen reports the number of pending candidates.
func (f *Frontier) QueueLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

func (f *Frontier) markSkippedLocked(canonical string, reason SkipReason) {
	f.seen[canonical] = struct{}{}
	if _, ok := f.skipped[canonical]; !ok {
		f.skipped[canonical] = reason
	}
}

func (f *Frontier) hostAllowed(host string) bool {
	if host == "" {
		return false
	}
	switch f.policy {
	case config.PolicySubdomains:
		return host == f.seedHost || strings.HasSuffix(host, "."+f.seedHost)
	case config.PolicyAllowList:
		for _, d := range f.allowed {
			d = strings.ToLower(d)
			if host == d || strings.HasSuffix(host, "."+d) {
				return true
			}
		}
		return false
	default: // same-host
		return host == f.seedHost
	}
}
