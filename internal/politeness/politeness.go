// Package politeness owns per-host robots.txt rule sets and request pacing.
//
// Pacing is a token bucket of burst 1 per host, so at most one request per
// crawl-delay interval reaches a host regardless of how many workers are
// running. This is independent of the crawl's global concurrency bound.
package politeness

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

// maxRobotsSize caps how much of a robots.txt body is read.
const maxRobotsSize = 512 * 1024

// Controller loads robots.txt per host on first access and meters
// per-host request timing.
type Controller struct {
	client       *http.Client
	userAgent    string
	defaultDelay time.Duration

	mu    sync.Mutex
	hosts map[string]*hostState
}

type hostState struct {
	group   *robotstxt.Group // nil means everything is allowed
	delay   time.Duration
	limiter *rate.Limiter
}

// New creates a Controller. The client is used only for robots.txt
// fetches; a nil client falls back to a short-timeout default.
func New(client *http.Client, userAgent string, defaultDelay time.Duration) *Controller {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Controller{
		client:       client,
		userAgent:    userAgent,
		defaultDelay: defaultDelay,
		hosts:        make(map[string]*hostState),
	}
}

// IsAllowed reports whether the URL may be fetched under the host's
// robots.txt rules. A missing or unreadable robots.txt allows everything.
func (c *Controller) IsAllowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	state := c.hostState(ctx, u)
	if state.group == nil {
		return true
	}
	return state.group.Test(u.RequestURI())
}

// CrawlDelay returns the effective delay for a host: the robots-declared
// crawl-delay when present, else the configured default.
func (c *Controller) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return c.defaultDelay
	}
	return c.hostState(ctx, u).delay
}

// Acquire blocks until the host's pacing allows another request, or the
// context is cancelled. Pacing is between request starts: the token
// bucket refills at one request per delay interval, so the gap is
// measured from the previous Acquire rather than from response
// completion, which under-spaces a host only by its response time.
func (c *Controller) Acquire(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("acquire: invalid URL %q", rawURL)
	}
	return c.hostState(ctx, u).limiter.Wait(ctx)
}

// hostState returns the cached state for a host, fetching robots.txt on
// first access.
func (c *Controller) hostState(ctx context.Context, u *url.URL) *hostState {
	host := u.Host

	c.mu.Lock()
	if state, ok := c.hosts[host]; ok {
		c.mu.Unlock()
		return state
	}
	c.mu.Unlock()

	// Fetch outside the lock; a duplicate fetch on a race is harmless.
	state := c.loadRobots(ctx, u.Scheme, host)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.hosts[host]; ok {
		return existing
	}
	c.hosts[host] = state
	return state
}

func (c *Controller) loadRobots(ctx context.Context, scheme, host string) *hostState {
	state := &hostState{delay: c.defaultDelay}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err == nil {
		req.Header.Set("User-Agent", c.userAgent)
		resp, ferr := c.client.Do(req)
		if ferr != nil {
			log.Debug().Str("host", host).Err(ferr).Msg("robots.txt unreachable, allowing all")
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
			resp.Body.Close()

			data, perr := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
			if perr != nil {
				log.Debug().Str("host", host).Err(perr).Msg("robots.txt unparseable, allowing all")
			} else {
				group := data.FindGroup(c.userAgent)
				state.group = group
				if group != nil && group.CrawlDelay > 0 {
					state.delay = group.CrawlDelay
				}
				log.Debug().
					Str("host", host).
					Int("status", resp.StatusCode).
					Dur("delay", state.delay).
					Msg("robots.txt loaded")
			}
		}
	}

	state.limiter = newHostLimiter(state.delay)
	return state
}

func newHostLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
