// Package crawler orchestrates the crawl: a bounded worker pool pulls
// candidates from the frontier, fetches them politely, parses out links and
// assets, and re-seeds the frontier until quiescence or the page cap.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/sitegrain/sitegrain/internal/config"
	"github.com/sitegrain/sitegrain/internal/fetcher"
	"github.com/sitegrain/sitegrain/internal/frontier"
	"github.com/sitegrain/sitegrain/pkg/models"
)

// ErrSeedFailed aborts the run when the seed URL itself cannot be fetched.
var ErrSeedFailed = errors.New("seed URL fetch failed")

// Engine runs one crawl. It is single-use: construct, Run, discard.
type Engine struct {
	cfg      *config.Config
	frontier *frontier.Frontier
	fetcher  *fetcher.Fetcher
	seedURL  string

	mu       sync.Mutex
	cond     *sync.Cond
	pages    map[string]*models.Page
	order    []string // completion order, for stable iteration
	inFlight int
	fetched  int
	stopped  bool
	seedErr  error

	// onPage is invoked after each page reaches a final status. Used by
	// the CLI for progress reporting; may be nil.
	onPage func(*models.Page)
}

// New creates an Engine for the given canonical seed URL.
func New(cfg *config.Config, fr *frontier.Frontier, f *fetcher.Fetcher, seedURL string) *Engine {
	e := &Engine{
		cfg:      cfg,
		frontier: fr,
		fetcher:  f,
		seedURL:  seedURL,
		pages:    make(map[string]*models.Page),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// OnPage registers a callback fired once per completed page, from worker
// goroutines. The callback must be safe for concurrent use.
func (e *Engine) OnPage(fn func(*models.Page)) {
	e.onPage = fn
}

// Run crawls until the frontier is exhausted and no fetches are in flight,
// or the page cap is hit, or ctx is cancelled. In-flight fetches always
// complete; no partially fetched page is ever exposed.
func (e *Engine) Run(ctx context.Context) (*models.CrawlResult, error) {
	start := time.Now()

	log.Info().
		Str("seed", e.seedURL).
		Int("max_depth", e.cfg.MaxDepth).
		Int("max_concurrent", e.cfg.MaxConcurrent).
		Msg("Crawl started")

	// Cancellation stops dequeuing but lets workers finish their fetch
	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.stopped = true
			e.cond.Broadcast()
			e.mu.Unlock()
		case <-stopWatch:
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.MaxConcurrent; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			e.worker(ctx, id)
		}(i)
	}
	wg.Wait()
	close(stopWatch)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.seedErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrSeedFailed, e.seedErr)
	}

	result := e.buildResultLocked(start)
	log.Info().
		Int("fetched", result.Summary.Fetched).
		Int("failed", result.Summary.Failed).
		Int("skipped", result.Summary.Skipped).
		Dur("duration", result.Summary.Duration).
		Msg("Crawl finished")

	return result, ctx.Err()
}

// worker loops dequeue → fetch → parse → enqueue until quiescence.
// Workers park on the condition variable when the queue is empty but
// peers still hold in-flight work that may discover more URLs.
func (e *Engine) worker(ctx context.Context, id int) {
	e.mu.Lock()
	for {
		if e.stopped {
			e.mu.Unlock()
			return
		}
		if e.cfg.MaxPages > 0 && e.fetched >= e.cfg.MaxPages {
			e.stopped = true
			e.cond.Broadcast()
			e.mu.Unlock()
			return
		}

		candidate, ok := e.frontier.Dequeue()
		if !ok {
			if e.inFlight == 0 {
				// Quiescent: nothing queued, nothing running
				e.stopped = true
				e.cond.Broadcast()
				e.mu.Unlock()
				return
			}
			e.cond.Wait()
			continue
		}

		e.inFlight++
		e.mu.Unlock()

		e.process(ctx, candidate)

		e.mu.Lock()
		e.inFlight--
		e.cond.Broadcast()
	}
}

// process fetches and parses one candidate, records the resulting page,
// and feeds discovered links back into the frontier.
func (e *Engine) process(ctx context.Context, c frontier.Candidate) {
	log.Debug().Str("url", c.URL).Int("depth", c.Depth).Msg("Processing page")

	resp, err := e.fetcher.Fetch(ctx, c.URL)
	if err != nil {
		e.recordFailure(c, err)
		return
	}

	canonical := c.URL
	if resp.FinalURL != "" && resp.FinalURL != c.URL {
		final, nerr := frontier.Normalize(resp.FinalURL, nil)
		if nerr == nil && final != c.URL {
			canonical = final
			e.frontier.MarkSeen(final)
		}
	}

	doc, perr := goquery.NewDocumentFromReader(strings.NewReader(resp.Body))
	if perr != nil {
		e.recordParseFailure(c, canonical, resp, perr)
		return
	}

	content := parseDocument(doc, canonical)

	page := &models.Page{
		URL:          canonical,
		Depth:        c.Depth,
		Status:       models.StatusFetched,
		StatusCode:   resp.StatusCode,
		Title:        content.title,
		RawHTML:      resp.Body,
		Links:        content.links,
		Assets:       content.assets,
		FetchedAt:    time.Now(),
		ResponseTime: resp.ResponseTime,
		Attempts:     resp.Attempts,
	}
	if canonical != c.URL {
		page.Aliases = []string{c.URL}
	}

	base, _ := url.Parse(canonical)
	enqueued := 0
	for _, link := range content.links {
		if link.Kind != models.KindHyperlink {
			continue
		}
		if e.frontier.Enqueue(link.TargetURL, base, c.Depth, canonical) {
			enqueued++
		}
	}

	e.recordPage(page)

	log.Debug().
		Str("url", canonical).
		Int("links", len(content.links)).
		Int("assets", len(content.assets)).
		Int("enqueued", enqueued).
		Msg("Page processed")
}

// recordPage stores a completed page, merging into an existing record when
// a redirect landed on an already-crawled canonical URL.
func (e *Engine) recordPage(page *models.Page) {
	e.mu.Lock()
	if existing, ok := e.pages[page.URL]; ok {
		existing.Aliases = append(existing.Aliases, page.Aliases...)
		e.mu.Unlock()
		return
	}
	e.pages[page.URL] = page
	e.order = append(e.order, page.URL)
	if page.Status == models.StatusFetched {
		e.fetched++
	}
	e.mu.Unlock()

	if e.onPage != nil {
		e.onPage(page)
	}
}

func (e *Engine) recordFailure(c frontier.Candidate, err error) {
	status := models.StatusFailed
	reason := err.Error()

	var fe *fetcher.FetchError
	if errors.As(err, &fe) && fe.Category == fetcher.CategoryPolicy {
		status = models.StatusSkipped
		e.frontier.MarkSkipped(c.URL, frontier.SkipRobots)
	}

	page := &models.Page{
		URL:        c.URL,
		Depth:      c.Depth,
		Status:     status,
		FailReason: reason,
	}
	if fe != nil {
		page.StatusCode = fe.StatusCode
		page.Attempts = fe.Attempts
	}

	if status == models.StatusFailed {
		log.Warn().Str("url", c.URL).Err(err).Msg("Page failed")
	} else {
		log.Debug().Str("url", c.URL).Msg("Page skipped by robots.txt")
	}

	e.mu.Lock()
	if c.Depth == 0 && status == models.StatusFailed && e.seedErr == nil {
		e.seedErr = err
		e.stopped = true
		e.cond.Broadcast()
	}
	e.mu.Unlock()

	e.recordPage(page)
}

func (e *Engine) recordParseFailure(c frontier.Candidate, canonical string, resp *fetcher.Response, perr error) {
	log.Warn().Str("url", canonical).Err(perr).Msg("Unparseable HTML, treating page as leaf")
	e.recordPage(&models.Page{
		URL:        canonical,
		Depth:      c.Depth,
		Status:     models.StatusFailed,
		StatusCode: resp.StatusCode,
		Attempts:   resp.Attempts,
		FailReason: fmt.Sprintf("parse: %v", perr),
	})
}

// buildResultLocked assembles pages plus frontier skips into a CrawlResult.
// Caller must hold e.mu.
func (e *Engine) buildResultLocked(start time.Time) *models.CrawlResult {
	summary := &models.RunSummary{
		SeedURL:   e.seedURL,
		ByDepth:   make(map[int]int),
		StartedAt: start,
		Duration:  time.Since(start),
	}

	pages := make([]*models.Page, 0, len(e.order))
	for _, u := range e.order {
		p := e.pages[u]
		pages = append(pages, p)
		switch p.Status {
		case models.StatusFetched:
			summary.Fetched++
			summary.ByDepth[p.Depth]++
		case models.StatusFailed:
			summary.Failed++
			if strings.HasPrefix(p.FailReason, "parse:") {
				summary.ParseErrors++
			}
			if strings.Contains(p.FailReason, "retry budget exhausted") {
				summary.Transient++
			}
		case models.StatusSkipped:
			summary.Skipped++
		}
	}

	// Depth/domain rejections recorded by the frontier also count as skips
	for skippedURL, reason := range e.frontier.Skips() {
		if _, dup := e.pages[skippedURL]; dup {
			continue
		}
		summary.Skipped++
		pages = append(pages, &models.Page{
			URL:        skippedURL,
			Status:     models.StatusSkipped,
			FailReason: string(reason),
		})
	}

	// Deterministic order for storage and reporting
	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].Depth != pages[j].Depth {
			return pages[i].Depth < pages[j].Depth
		}
		return pages[i].URL < pages[j].URL
	})

	if rate := summary.FailureRate(); rate > e.cfg.WarnFailureRate && summary.Failed > 0 {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("failure rate %.0f%% exceeds %.0f%%", rate*100, e.cfg.WarnFailureRate*100))
	}

	return &models.CrawlResult{Pages: pages, Summary: summary}
}
