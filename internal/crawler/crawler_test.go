package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/sitegrain/sitegrain/internal/config"
	"github.com/sitegrain/sitegrain/internal/fetcher"
	"github.com/sitegrain/sitegrain/internal/frontier"
	"github.com/sitegrain/sitegrain/internal/politeness"
	"github.com/sitegrain/sitegrain/internal/retry"
	"github.com/sitegrain/sitegrain/pkg/models"
)

// site serves a small fixed set of pages plus an allow-all robots.txt
// unless robots is overridden.
type site struct {
	pages  map[string]string
	robots string
}

func (s site) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robots := s.robots
			if robots == "" {
				robots = "User-agent: *\nDisallow:\n"
			}
			fmt.Fprint(w, robots)
			return
		}
		body, ok := s.pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runCrawl(t *testing.T, srv *httptest.Server, mutate func(*config.Config)) *models.CrawlResult {
	t.Helper()
	cfg := config.Default()
	cfg.MaxDepth = 1
	cfg.MaxConcurrent = 2
	cfg.HostDelay = 0
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}

	seed, err := frontier.Normalize(srv.URL+"/", nil)
	if err != nil {
		t.Fatal(err)
	}
	fr, err := frontier.New(cfg, seed)
	if err != nil {
		t.Fatal(err)
	}

	pol := politeness.New(srv.Client(), cfg.UserAgent, cfg.HostDelay)
	retryCfg := retry.Config{
		MaxAttempts:    cfg.MaxRetries + 1,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     2.0,
	}
	f := fetcher.New(pol, 5*time.Second, cfg.MaxRedirects, retryCfg, cfg.UserAgent)

	engine := New(cfg, fr, f, seed)
	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return result
}

func pagesByStatus(result *models.CrawlResult, status models.PageStatus) []*models.Page {
	var out []*models.Page
	for _, p := range result.Pages {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

// Three fully interlinked pages at depth 1 must all be fetched with no
// failures or skips.
func TestCrawlSmallSite(t *testing.T) {
	nav := `<a href="/">home</a><a href="/about">about</a><a href="/contact">contact</a>`
	srv := site{pages: map[string]string{
		"/":        "<html><body>" + nav + "</body></html>",
		"/about":   "<html><body>" + nav + "</body></html>",
		"/contact": "<html><body>" + nav + "</body></html>",
	}}.server(t)

	result := runCrawl(t, srv, nil)

	if result.Summary.Fetched != 3 {
		t.Errorf("Fetched = %d, want 3", result.Summary.Fetched)
	}
	if result.Summary.Failed != 0 || result.Summary.Skipped != 0 {
		t.Errorf("Failed=%d Skipped=%d, want 0/0", result.Summary.Failed, result.Summary.Skipped)
	}
}

func TestCrawlNoDuplicateFetches(t *testing.T) {
	nav := `<a href="/a">a</a><a href="/a#frag">a again</a><a href="/a?utm_source=x">a tracked</a>`
	srv := site{pages: map[string]string{
		"/":  "<html><body>" + nav + "</body></html>",
		"/a": "<html><body><a href='/'>home</a></body></html>",
	}}.server(t)

	result := runCrawl(t, srv, nil)

	seen := make(map[string]int)
	for _, p := range pagesByStatus(result, models.StatusFetched) {
		seen[p.URL]++
	}
	for u, n := range seen {
		if n > 1 {
			t.Errorf("%s fetched %d times", u, n)
		}
	}
	if result.Summary.Fetched != 2 {
		t.Errorf("Fetched = %d, want 2", result.Summary.Fetched)
	}
}

func TestCrawlDepthInvariant(t *testing.T) {
	srv := site{pages: map[string]string{
		"/":   `<html><body><a href="/l1">one</a></body></html>`,
		"/l1": `<html><body><a href="/l2">two</a></body></html>`,
		"/l2": `<html><body><a href="/l3">three</a></body></html>`,
		"/l3": `<html><body>leaf</body></html>`,
	}}.server(t)

	result := runCrawl(t, srv, func(cfg *config.Config) {
		cfg.MaxDepth = 2
	})

	wantDepth := map[string]int{"/": 0, "/l1": 1, "/l2": 2}
	for _, p := range pagesByStatus(result, models.StatusFetched) {
		u, _ := url.Parse(p.URL)
		want, ok := wantDepth[u.Path]
		if !ok {
			t.Errorf("fetched %s beyond max depth", p.URL)
			continue
		}
		if p.Depth != want {
			t.Errorf("%s depth = %d, want %d", p.URL, p.Depth, want)
		}
		if p.Depth > 2 {
			t.Errorf("%s exceeds max depth", p.URL)
		}
	}
	// /l3 is discovered at depth 3 and must be recorded as a skip
	for _, p := range pagesByStatus(result, models.StatusSkipped) {
		u, _ := url.Parse(p.URL)
		if u.Path == "/l3" {
			return
		}
	}
	t.Error("depth-exceeding page not recorded as skipped")
}

// A robots-disallowed page must end Skipped and never be fetched.
func TestCrawlRobotsSkip(t *testing.T) {
	srv := site{
		pages: map[string]string{
			"/":             `<html><body><a href="/private/page">secret</a><a href="/open">open</a></body></html>`,
			"/open":         `<html><body>fine</body></html>`,
			"/private/page": `<html><body>must not be fetched</body></html>`,
		},
		robots: "User-agent: *\nDisallow: /private/\n",
	}.server(t)

	result := runCrawl(t, srv, nil)

	if result.Summary.Fetched != 2 {
		t.Errorf("Fetched = %d, want 2", result.Summary.Fetched)
	}
	var skipped *models.Page
	for _, p := range result.Pages {
		u, _ := url.Parse(p.URL)
		if u.Path == "/private/page" {
			skipped = p
		}
	}
	if skipped == nil {
		t.Fatal("disallowed page missing from results")
	}
	if skipped.Status != models.StatusSkipped {
		t.Errorf("disallowed page status = %q, want skipped", skipped.Status)
	}
}

func TestCrawlFailedPageDoesNotHaltRun(t *testing.T) {
	srv := site{pages: map[string]string{
		"/":     `<html><body><a href="/gone">gone</a><a href="/here">here</a></body></html>`,
		"/here": `<html><body>alive</body></html>`,
	}}.server(t)

	result := runCrawl(t, srv, nil)

	if result.Summary.Fetched != 2 {
		t.Errorf("Fetched = %d, want 2", result.Summary.Fetched)
	}
	if result.Summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Summary.Failed)
	}
	for _, p := range pagesByStatus(result, models.StatusFailed) {
		if p.StatusCode != http.StatusNotFound {
			t.Errorf("failed page status code = %d", p.StatusCode)
		}
	}
}

func TestCrawlSeedFailureIsFatal(t *testing.T) {
	srv := site{pages: map[string]string{}}.server(t) // every page 404s

	cfg := config.Default()
	cfg.HostDelay = 0
	seed, _ := frontier.Normalize(srv.URL+"/", nil)
	fr, err := frontier.New(cfg, seed)
	if err != nil {
		t.Fatal(err)
	}
	pol := politeness.New(srv.Client(), cfg.UserAgent, 0)
	f := fetcher.New(pol, 5*time.Second, cfg.MaxRedirects, retry.Config{
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     2.0,
	}, cfg.UserAgent)

	engine := New(cfg, fr, f, seed)
	_, err = engine.Run(context.Background())
	if !errors.Is(err, ErrSeedFailed) {
		t.Errorf("error = %v, want ErrSeedFailed", err)
	}
}

func TestCrawlMaxPages(t *testing.T) {
	pages := map[string]string{"/": `<html><body>`}
	for i := 0; i < 20; i++ {
		pages["/"] += fmt.Sprintf(`<a href="/p%d">p</a>`, i)
		pages[fmt.Sprintf("/p%d", i)] = "<html><body>leaf</body></html>"
	}
	pages["/"] += `</body></html>`
	srv := site{pages: pages}.server(t)

	result := runCrawl(t, srv, func(cfg *config.Config) {
		cfg.MaxPages = 5
		cfg.MaxConcurrent = 1
	})

	if result.Summary.Fetched > 5 {
		t.Errorf("Fetched = %d, want at most the page cap", result.Summary.Fetched)
	}
}

func TestCrawlRedirectAlias(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			fmt.Fprint(w, "User-agent: *\nDisallow:\n")
		case "/":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body><a href="/old">old</a></body></html>`)
		case "/old":
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
		case "/new":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body>landed</body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	result := runCrawl(t, srv, nil)

	var landed *models.Page
	for _, p := range result.Pages {
		u, _ := url.Parse(p.URL)
		if u.Path == "/new" {
			landed = p
		}
		if u.Path == "/old" && p.Status == models.StatusFetched {
			t.Error("redirect source recorded as its own fetched page")
		}
	}
	if landed == nil {
		t.Fatal("redirect target missing")
	}
	if len(landed.Aliases) != 1 {
		t.Fatalf("aliases = %v, want the original request URL", landed.Aliases)
	}
	if u, _ := url.Parse(landed.Aliases[0]); u.Path != "/old" {
		t.Errorf("alias = %q, want /old", landed.Aliases[0])
	}
}

func TestCrawlCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow:\n")
			return
		}
		<-release
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>slow</html>")
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	cfg := config.Default()
	cfg.HostDelay = 0
	seed, _ := frontier.Normalize(srv.URL+"/", nil)
	fr, _ := frontier.New(cfg, seed)
	pol := politeness.New(srv.Client(), cfg.UserAgent, 0)
	f := fetcher.New(pol, time.Second, cfg.MaxRedirects, retry.Config{
		MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 2,
	}, cfg.UserAgent)
	engine := New(cfg, fr, f, seed)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
