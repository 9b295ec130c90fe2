// Package fetcher performs single-URL HTTP fetches with politeness pacing,
// redirect limits, and bounded retry with exponential backoff.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sitegrain/sitegrain/internal/politeness"
	"github.com/sitegrain/sitegrain/internal/reqctx"
	"github.com/sitegrain/sitegrain/internal/retry"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 10 * 1024 * 1024

// Response is a successfully fetched HTML page. FinalURL reflects any
// redirects and becomes the page's canonical identity.
type Response struct {
	RequestURL   string
	FinalURL     string
	StatusCode   int
	ContentType  string
	Body         string
	Attempts     int
	ResponseTime int64
}

// Fetcher fetches one URL at a time. It is safe for concurrent use by
// multiple crawl workers.
type Fetcher struct {
	client     *http.Client
	politeness *politeness.Controller
	retryCfg   retry.Config
	userAgent  string
}

// New creates a Fetcher. The politeness controller meters every attempt,
// including retries.
func New(pol *politeness.Controller, timeout time.Duration, maxRedirects int, retryCfg retry.Config, userAgent string) *Fetcher {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}

	return &Fetcher{
		client:     client,
		politeness: pol,
		retryCfg:   retryCfg,
		userAgent:  userAgent,
	}
}

// Fetch retrieves rawURL. Robots disallow returns a policy FetchError
// without touching the network. Transient failures are retried with
// exponential backoff up to the configured attempt budget.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	ctx = reqctx.WithFetch(ctx)

	if !f.politeness.IsAllowed(ctx, rawURL) {
		return nil, &FetchError{
			URL:      rawURL,
			Category: CategoryPolicy,
			Err:      ErrRobotsDisallowed,
		}
	}

	var lastErr error
	var lastStatus int

	for attempt := 0; attempt < f.retryCfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := retry.Backoff(attempt-1, f.retryCfg)
			log.Debug().
				Str("fetch_id", reqctx.FetchID(ctx)).
				Str("url", rawURL).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("Retrying after backoff")
			if err := retry.Wait(ctx, backoff); err != nil {
				return nil, &FetchError{URL: rawURL, Category: CategoryTerminal, Attempts: attempt, Err: err}
			}
		}

		if err := f.politeness.Acquire(ctx, rawURL); err != nil {
			return nil, &FetchError{URL: rawURL, Category: CategoryTerminal, Attempts: attempt, Err: err}
		}

		resp, disposition, err := f.attempt(ctx, rawURL)
		switch disposition {
		case retry.Proceed:
			resp.Attempts = attempt + 1
			log.Debug().
				Str("fetch_id", reqctx.FetchID(ctx)).
				Str("url", rawURL).
				Str("final_url", resp.FinalURL).
				Int("status", resp.StatusCode).
				Int("attempts", resp.Attempts).
				Int64("response_time_ms", resp.ResponseTime).
				Dur("elapsed", reqctx.Elapsed(ctx)).
				Msg("Fetch completed")
			return resp, nil
		case retry.Retryable:
			lastErr = err
			if resp != nil {
				lastStatus = resp.StatusCode
			}
			continue
		default:
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			return nil, &FetchError{
				URL:        rawURL,
				Category:   CategoryTerminal,
				StatusCode: status,
				Attempts:   attempt + 1,
				Err:        err,
			}
		}
	}

	log.Warn().
		Str("fetch_id", reqctx.FetchID(ctx)).
		Str("url", rawURL).
		Int("attempts", f.retryCfg.MaxAttempts).
		Dur("elapsed", reqctx.Elapsed(ctx)).
		Err(lastErr).
		Msg("Retry budget exhausted")

	return nil, &FetchError{
		URL:        rawURL,
		Category:   CategoryTransient,
		StatusCode: lastStatus,
		Attempts:   f.retryCfg.MaxAttempts,
		Err:        fmt.Errorf("retry budget exhausted: %w", lastErr),
	}
}

// attempt performs one HTTP round trip and classifies the outcome.
func (f *Fetcher) attempt(ctx context.Context, rawURL string) (*Response, retry.Disposition, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Terminal, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	httpResp, err := f.client.Do(req)
	if err != nil {
		if strings.Contains(err.Error(), ErrTooManyRedirects.Error()) {
			return nil, retry.Terminal, ErrTooManyRedirects
		}
		return nil, retry.ClassifyErr(err), fmt.Errorf("fetch URL: %w", err)
	}
	defer httpResp.Body.Close()

	if d := retry.ClassifyStatus(httpResp.StatusCode); d != retry.Proceed {
		// Drain so the connection can be reused across retries
		io.Copy(io.Discard, io.LimitReader(httpResp.Body, maxBodySize))
		resp := &Response{RequestURL: rawURL, StatusCode: httpResp.StatusCode}
		return resp, d, fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, httpResp.Status)
	}

	contentType := httpResp.Header.Get("Content-Type")
	if mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])); mediaType != "" &&
		mediaType != "text/html" && mediaType != "application/xhtml+xml" {
		io.Copy(io.Discard, io.LimitReader(httpResp.Body, maxBodySize))
		resp := &Response{RequestURL: rawURL, StatusCode: httpResp.StatusCode, ContentType: contentType}
		return resp, retry.Terminal, fmt.Errorf("%w: %s", ErrNotHTML, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, retry.ClassifyErr(err), fmt.Errorf("read body: %w", err)
	}

	return &Response{
		RequestURL:   rawURL,
		FinalURL:     httpResp.Request.URL.String(),
		StatusCode:   httpResp.StatusCode,
		ContentType:  contentType,
		Body:         string(body),
		ResponseTime: time.Since(start).Milliseconds(),
	}, retry.Proceed, nil
}
