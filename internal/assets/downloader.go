// Package assets downloads the non-HTML resources referenced by crawled
// pages into the output tree, with streaming I/O and a bounded worker
// pool. Asset fetching is best-effort: failures are logged and counted,
// never fatal.
package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sitegrain/sitegrain/pkg/models"
)

// Result records the outcome of one asset download.
type Result struct {
	URL       string
	LocalPath string
	Size      int64
	Err       error
	Duration  time.Duration
}

// Downloader fetches assets concurrently into <baseDir>/assets/<class>/.
type Downloader struct {
	client      *http.Client
	userAgent   string
	baseDir     string
	concurrency int
}

func New(client *http.Client, userAgent, baseDir string, concurrency int) *Downloader {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Downloader{
		client:      client,
		userAgent:   userAgent,
		baseDir:     baseDir,
		concurrency: concurrency,
	}
}

// DownloadAll fetches every distinct asset referenced by the fetched
// pages and assigns each AssetRef's LocalPath on success. The same URL
// referenced from several pages is downloaded once and shared.
func (d *Downloader) DownloadAll(ctx context.Context, pages []*models.Page) []Result {
	type job struct {
		url   string
		class models.MimeClass
	}

	seen := make(map[string]models.MimeClass)
	for _, p := range pages {
		if p.Status != models.StatusFetched {
			continue
		}
		for _, a := range p.Assets {
			if _, ok := seen[a.URL]; !ok {
				seen[a.URL] = a.MimeClass
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	jobs := make(chan job, len(seen))
	results := make(chan Result, len(seen))

	var wg sync.WaitGroup
	for w := 0; w < d.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results <- d.download(ctx, j.url, j.class)
			}
		}()
	}

	for u, class := range seen {
		jobs <- job{url: u, class: class}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	paths := make(map[string]string, len(seen))
	all := make([]Result, 0, len(seen))
	for r := range results {
		all = append(all, r)
		if r.Err == nil {
			paths[r.URL] = r.LocalPath
		}
	}

	// Propagate local paths back onto every referencing page
	for _, p := range pages {
		for i := range p.Assets {
			if lp, ok := paths[p.Assets[i].URL]; ok {
				p.Assets[i].LocalPath = lp
			}
		}
	}

	log.Debug().
		Int("assets", len(seen)).
		Int("downloaded", len(paths)).
		Msg("Asset download complete")

	return all
}

// download streams one asset to disk. Partial files are removed on
// write failure.
func (d *Downloader) download(ctx context.Context, assetURL string, class models.MimeClass) Result {
	start := time.Now()
	res := Result{URL: assetURL}

	dir := filepath.Join(d.baseDir, "assets", string(class))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		res.Err = fmt.Errorf("create asset directory: %w", err)
		res.Duration = time.Since(start)
		return res
	}

	path := filepath.Join(dir, assetFilename(assetURL))
	res.LocalPath = path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		res.Err = fmt.Errorf("build request: %w", err)
		res.Duration = time.Since(start)
		return res
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		res.Err = fmt.Errorf("request failed: %w", err)
		res.Duration = time.Since(start)
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		res.Err = fmt.Errorf("bad status: %d", resp.StatusCode)
		res.Duration = time.Since(start)
		return res
	}

	out, err := os.Create(path)
	if err != nil {
		res.Err = fmt.Errorf("create file: %w", err)
		res.Duration = time.Since(start)
		return res
	}
	defer out.Close()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		os.Remove(path)
		res.Err = fmt.Errorf("write file: %w", err)
		res.Duration = time.Since(start)
		return res
	}

	res.Size = n
	res.Duration = time.Since(start)
	log.Debug().
		Str("url", assetURL).
		Str("file", path).
		Int64("bytes", n).
		Msg("Asset downloaded")
	return res
}

// assetFilename derives a collision-safe filename from the asset URL:
// the URL path's base name, scrubbed of path separators, with a query
// hash appended before the extension when a query string is present.
func assetFilename(assetURL string) string {
	name := ""
	var queryHash string
	if u, err := url.Parse(assetURL); err == nil {
		name = filepath.Base(u.Path)
		if u.RawQuery != "" {
			sum := sha256.Sum256([]byte(u.RawQuery))
			queryHash = "_" + hex.EncodeToString(sum[:4])
		}
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(strings.TrimSpace(name), ".")

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if queryHash != "" {
		name = stem + queryHash + ext
	}
	if name == "" || name == "_" {
		sum := sha256.Sum256([]byte(assetURL))
		name = "asset_" + hex.EncodeToString(sum[:4])
	}
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}
