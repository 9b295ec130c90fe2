// Package storage persists finalized crawl and analysis output as a JSON
// tree under the run's output directory. It consumes the end-of-run
// record stream only and is never queried mid-crawl.
package storage

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sitegrain/sitegrain/pkg/models"
)

const (
	pagesDir     = "pages"
	pagesFile    = "pages.json"
	analysisFile = "analysis.json"
	summaryFile  = "summary.json"
)

// Store writes run output under a single base directory:
//
//	<base>/pages.json      all page records
//	<base>/pages/*.html    raw HTML, one file per fetched page
//	<base>/analysis.json   clusters and component signatures
//	<base>/summary.json    run summary
type Store struct {
	baseDir string
}

func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, pagesDir), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) Dir() string { return s.baseDir }

// SavePages writes the full page set to pages.json and each fetched
// page's raw HTML alongside it.
func (s *Store) SavePages(pages []*models.Page) error {
	for _, p := range pages {
		if p.Status != models.StatusFetched || p.RawHTML == "" {
			continue
		}
		name := PageFilename(p.URL)
		path := filepath.Join(s.baseDir, pagesDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create page directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(p.RawHTML), 0o644); err != nil {
			return fmt.Errorf("write page %s: %w", p.URL, err)
		}
	}
	if err := s.writeJSON(pagesFile, pages); err != nil {
		return err
	}
	log.Debug().Int("pages", len(pages)).Str("dir", s.baseDir).Msg("Pages persisted")
	return nil
}

// SaveAnalysis writes clusters and component signatures.
func (s *Store) SaveAnalysis(result *models.AnalysisResult) error {
	return s.writeJSON(analysisFile, result)
}

// SaveSummary writes the run summary.
func (s *Store) SaveSummary(summary *models.RunSummary) error {
	return s.writeJSON(summaryFile, summary)
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(s.baseDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// LoadPages reads a previously stored page set, for re-analysis without
// re-crawling.
func LoadPages(baseDir string) ([]*models.Page, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, pagesFile))
	if err != nil {
		return nil, fmt.Errorf("read stored pages: %w", err)
	}
	var pages []*models.Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("decode stored pages: %w", err)
	}
	return pages, nil
}

var unsafeChars = regexp.MustCompile(`[^\w\-.]`)

// PageFilename maps a canonical URL to a relative path under pages/.
// The URL path becomes the file path, directory-style URLs get an
// index.html, extensionless paths gain .html, and each path segment is
// scrubbed of filesystem-unsafe characters.
func PageFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "index.html"
	}
	p := strings.TrimPrefix(u.Path, "/")
	if strings.HasSuffix(p, "/") {
		p += "index.html"
	} else if !strings.Contains(filepath.Base(p), ".") {
		p += ".html"
	}
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		seg = unsafeChars.ReplaceAllString(seg, "_")
		if len(seg) > 200 {
			ext := filepath.Ext(seg)
			seg = seg[:200-len(ext)] + ext
		}
		segments[i] = seg
	}
	return filepath.Join(segments...)
}
