package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sitegrain/sitegrain/pkg/models"
)

func TestPageFilename(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://example.com/", "index.html"},
		{"http://example.com", "index.html"},
		{"http://example.com/about", "about.html"},
		{"http://example.com/docs/intro", filepath.Join("docs", "intro.html")},
		{"http://example.com/docs/", filepath.Join("docs", "index.html")},
		{"http://example.com/page.html", "page.html"},
		{"http://example.com/a b/c?d", filepath.Join("a_b", "c.html")},
	}
	for _, tt := range tests {
		if got := PageFilename(tt.url); got != tt.want {
			t.Errorf("PageFilename(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestPageFilenameLongSegment(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := PageFilename("http://example.com/" + long)
	if len(filepath.Base(got)) > 200 {
		t.Errorf("segment length = %d, want capped at 200", len(filepath.Base(got)))
	}
}

func TestSaveAndLoadPages(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	pages := []*models.Page{
		{
			URL:     "http://example.com/",
			Depth:   0,
			Status:  models.StatusFetched,
			RawHTML: "<html><body>home</body></html>",
			Features: &models.FeatureVector{
				TagFrequency:    map[string]int{"body": 1, "html": 1},
				LayoutSignature: "abc",
			},
			ClusterID: 1,
		},
		{
			URL:        "http://example.com/broken",
			Depth:      1,
			Status:     models.StatusFailed,
			FailReason: "HTTP 500",
		},
	}

	if err := s.SavePages(pages); err != nil {
		t.Fatal(err)
	}

	// Fetched page HTML lands under pages/
	htmlPath := filepath.Join(dir, "pages", "index.html")
	data, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatalf("raw HTML not written: %v", err)
	}
	if string(data) != pages[0].RawHTML {
		t.Error("stored HTML differs")
	}
	// Failed page gets no HTML file
	if entries, _ := os.ReadDir(filepath.Join(dir, "pages")); len(entries) != 1 {
		t.Errorf("pages dir entries = %d, want 1", len(entries))
	}

	loaded, err := LoadPages(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d pages", len(loaded))
	}
	if loaded[0].URL != pages[0].URL || loaded[0].ClusterID != 1 {
		t.Errorf("first page lost fields: %+v", loaded[0])
	}
	if loaded[0].Features == nil || loaded[0].Features.LayoutSignature != "abc" {
		t.Error("features not round-tripped")
	}
	if loaded[1].Status != models.StatusFailed || loaded[1].FailReason != "HTTP 500" {
		t.Errorf("failed page lost fields: %+v", loaded[1])
	}
}

func TestSaveAnalysisAndSummary(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.SaveAnalysis(&models.AnalysisResult{
		Threshold: 0.8,
		Clusters:  []models.Cluster{{ID: 1, MemberURLs: []string{"http://x/"}}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSummary(&models.RunSummary{SeedURL: "http://x/", Fetched: 1}); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"analysis.json", "summary.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func TestLoadPagesMissingDir(t *testing.T) {
	if _, err := LoadPages(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing crawl directory")
	}
}
