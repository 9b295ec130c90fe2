package frontier

import (
	"net/url"
	"testing"

	"github.com/sitegrain/sitegrain/internal/config"
)

func newTestFrontier(t *testing.T, mutate func(*config.Config)) *Frontier {
	t.Helper()
	cfg := config.Default()
	cfg.MaxDepth = 2
	if mutate != nil {
		mutate(cfg)
	}
	f, err := New(cfg, "http://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestNewSeedsDepthZero(t *testing.T) {
	f := newTestFrontier(t, nil)

	c, ok := f.Dequeue()
	if !ok {
		t.Fatal("expected seed candidate")
	}
	if c.URL != "http://example.com/" || c.Depth != 0 {
		t.Errorf("seed candidate = %+v", c)
	}
	if _, ok := f.Dequeue(); ok {
		t.Error("queue should be empty after seed")
	}
}

func TestEnqueueDeduplicates(t *testing.T) {
	f := newTestFrontier(t, nil)
	base, _ := url.Parse("http://example.com/")

	if !f.Enqueue("http://example.com/about", base, 0, "http://example.com/") {
		t.Fatal("first enqueue rejected")
	}
	// Same page under different spellings
	for _, raw := range []string{
		"http://example.com/about",
		"http://EXAMPLE.com/about",
		"http://example.com:80/about#team",
		"/about",
	} {
		if f.Enqueue(raw, base, 0, "http://example.com/") {
			t.Errorf("duplicate %q admitted", raw)
		}
	}
	if got := f.QueueLen(); got != 2 { // seed + /about
		t.Errorf("QueueLen = %d, want 2", got)
	}
}

func TestEnqueueDepthBound(t *testing.T) {
	f := newTestFrontier(t, nil) // maxDepth 2
	base, _ := url.Parse("http://example.com/")

	if !f.Enqueue("/ok", base, 1, "http://example.com/") {
		t.Error("depth 2 should be admitted")
	}
	if f.Enqueue("/deep", base, 2, "http://example.com/ok") {
		t.Error("depth 3 should be rejected")
	}
	if reason := f.Skips()["http://example.com/deep"]; reason != SkipDepth {
		t.Errorf("skip reason = %q, want %q", reason, SkipDepth)
	}
}

func TestEnqueueChildDepth(t *testing.T) {
	f := newTestFrontier(t, nil)
	base, _ := url.Parse("http://example.com/")
	f.Enqueue("/child", base, 1, "http://example.com/parent")

	// Drain the seed first
	f.Dequeue()
	c, ok := f.Dequeue()
	if !ok {
		t.Fatal("expected child candidate")
	}
	if c.Depth != 2 {
		t.Errorf("child depth = %d, want parent+1 = 2", c.Depth)
	}
	if c.ParentURL != "http://example.com/parent" {
		t.Errorf("parent URL = %q", c.ParentURL)
	}
}

func TestDequeueFIFO(t *testing.T) {
	f := newTestFrontier(t, nil)
	base, _ := url.Parse("http://example.com/")

	for _, p := range []string{"/a", "/b", "/c"} {
		f.Enqueue(p, base, 0, "http://example.com/")
	}

	want := []string{"http://example.com/", "http://example.com/a", "http://example.com/b", "http://example.com/c"}
	for i, w := range want {
		c, ok := f.Dequeue()
		if !ok {
			t.Fatalf("queue ended early at %d", i)
		}
		if c.URL != w {
			t.Errorf("dequeue %d = %q, want %q", i, c.URL, w)
		}
	}
}

func TestDomainPolicies(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		admit  []string
		reject []string
	}{
		{
			name: "same host",
			admit: []string{
				"http://example.com/x",
			},
			reject: []string{
				"http://sub.example.com/x",
				"http://other.com/x",
			},
		},
		{
			name: "subdomains",
			mutate: func(cfg *config.Config) {
				cfg.Policy = config.PolicySubdomains
			},
			admit: []string{
				"http://example.com/x",
				"http://blog.example.com/x",
			},
			reject: []string{
				"http://notexample.com/x",
				"http://example.com.evil.com/x",
			},
		},
		{
			name: "allow list",
			mutate: func(cfg *config.Config) {
				cfg.Policy = config.PolicyAllowList
				cfg.AllowedDomains = []string{"example.com", "cdn.net"}
			},
			admit: []string{
				"http://example.com/x",
				"http://static.cdn.net/x",
			},
			reject: []string{
				"http://other.org/x",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFrontier(t, tt.mutate)
			base, _ := url.Parse("http://example.com/")
			for _, u := range tt.admit {
				if !f.Enqueue(u, base, 0, "http://example.com/") {
					t.Errorf("%s rejected, want admitted", u)
				}
			}
			for _, u := range tt.reject {
				if f.Enqueue(u, base, 0, "http://example.com/") {
					t.Errorf("%s admitted, want rejected", u)
				}
			}
			skips := f.Skips()
			for _, u := range tt.reject {
				canonical, _ := Normalize(u, base)
				if skips[canonical] != SkipDomain {
					t.Errorf("%s skip reason = %q, want %q", u, skips[canonical], SkipDomain)
				}
			}
		})
	}
}

func TestMarkSeenBlocksEnqueue(t *testing.T) {
	f := newTestFrontier(t, nil)
	base, _ := url.Parse("http://example.com/")

	if !f.MarkSeen("http://example.com/final") {
		t.Fatal("first MarkSeen should report new")
	}
	if f.MarkSeen("http://example.com/final") {
		t.Error("second MarkSeen should report already seen")
	}
	if f.Enqueue("/final", base, 0, "http://example.com/") {
		t.Error("redirect target should not be re-enqueued")
	}
}

func TestMalformedDropped(t *testing.T) {
	f := newTestFrontier(t, nil)
	if f.Enqueue("::not a url::", nil, 0, "http://example.com/") {
		t.Error("malformed URL admitted")
	}
	if got := f.QueueLen(); got != 1 {
		t.Errorf("QueueLen = %d, want just the seed", got)
	}
}
