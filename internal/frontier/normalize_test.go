package frontier

import (
	"net/url"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "lowercases scheme and host",
			raw:  "HTTP://Example.COM/About",
			want: "http://example.com/About",
		},
		{
			name: "strips default http port",
			raw:  "http://example.com:80/",
			want: "http://example.com/",
		},
		{
			name: "strips default https port",
			raw:  "https://example.com:443/page",
			want: "https://example.com/page",
		},
		{
			name: "keeps explicit non-default port",
			raw:  "http://example.com:8080/page",
			want: "http://example.com:8080/page",
		},
		{
			name: "drops fragment",
			raw:  "http://example.com/page#section",
			want: "http://example.com/page",
		},
		{
			name: "empty path becomes root",
			raw:  "http://example.com",
			want: "http://example.com/",
		},
		{
			name: "cleans dot segments",
			raw:  "http://example.com/a/../b/./c",
			want: "http://example.com/b/c",
		},
		{
			name: "preserves trailing slash",
			raw:  "http://example.com/docs/",
			want: "http://example.com/docs/",
		},
		{
			name: "strips tracking parameters",
			raw:  "http://example.com/page?utm_source=x&utm_campaign=y&id=7",
			want: "http://example.com/page?id=7",
		},
		{
			name: "sorts remaining parameters",
			raw:  "http://example.com/page?b=2&a=1",
			want: "http://example.com/page?a=1&b=2",
		},
		{
			name: "drops fbclid and gclid",
			raw:  "http://example.com/?fbclid=abc&gclid=def",
			want: "http://example.com/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw, nil)
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeResolvesRelative(t *testing.T) {
	base, _ := url.Parse("http://example.com/docs/index.html")

	tests := []struct {
		raw  string
		want string
	}{
		{"page2.html", "http://example.com/docs/page2.html"},
		{"/about", "http://example.com/about"},
		{"../top", "http://example.com/top"},
		{"//cdn.example.com/x.html", "http://cdn.example.com/x.html"},
	}

	for _, tt := range tests {
		got, err := Normalize(tt.raw, base)
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeRejects(t *testing.T) {
	for _, raw := range []string{"", "mailto:a@b.c", "javascript:void(0)", "ftp://example.com/f", "/relative-without-base"} {
		if _, err := Normalize(raw, nil); err == nil {
			t.Errorf("Normalize(%q) accepted, want error", raw)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := "HTTP://Example.com:80/a/../b/?utm_source=x&z=1&a=2#frag"
	once, err := Normalize(raw, nil)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Normalize(once, nil)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("not idempotent: %q then %q", once, twice)
	}
}

func TestHost(t *testing.T) {
	if got := Host("http://sub.example.com:8080/page"); got != "sub.example.com" {
		t.Errorf("Host = %q, want sub.example.com", got)
	}
	if got := Host("::bad::"); got != "" {
		t.Errorf("Host on invalid URL = %q, want empty", got)
	}
}
