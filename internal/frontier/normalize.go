package frontier

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

// trackingParams are query parameters stripped during canonicalization so
// that campaign-tagged links collapse onto one page identity.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_content":  {},
	"utm_term":     {},
	"fbclid":       {},
	"gclid":        {},
	"ref":          {},
	"source":       {},
}

// Normalize canonicalizes a raw URL, resolving it against base when it is
// relative. Two URLs that normalize identically are the same page.
func Normalize(raw string, base *url.URL) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty URL")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse URL %q: %w", raw, err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL %q has no host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Host = stripDefaultPort(u.Host, u.Scheme)
	u.Fragment = ""

	if u.Path != "" {
		cleaned := path.Clean(u.Path)
		// path.Clean drops the trailing slash, which is significant
		// for directory-style URLs
		if strings.HasSuffix(u.Path, "/") && cleaned != "/" {
			cleaned += "/"
		}
		u.Path = cleaned
	}
	if u.Path == "" {
		u.Path = "/"
	}

	if u.RawQuery != "" {
		u.RawQuery = normalizeQuery(u.RawQuery)
	}

	return u.String(), nil
}

// Host returns the lowercased host (without port) of a canonical URL.
func Host(canonical string) string {
	u, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func stripDefaultPort(host, scheme string) string {
	if (scheme == "http" && strings.HasSuffix(host, ":80")) ||
		(scheme == "https" && strings.HasSuffix(host, ":443")) {
		return host[:strings.LastIndex(host, ":")]
	}
	return host
}

// normalizeQuery drops tracking parameters and sorts the remainder so
// parameter order never creates distinct page identities.
func normalizeQuery(query string) string {
	values, err := url.ParseQuery(query)
	if err != nil {
		return query
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		if _, tracked := trackingParams[k]; tracked {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sorted := url.Values{}
	for _, k := range keys {
		vals := values[k]
		sort.Strings(vals)
		for _, v := range vals {
			sorted.Add(k, v)
		}
	}
	return sorted.Encode()
}
