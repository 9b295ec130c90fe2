package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitegrain/sitegrain/internal/frontier"
	"github.com/sitegrain/sitegrain/pkg/models"
)

// parsed holds everything link- and asset-shaped pulled from one document.
type parsed struct {
	title  string
	links  []models.Link
	assets []models.AssetRef
}

// parseDocument extracts the title, hyperlinks, and asset references from
// a fetched document. Targets are resolved to absolute canonical URLs;
// unresolvable ones are dropped.
func parseDocument(doc *goquery.Document, pageURL string) parsed {
	base, err := url.Parse(pageURL)
	if err != nil {
		return parsed{}
	}

	out := parsed{
		title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	seenAssets := make(map[string]struct{})
	addAsset := func(target string, kind models.LinkKind, mime models.MimeClass) {
		canonical, err := frontier.Normalize(target, base)
		if err != nil {
			return
		}
		out.links = append(out.links, models.Link{SourceURL: pageURL, TargetURL: canonical, Kind: kind})
		if _, dup := seenAssets[canonical]; dup {
			return
		}
		seenAssets[canonical] = struct{}{}
		out.assets = append(out.assets, models.AssetRef{URL: canonical, MimeClass: mime})
	}

	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}
		canonical, err := frontier.Normalize(href, base)
		if err != nil {
			return
		}
		out.links = append(out.links, models.Link{
			SourceURL: pageURL,
			TargetURL: canonical,
			Kind:      models.KindHyperlink,
		})
	})

	doc.Find("img[src]").Each(func(i int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			addAsset(src, models.KindAsset, models.MimeImage)
		}
	})

	doc.Find("link[rel='stylesheet'][href]").Each(func(i int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok && href != "" {
			addAsset(href, models.KindStylesheet, models.MimeCSS)
		}
	})

	doc.Find("script[src]").Each(func(i int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			addAsset(src, models.KindScript, models.MimeJS)
		}
	})

	doc.Find("source[src], video[src], audio[src]").Each(func(i int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			addAsset(src, models.KindAsset, mimeClassFromURL(src))
		}
	})

	return out
}

func mimeClassFromURL(target string) models.MimeClass {
	lower := strings.ToLower(target)
	if idx := strings.IndexAny(lower, "?#"); idx >= 0 {
		lower = lower[:idx]
	}
	switch {
	case strings.HasSuffix(lower, ".css"):
		return models.MimeCSS
	case strings.HasSuffix(lower, ".js"), strings.HasSuffix(lower, ".mjs"):
		return models.MimeJS
	case strings.HasSuffix(lower, ".png"), strings.HasSuffix(lower, ".jpg"),
		strings.HasSuffix(lower, ".jpeg"), strings.HasSuffix(lower, ".gif"),
		strings.HasSuffix(lower, ".svg"), strings.HasSuffix(lower, ".webp"):
		return models.MimeImage
	default:
		return models.MimeOther
	}
}
