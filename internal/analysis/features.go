// Package analysis turns parsed DOM trees into structural feature vectors
// and groups pages by similarity.
package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/sitegrain/sitegrain/pkg/models"
)

// blockTags are the tags that contribute to layout signatures and block
// counts.
var blockTags = map[string]struct{}{
	"header": {}, "nav": {}, "main": {}, "aside": {}, "footer": {},
	"section": {}, "article": {}, "div": {}, "form": {}, "table": {},
	"ul": {}, "ol": {}, "p": {}, "h1": {}, "h2": {}, "h3": {},
}

// Extract computes the structural feature vector for a parsed document.
// It is a pure function of the tree: same DOM in, same vector out.
func Extract(root *html.Node) *models.FeatureVector {
	fv := &models.FeatureVector{
		TagFrequency: make(map[string]int),
	}

	classTokens := make(map[string]struct{})
	idTokens := make(map[string]struct{})
	textLen := 0
	blockCount := 0
	formCount := 0

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			tag := strings.ToLower(n.Data)
			fv.TagFrequency[tag]++
			if _, ok := blockTags[tag]; ok {
				blockCount++
			}
			if tag == "form" {
				formCount++
			}
			for _, attr := range n.Attr {
				switch strings.ToLower(attr.Key) {
				case "class":
					for _, c := range strings.Fields(attr.Val) {
						if t := NormalizeToken(c); t != "" {
							classTokens[t] = struct{}{}
						}
					}
				case "id":
					if t := NormalizeToken(attr.Val); t != "" {
						idTokens[t] = struct{}{}
					}
				}
			}
		case html.TextNode:
			textLen += len(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	fv.ClassSignature = sortedKeys(classTokens)
	fv.IDSignature = sortedKeys(idTokens)
	fv.LayoutSignature = layoutSignature(root)
	fv.Metrics = models.ContentMetrics{
		TextLength: textLen,
		BlockCount: blockCount,
		FormCount:  formCount,
	}
	return fv
}

// NormalizeToken collapses numeric and hash-like suffixes so per-build
// hashed class names compare equal: btn-3f9a and btn-7c21 both become
// btn-#.
func NormalizeToken(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return ""
	}

	idx := strings.LastIndexAny(token, "-_")
	if idx <= 0 || idx == len(token)-1 {
		return token
	}
	if isHashLike(token[idx+1:]) {
		return token[:idx] + "-#"
	}
	return token
}

// isHashLike reports whether s is all digits, or hex-looking with at
// least one digit and length >= 3.
func isHashLike(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	if digits == len(s) {
		return true
	}
	return digits > 0 && len(s) >= 3
}

// layoutSignature digests the tag sequence of the top two levels of block
// elements under <body>. Pages with the same macro layout share the
// digest exactly, whatever their content.
func layoutSignature(root *html.Node) string {
	body := findElement(root, "body")
	if body == nil {
		body = root
	}

	var seq []string
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(c.Data)
		if _, ok := blockTags[tag]; !ok {
			continue
		}
		seq = append(seq, tag)
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			if gc.Type != html.ElementNode {
				continue
			}
			gtag := strings.ToLower(gc.Data)
			if _, ok := blockTags[gtag]; ok {
				seq = append(seq, tag+">"+gtag)
			}
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(seq, "/")))
	return hex.EncodeToString(sum[:])[:16]
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
