// Package component detects recurring UI fragments by hashing
// content-stripped DOM subtrees and tracking which pages they appear on.
package component

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/sitegrain/sitegrain/internal/analysis"
	"github.com/sitegrain/sitegrain/internal/config"
	"github.com/sitegrain/sitegrain/pkg/models"
)

const maxSnippetBytes = 2048

// Detector accumulates subtree signatures across pages. Scanning is
// incremental; occurrence sets only grow within a run. Not safe for
// concurrent use; callers serialize Scan.
type Detector struct {
	minSubtree       int
	variantThreshold float64
	weights          config.Weights

	entries map[string]*entry
}

type entry struct {
	sig      models.ComponentSignature
	urls     map[string]struct{}
	features *models.FeatureVector
}

func NewDetector(cfg *config.Config) *Detector {
	return &Detector{
		minSubtree:       cfg.MinSubtreeSize,
		variantThreshold: cfg.VariantThreshold,
		weights:          cfg.Weights,
		entries:          make(map[string]*entry),
	}
}

// Scan walks one page's DOM and records every candidate subtree, meaning
// any element with at least minSubtree descendant nodes. It returns the
// number of candidates found, which feeds the page's component count
// feature.
func (d *Detector) Scan(pageURL string, root *html.Node) int {
	candidates := 0
	var walk func(n *html.Node, path string, index int)
	walk = func(n *html.Node, path string, index int) {
		var nodePath string
		if n.Type == html.ElementNode {
			nodePath = fmt.Sprintf("%s/%s[%d]", path, strings.ToLower(n.Data), index)
			if descendants(n) >= d.minSubtree {
				candidates++
				d.record(pageURL, nodePath, n)
			}
		} else {
			nodePath = path
		}
		childIndex := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, nodePath, childIndex)
			if c.Type == html.ElementNode {
				childIndex++
			}
		}
	}
	walk(root, "", 0)
	return candidates
}

func (d *Detector) record(pageURL, domPath string, n *html.Node) {
	skeleton := skeletonOf(n)
	sum := sha256.Sum256([]byte(skeleton))
	hash := hex.EncodeToString(sum[:16])

	e, ok := d.entries[hash]
	if !ok {
		e = &entry{
			sig: models.ComponentSignature{
				Hash:            hash,
				TagPath:         tagPath(n),
				Classes:         normalizedClasses(n),
				ExemplarSnippet: renderSnippet(n),
			},
			urls:     make(map[string]struct{}),
			features: analysis.Extract(n),
		}
		d.entries[hash] = e
	}
	// One occurrence per distinct URL: repeats of the same subtree on a
	// single page do not grow the occurrence set.
	if _, seen := e.urls[pageURL]; seen {
		return
	}
	e.urls[pageURL] = struct{}{}
	e.sig.Occurrences = append(e.sig.Occurrences, models.Occurrence{
		URL:     pageURL,
		DOMPath: domPath,
	})
}

// Components returns every signature seen on at least two distinct URLs,
// with near-duplicate signatures linked into shared variant groups.
// Output order is deterministic: descending distinct-URL count, then hash.
func (d *Detector) Components() []models.ComponentSignature {
	kept := make([]*entry, 0, len(d.entries))
	for _, e := range d.entries {
		if len(e.urls) >= 2 {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	sort.Slice(kept, func(i, j int) bool {
		if len(kept[i].urls) != len(kept[j].urls) {
			return len(kept[i].urls) > len(kept[j].urls)
		}
		return kept[i].sig.Hash < kept[j].sig.Hash
	})

	d.assignVariants(kept)

	out := make([]models.ComponentSignature, len(kept))
	for i, e := range kept {
		sort.Slice(e.sig.Occurrences, func(a, b int) bool {
			oa, ob := e.sig.Occurrences[a], e.sig.Occurrences[b]
			if oa.URL != ob.URL {
				return oa.URL < ob.URL
			}
			return oa.DOMPath < ob.DOMPath
		})
		out[i] = e.sig
	}

	log.Debug().
		Int("signatures", len(d.entries)).
		Int("components", len(out)).
		Msg("Component detection complete")

	return out
}

// assignVariants links signatures whose subtree features score above the
// variant threshold under the page similarity metric. Groups are numbered
// from 1 in the kept order; signatures without a near-duplicate keep
// group 0.
func (d *Detector) assignVariants(kept []*entry) {
	n := len(kept)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if kept[i].sig.Hash == kept[j].sig.Hash {
				continue
			}
			if analysis.Similarity(kept[i].features, kept[j].features, d.weights) >= d.variantThreshold {
				ri, rj := find(i), find(j)
				if ri != rj {
					if rj < ri {
						ri, rj = rj, ri
					}
					parent[rj] = ri
				}
			}
		}
	}

	groupSize := make(map[int]int)
	for i := 0; i < n; i++ {
		groupSize[find(i)]++
	}
	nextGroup := 1
	groupID := make(map[int]int)
	for i := 0; i < n; i++ {
		root := find(i)
		if groupSize[root] < 2 {
			continue
		}
		id, ok := groupID[root]
		if !ok {
			id = nextGroup
			nextGroup++
			groupID[root] = id
		}
		kept[i].sig.VariantGroup = id
	}
}

// descendants counts all nodes beneath n, elements and text alike.
func descendants(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count += 1 + descendants(c)
	}
	return count
}

// skeletonOf serializes the structural shape of a subtree: tags and
// normalized class lists only. Text content and attribute values other
// than class are dropped so the hash survives content changes.
func skeletonOf(n *html.Node) string {
	var b strings.Builder
	writeSkeleton(&b, n)
	return b.String()
}

func writeSkeleton(b *strings.Builder, n *html.Node) {
	if n.Type != html.ElementNode {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeSkeleton(b, c)
		}
		return
	}
	b.WriteByte('<')
	b.WriteString(strings.ToLower(n.Data))
	if classes := normalizedClasses(n); len(classes) > 0 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(classes, ","))
	}
	b.WriteByte('>')
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeSkeleton(b, c)
	}
	b.WriteString("</")
	b.WriteString(strings.ToLower(n.Data))
	b.WriteByte('>')
}

func normalizedClasses(n *html.Node) []string {
	if n.Type != html.ElementNode {
		return nil
	}
	set := make(map[string]struct{})
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, token := range strings.Fields(attr.Val) {
			set[analysis.NormalizeToken(strings.ToLower(token))] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for token := range set {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

// tagPath is the tag chain from the document root down to n, used for
// human-readable reporting alongside the hash.
func tagPath(n *html.Node) string {
	var parts []string
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode {
			parts = append(parts, strings.ToLower(cur.Data))
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ">")
}

// renderSnippet serializes the first-seen subtree as HTML, truncated so
// exemplars stay report-sized.
func renderSnippet(n *html.Node) string {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	s := b.String()
	if len(s) > maxSnippetBytes {
		s = s[:maxSnippetBytes]
	}
	return s
}
