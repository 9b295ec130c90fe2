// Package report renders the end-of-run summary for humans: a console
// digest and a markdown report with cluster and component tables.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"

	"github.com/sitegrain/sitegrain/internal/ui"
	"github.com/sitegrain/sitegrain/pkg/models"
)

const reportFile = "report.md"

// PrintSummary writes the run digest to w, colorized for terminals.
func PrintSummary(w io.Writer, result *models.CrawlResult) {
	if s := result.Summary; s != nil {
		printCrawlSummary(w, s)
	}
	if a := result.Analysis; a != nil {
		fmt.Fprintf(w, "\n%s\n", ui.Bold("Analysis"))
		fmt.Fprintf(w, "  Threshold:  %.2f\n", a.Threshold)
		fmt.Fprintf(w, "  Clusters:   %d\n", len(a.Clusters))
		fmt.Fprintf(w, "  Components: %d\n", len(a.Components))
		for _, c := range a.Clusters {
			fmt.Fprintf(w, "    #%d  %d pages  sim=%.2f  centroid=%s\n",
				c.ID, len(c.MemberURLs), c.IntraSimilarity, c.CentroidURL)
		}
	}
}

func printCrawlSummary(w io.Writer, s *models.RunSummary) {
	fmt.Fprintf(w, "\n%s\n", ui.Bold("Crawl complete"))
	fmt.Fprintf(w, "  Seed:     %s\n", s.SeedURL)
	fmt.Fprintf(w, "  Duration: %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Fetched:  %s\n", ui.Success(fmt.Sprintf("%d", s.Fetched)))
	if s.Failed > 0 {
		fmt.Fprintf(w, "  Failed:   %s (%d transient, %d parse)\n",
			ui.Error(fmt.Sprintf("%d", s.Failed)), s.Transient, s.ParseErrors)
	} else {
		fmt.Fprintf(w, "  Failed:   %d\n", s.Failed)
	}
	fmt.Fprintf(w, "  Skipped:  %d\n", s.Skipped)

	depths := make([]int, 0, len(s.ByDepth))
	for d := range s.ByDepth {
		depths = append(depths, d)
	}
	sort.Ints(depths)
	for _, d := range depths {
		fmt.Fprintf(w, "    depth %d: %d\n", d, s.ByDepth[d])
	}

	for _, warning := range s.Warnings {
		fmt.Fprintf(w, "  %s %s\n", ui.Warn("warning:"), warning)
	}
}

// WriteMarkdown writes report.md under dir: run summary, cluster table,
// and component table with exemplar snippets converted from HTML.
func WriteMarkdown(dir string, result *models.CrawlResult) error {
	var b strings.Builder

	b.WriteString("# Crawl report\n\n")
	if s := result.Summary; s != nil {
		fmt.Fprintf(&b, "Seed: `%s`\n\n", s.SeedURL)
		fmt.Fprintf(&b, "| Fetched | Failed | Skipped | Duration |\n")
		fmt.Fprintf(&b, "|---|---|---|---|\n")
		fmt.Fprintf(&b, "| %d | %d | %d | %s |\n\n", s.Fetched, s.Failed, s.Skipped, s.Duration.Round(time.Millisecond))

		for _, warning := range s.Warnings {
			fmt.Fprintf(&b, "> **Warning:** %s\n\n", warning)
		}
	}

	if a := result.Analysis; a != nil {
		b.WriteString("## Clusters\n\n")
		if len(a.Clusters) == 0 {
			b.WriteString("No clusters.\n\n")
		} else {
			b.WriteString("| ID | Pages | Intra-similarity | Centroid |\n|---|---|---|---|\n")
			for _, c := range a.Clusters {
				fmt.Fprintf(&b, "| %d | %d | %.3f | %s |\n", c.ID, len(c.MemberURLs), c.IntraSimilarity, c.CentroidURL)
			}
			b.WriteString("\n")
			for _, c := range a.Clusters {
				fmt.Fprintf(&b, "### Cluster %d\n\n", c.ID)
				for _, u := range c.MemberURLs {
					fmt.Fprintf(&b, "- %s\n", u)
				}
				b.WriteString("\n")
			}
		}

		b.WriteString("## Components\n\n")
		converter := newConverter()
		for _, comp := range a.Components {
			fmt.Fprintf(&b, "### `%s` (%s)\n\n", comp.Hash, comp.TagPath)
			if len(comp.Classes) > 0 {
				fmt.Fprintf(&b, "Classes: `%s`\n\n", strings.Join(comp.Classes, " "))
			}
			if comp.VariantGroup > 0 {
				fmt.Fprintf(&b, "Variant group: %d\n\n", comp.VariantGroup)
			}
			fmt.Fprintf(&b, "Seen on %d pages:\n\n", len(comp.Occurrences))
			for _, occ := range comp.Occurrences {
				fmt.Fprintf(&b, "- %s (`%s`)\n", occ.URL, occ.DOMPath)
			}
			b.WriteString("\n")
			if snippet := exemplarMarkdown(converter, comp.ExemplarSnippet); snippet != "" {
				fmt.Fprintf(&b, "```\n%s\n```\n\n", snippet)
			}
		}
	}

	path := filepath.Join(dir, reportFile)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func newConverter() *md.Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return converter
}

// exemplarMarkdown converts a stored HTML snippet to markdown for the
// report; conversion failures fall back to omitting the snippet.
func exemplarMarkdown(converter *md.Converter, snippet string) string {
	if snippet == "" {
		return ""
	}
	out, err := converter.ConvertString(snippet)
	if err != nil {
		return ""
	}
	out = strings.TrimSpace(out)
	if len(out) > 500 {
		out = out[:500]
	}
	return out
}
