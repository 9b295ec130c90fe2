package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/sitegrain/sitegrain/internal/config"
	"github.com/sitegrain/sitegrain/internal/report"
	"github.com/sitegrain/sitegrain/pkg/models"
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl <seed-url>",
	Short: "Crawl a site and analyze its page structure",
	Long: `Crawl starts from the seed URL, follows in-domain links breadth-first
up to the configured depth, then clusters the fetched pages by structural
similarity and detects recurring components. All output is written to the
output directory.`,
	Example: `  # Crawl with defaults (depth 3, 5 workers, same-host only)
  sitegrain crawl https://example.com

  # Deeper crawl including subdomains, capped at 200 pages
  sitegrain crawl https://example.com -d 4 --domain-policy=subdomains --max-pages=200

  # Looser clustering
  sitegrain crawl https://example.com --threshold=0.7`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	config.RegisterCrawlFlags(crawlCmd)
	config.RegisterAnalysisFlags(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	seedURL := args[0]
	if !strings.HasPrefix(seedURL, "http://") && !strings.HasPrefix(seedURL, "https://") {
		return fmt.Errorf("invalid seed URL: must start with http:// or https://")
	}

	a := getApp(cmd)

	var onPage func(*models.Page)
	if !quietOutput(cmd) && !jsonOutput(cmd) {
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("crawling"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionShowCount(),
		)
		onPage = func(p *models.Page) {
			_ = bar.Add(1)
			bar.Describe(fmt.Sprintf("crawling %s", p.URL))
		}
		defer func() { _ = bar.Finish() }()
	}

	result, err := a.Crawl(cmd.Context(), seedURL, onPage)
	if err != nil {
		return err
	}

	if err := report.WriteMarkdown(a.Store.Dir(), result); err != nil {
		return err
	}

	if jsonOutput(cmd) {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Summary)
	}
	report.PrintSummary(os.Stdout, result)
	fmt.Fprintf(os.Stdout, "\nOutput written to %s\n", a.Store.Dir())
	return nil
}
