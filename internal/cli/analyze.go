package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sitegrain/sitegrain/internal/config"
	"github.com/sitegrain/sitegrain/internal/report"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <crawl-dir>",
	Short: "Re-run structural analysis over a stored crawl",
	Long: `Analyze reloads the pages of a previous crawl from its output
directory and re-runs clustering and component detection, typically at a
different threshold, without re-crawling. The stored analysis is replaced.`,
	Example: `  # Re-cluster a finished crawl at a looser threshold
  sitegrain analyze ./sitegrain_out --threshold=0.7`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	config.RegisterAnalysisFlags(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("crawl directory %s: %w", dir, err)
	}

	a := getApp(cmd)

	result, err := a.Analyze(cmd.Context(), dir)
	if err != nil {
		return err
	}

	if err := report.WriteMarkdown(a.Store.Dir(), result); err != nil {
		return err
	}

	if jsonOutput(cmd) {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Analysis)
	}
	report.PrintSummary(os.Stdout, result)
	return nil
}
