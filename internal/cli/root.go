package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/sitegrain/sitegrain/internal/app"
	"github.com/sitegrain/sitegrain/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitegrain",
	Short: "Crawl a website and cluster its pages by structure",
	Long: `Sitegrain crawls a website under politeness constraints, then groups
the crawled pages by structural similarity and extracts recurring UI
components, producing a normalized structural map of the site.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI with the given context. Called by main.main().
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	config.RegisterFlags(rootCmd)

	// Initialize the application lazily so -h/help does not start it
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if getApp(cmd) != nil {
			return nil
		}
		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}
		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		setApp(cmd, a)
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a := getApp(cmd); a != nil {
			_ = a.Close(cmd.Context())
		}
	}
}

// jsonOutput reports whether machine-readable output was requested.
func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// quietOutput reports whether console decoration should be suppressed.
func quietOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("quiet")
	if v {
		return true
	}
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice == 0
}
