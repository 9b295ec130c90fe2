package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sitegrain/sitegrain/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter configuration file",
	Long: `Init writes the default configuration as YAML so individual settings
can be edited and passed back with --config.`,
	Args: cobra.MaximumNArgs(1),
	// No application needed; overrides the root hook so init does not
	// create the output directory.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "sitegrain.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().WriteFile(path); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
