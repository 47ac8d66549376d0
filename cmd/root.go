package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "reqforge",
	Short: "ReqForge requirements-analysis backend",
	Long: `ReqForge lets users create projects, paste a requirements document and
derive user stories, an entity analysis and a database design from it.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
