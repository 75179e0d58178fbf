package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pkgforge",
		Short: "Build installable package archives from declarative descriptors",
		Long: `Pkgforge reads a TOML package descriptor, drives an external build tool
through the build lifecycle (prepare, build, install, package, clean),
and produces a compressed package archive with embedded metadata and an
installed-file manifest.

The build tool does the actual compiling and installing; pkgforge stages
its output under a private root and packages exactly what was staged.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	rootCmd.AddCommand(NewBuildCmd())
	rootCmd.AddCommand(NewInspectCmd())
	rootCmd.AddCommand(NewVerifyCmd())
	rootCmd.AddCommand(NewCleanCmd())
	rootCmd.AddCommand(NewHistoryCmd())

	return rootCmd
}
