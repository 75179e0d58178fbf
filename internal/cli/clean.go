package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pkgforge/internal/build"
	"pkgforge/internal/descriptor"
	perrors "pkgforge/internal/errors"
)

// NewCleanCmd creates the clean command
func NewCleanCmd() *cobra.Command {
	var stagingRoot string
	var workDir string

	cmd := &cobra.Command{
		Use:   "clean <descriptor>",
		Short: "Remove a descriptor's staging root and work directory",
		Long: `Removes the staging root and extraction directory a build of this
descriptor would use. A root that does not exist is already clean, so
running clean twice is safe.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(args[0], stagingRoot, workDir)
		},
	}

	cmd.Flags().StringVar(&stagingRoot, "staging-root", "", "Staging root to remove (defaults to the build's)")
	cmd.Flags().StringVar(&workDir, "workdir", "", "Work directory to remove (defaults to the build's)")

	return cmd
}

func runClean(descriptorPath, stagingRoot, workDir string) error {
	d, err := descriptor.Load(descriptorPath)
	if err != nil {
		return err
	}

	if stagingRoot == "" {
		stagingRoot = build.DefaultStagingRoot(d)
	}
	if workDir == "" {
		workDir = build.DefaultWorkDir(d)
	}

	if err := build.CleanStagingRoot(stagingRoot); err != nil {
		return perrors.Newf(perrors.ErrCleanup, string(build.StageClean),
			"removing staging root: %w", err)
	}
	logrus.Infof("Cleaned staging root %s", stagingRoot)

	if err := os.RemoveAll(workDir); err != nil {
		return perrors.Newf(perrors.ErrCleanup, string(build.StageClean),
			"removing work directory: %w", err)
	}
	logrus.Infof("Cleaned work directory %s", workDir)

	return nil
}
