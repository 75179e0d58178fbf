package cli

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pkgforge/internal/archive"
	"pkgforge/internal/build"
	"pkgforge/internal/buildtool"
	"pkgforge/internal/depend"
	"pkgforge/internal/descriptor"
	perrors "pkgforge/internal/errors"
	"pkgforge/internal/history"
	"pkgforge/internal/signer"
)

// buildOptions carries the build command's flag values.
type buildOptions struct {
	sourceDir   string
	workDir     string
	stagingRoot string
	outputDir   string
	compression string
	envPath     string

	gpgKeyPath    string
	gpgPassphrase string

	keepStaging bool
	keepWork    bool

	historyDB string
	noHistory bool
}

// NewBuildCmd creates the build command
func NewBuildCmd() *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build <descriptor>",
		Short: "Run the build lifecycle of a descriptor",
		Long: `Runs prepare, build, install, package and clean for one descriptor,
strictly in that order, and writes the package archive to the output
directory. A failed stage stops the run; clean still removes the staging
root afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), args[0], &opts)
		},
	}

	// Input/output flags
	cmd.Flags().StringVarP(&opts.sourceDir, "sourcedir", "s", ".", "Directory holding the source archive")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", ".", "Output directory for the package archive")
	cmd.Flags().StringVar(&opts.workDir, "workdir", "", "Extraction directory (defaults under the system temp dir)")
	cmd.Flags().StringVar(&opts.stagingRoot, "staging-root", "", "Staging root ($PKGFORGE_BUILDROOT or a temp default)")
	cmd.Flags().StringVarP(&opts.compression, "compression", "c", "gz", "Archive compression: gz, zst or xz")
	cmd.Flags().StringVar(&opts.envPath, "env", "", "Environment file to check dependency constraints against")

	// GPG signing flags
	cmd.Flags().StringVarP(&opts.gpgKeyPath, "gpg-key", "k", "", "Path to GPG private key")
	cmd.Flags().StringVarP(&opts.gpgPassphrase, "gpg-passphrase", "p", "", "GPG key passphrase")

	// Debugging switches
	cmd.Flags().BoolVar(&opts.keepStaging, "keep-staging", false, "Leave the staging root behind")
	cmd.Flags().BoolVar(&opts.keepWork, "keep-work", false, "Leave the work directory behind")

	// History flags
	cmd.Flags().StringVar(&opts.historyDB, "history-db", "", "History database path (defaults under the user cache dir)")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record this build in the history database")

	return cmd
}

func runBuild(ctx context.Context, descriptorPath string, opts *buildOptions) error {
	// Step 1: load the descriptor
	d, err := descriptor.Load(descriptorPath)
	if err != nil {
		return err
	}
	logrus.Infof("Loaded descriptor for %s", d.Identity())

	compression, err := archive.ParseCompression(opts.compression)
	if err != nil {
		return err
	}

	// Step 2: load the install environment if dependency checking was asked for
	var env depend.Environment
	if opts.envPath != "" {
		env, err = depend.LoadEnvironment(opts.envPath)
		if err != nil {
			return err
		}
		logrus.Debugf("Environment provides %d packages", len(env))
	}

	// Step 3: initialize the signer
	var sgn signer.Signer
	if opts.gpgKeyPath != "" {
		gpgSigner, err := signer.NewGPGSigner(opts.gpgKeyPath, opts.gpgPassphrase)
		if err != nil {
			return perrors.Newf(perrors.ErrSigning, "", "initializing GPG signer: %w", err)
		}
		sgn = gpgSigner
		logrus.Info("GPG signer initialized")
	}

	// Step 4: run the lifecycle
	tool := buildtool.NewExecTool(d.Tool.Command)
	runner := build.NewRunner(d, tool, sgn, build.Config{
		SourceDir:   opts.sourceDir,
		WorkDir:     opts.workDir,
		StagingRoot: opts.stagingRoot,
		OutputDir:   opts.outputDir,
		Compression: compression,
		Environment: env,
		KeepStaging: opts.keepStaging,
		KeepWork:    opts.keepWork,
	})
	result, runErr := runner.Run(ctx)

	// Step 5: record the outcome, success or failure
	if !opts.noHistory {
		recordHistory(ctx, opts.historyDB, result)
	}

	if runErr != nil {
		return runErr
	}

	logrus.Info("Build completed successfully!")
	logrus.Infof("Package: %s", result.ArchivePath)
	if result.SignaturePath != "" {
		logrus.Infof("Signature: %s", result.SignaturePath)
	}
	logrus.Infof("Files: %d, sha256: %s", result.FileCount, result.SHA256)
	logrus.Infof("Took %s", result.Duration().Round(time.Millisecond))
	return nil
}

// recordHistory is best effort: a broken history database must not fail a
// build that already produced its archive.
func recordHistory(ctx context.Context, dbPath string, result *build.Result) {
	var err error
	if dbPath == "" {
		dbPath, err = history.DefaultPath()
		if err != nil {
			logrus.Warnf("Not recording history: %v", err)
			return
		}
	}

	store, err := history.Open(dbPath)
	if err != nil {
		logrus.Warnf("Not recording history: %v", err)
		return
	}
	defer store.Close()

	if err := store.Record(ctx, result); err != nil {
		logrus.Warnf("Recording history failed: %v", err)
	}
}
