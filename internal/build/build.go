package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pkgforge/internal/archive"
	"pkgforge/internal/buildtool"
	"pkgforge/internal/depend"
	"pkgforge/internal/descriptor"
	perrors "pkgforge/internal/errors"
	"pkgforge/internal/fsutil"
	"pkgforge/internal/manifest"
	"pkgforge/internal/signer"
	"pkgforge/internal/source"
)

// Runner executes the build lifecycle of one descriptor: prepare, build,
// install, package, clean, strictly in that order, failing fast. A Runner
// is good for a single Run.
type Runner struct {
	desc   *descriptor.Descriptor
	tool   buildtool.Tool
	signer signer.Signer
	config Config

	sourceTree string
	manifest   manifest.Manifest
}

// NewRunner creates a runner. The signer may be nil for unsigned builds.
// Unset config fields are resolved to their defaults.
func NewRunner(d *descriptor.Descriptor, tool buildtool.Tool, sgn signer.Signer, cfg Config) *Runner {
	cfg.applyDefaults(d)
	return &Runner{
		desc:   d,
		tool:   tool,
		signer: sgn,
		config: cfg,
	}
}

// Config returns the resolved configuration of the run.
func (r *Runner) Config() Config {
	return r.config
}

// Run executes the lifecycle. The result is always returned with a record
// for every stage; the returned error mirrors result.Err. Stages after a
// failure never run, with one exception: clean runs on failure paths too,
// best effort.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		BuildID:  uuid.NewString(),
		Name:     r.desc.Package.Name,
		Version:  r.desc.Package.Version,
		Release:  r.desc.Package.Release,
		Arch:     r.desc.Package.Arch,
		Identity: r.desc.Identity(),
		Started:  time.Now(),
	}
	logrus.Infof("Starting build %s (%s)", result.Identity, result.BuildID)
	logrus.Debugf("Staging root: %s", r.config.StagingRoot)
	logrus.Debugf("Work directory: %s", r.config.WorkDir)

	// One build per staging root at a time. Without the lock the root is
	// another build's property, so nothing below (clean included) may run.
	lock, err := r.lockStagingRoot()
	if err != nil {
		result.Err = err
		for _, stage := range StageOrder {
			result.record(stage, StatusSkipped, 0, nil)
		}
		result.Finished = time.Now()
		return result, result.Err
	}
	defer lock.Unlock()

	if err := r.checkRequirements(); err != nil {
		result.Err = err
	}
	if result.Err == nil {
		if err := fsutil.EnsureDir(r.config.StagingRoot); err != nil {
			result.Err = perrors.Newf(perrors.ErrFileOp, "", "creating staging root: %w", err)
		}
	}

	stages := []struct {
		stage Stage
		skip  bool
		run   func(context.Context) error
	}{
		{StagePrepare, false, r.prepare},
		{StageBuild, r.desc.Stages.Build.Skip, r.build},
		{StageInstall, false, r.install},
		{StagePackage, false, func(ctx context.Context) error { return r.pack(ctx, result) }},
	}

	for _, s := range stages {
		if result.Err != nil {
			result.record(s.stage, StatusSkipped, 0, nil)
			continue
		}
		if s.skip {
			logrus.Infof("Stage %s skipped by descriptor", s.stage)
			result.record(s.stage, StatusSkipped, 0, nil)
			continue
		}
		logrus.Infof("Stage %s", s.stage)
		start := time.Now()
		if err := s.run(ctx); err != nil {
			result.record(s.stage, StatusFailed, time.Since(start), err)
			result.Err = err
			logrus.Errorf("Stage %s failed: %v", s.stage, err)
			continue
		}
		result.record(s.stage, StatusOK, time.Since(start), nil)
	}

	r.clean(result)

	result.Finished = time.Now()
	if result.OK() {
		logrus.Infof("Build %s finished in %s", result.Identity, result.Duration().Round(time.Millisecond))
	}
	return result, result.Err
}

func (r *Runner) lockStagingRoot() (*flock.Flock, error) {
	lockPath := r.config.StagingRoot + ".lock"
	if err := fsutil.EnsureDir(filepath.Dir(lockPath)); err != nil {
		return nil, perrors.Newf(perrors.ErrLock, "", "creating lock directory: %w", err)
	}

	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, perrors.Newf(perrors.ErrLock, "", "locking staging root: %w", err)
	}
	if !locked {
		return nil, perrors.Newf(perrors.ErrLock, "",
			"staging root %s is in use by another build", r.config.StagingRoot)
	}
	return lock, nil
}

// checkRequirements verifies build and runtime constraints against the
// configured environment before any stage runs.
func (r *Runner) checkRequirements() error {
	if r.config.Environment == nil {
		logrus.Debug("No environment supplied, skipping dependency checks")
		return nil
	}

	for _, set := range []struct {
		kind string
		reqs []depend.Requirement
	}{
		{"build", r.desc.BuildRequirements()},
		{"runtime", r.desc.RuntimeRequirements()},
	} {
		unmet := depend.Check(r.config.Environment, set.reqs)
		if len(unmet) == 0 {
			continue
		}
		parts := make([]string, len(unmet))
		for i, u := range unmet {
			parts[i] = u.String()
		}
		return perrors.Newf(perrors.ErrDependency, "",
			"unmet %s requirements: %s", set.kind, strings.Join(parts, "; "))
	}
	return nil
}

func (r *Runner) prepare(ctx context.Context) error {
	archivePath, err := source.Locate(r.config.SourceDir, r.desc.SourceArchive())
	if err != nil {
		return err
	}
	logrus.Debugf("Source archive: %s", archivePath)

	root, err := source.Extract(ctx, archivePath, r.config.WorkDir)
	if err != nil {
		return err
	}
	if expected := r.desc.ExpectedSourceDir(); root != expected {
		return perrors.Newf(perrors.ErrExtract, string(StagePrepare),
			"archive extracted to %q, expected %q", root, expected)
	}

	r.sourceTree = filepath.Join(r.config.WorkDir, root)
	return nil
}

func (r *Runner) build(ctx context.Context) error {
	return r.tool.Build(ctx, buildtool.BuildRequest{
		SourceTree: r.sourceTree,
		Args:       r.desc.Stages.Build.Args,
	})
}

func (r *Runner) install(ctx context.Context) error {
	m := manifest.Manifest{}
	stage := r.desc.Stages.Install

	if stage.Skip {
		logrus.Info("Install verb skipped by descriptor")
	} else {
		recordPath := filepath.Join(r.sourceTree, r.desc.ManifestName())
		err := r.tool.Install(ctx, buildtool.InstallRequest{
			SourceTree: r.sourceTree,
			DestRoot:   r.config.StagingRoot,
			RecordPath: recordPath,
			Optimize:   stage.Optimize,
			Args:       stage.Args,
		})
		if err != nil {
			return err
		}

		m, err = manifest.Load(recordPath, r.config.StagingRoot)
		if err != nil {
			return err
		}
		logrus.Infof("Install recorded %d files", len(m))
	}

	m, err := r.stageExtraFiles(m)
	if err != nil {
		return err
	}

	if len(m) > 0 {
		check, err := m.Verify(ctx, r.config.StagingRoot)
		if err != nil {
			return err
		}
		if !check.OK() {
			for _, p := range check.Missing {
				logrus.Debugf("Listed but not staged: %s", p)
			}
			for _, p := range check.Untracked {
				logrus.Debugf("Staged but not listed: %s", p)
			}
			return perrors.Newf(perrors.ErrManifest, string(StageInstall),
				"manifest disagrees with staging root: %d missing, %d untracked",
				len(check.Missing), len(check.Untracked))
		}
	}

	r.manifest = m
	return nil
}

func (r *Runner) pack(ctx context.Context, result *Result) error {
	meta := archive.Metadata{
		Name:        r.desc.Package.Name,
		Version:     r.desc.Package.Version,
		Release:     r.desc.Package.Release,
		Arch:        r.desc.Package.Arch,
		Summary:     r.desc.Package.Summary,
		Description: r.desc.Package.Description,
		License:     r.desc.Package.License,
		Group:       r.desc.Package.Group,
		Vendor:      r.desc.Package.Vendor,
		Homepage:    r.desc.Package.Homepage,
		Requires:    r.desc.Requires.Runtime,
		BuildID:     result.BuildID,
		BuiltAt:     result.Started.UTC(),
		FileCount:   len(r.manifest),
	}

	path, err := archive.Write(ctx, archive.Request{
		Metadata:    meta,
		Manifest:    r.manifest,
		StagingRoot: r.config.StagingRoot,
		OutputDir:   r.config.OutputDir,
		Compression: r.config.Compression,
	})
	if err != nil {
		return err
	}

	sum, err := fsutil.CalculateChecksum(path)
	if err != nil {
		return perrors.Newf(perrors.ErrArchive, string(StagePackage), "checksumming archive: %w", err)
	}
	result.ArchivePath = path
	result.SHA256 = sum.SHA256
	result.FileCount = len(r.manifest)

	if r.signer != nil {
		sigPath, err := signer.SignFile(r.signer, path)
		if err != nil {
			return perrors.New(perrors.ErrSigning, string(StagePackage), err)
		}
		result.SignaturePath = sigPath
		logrus.Infof("Signed %s", filepath.Base(sigPath))
	}
	return nil
}

// clean removes the staging root. It runs on success and failure alike and
// its own failures never override the build outcome.
func (r *Runner) clean(result *Result) {
	if r.desc.Stages.Clean.Skip || r.config.KeepStaging {
		logrus.Infof("Keeping staging root %s", r.config.StagingRoot)
		result.record(StageClean, StatusSkipped, 0, nil)
	} else {
		logrus.Infof("Stage %s", StageClean)
		start := time.Now()
		if err := CleanStagingRoot(r.config.StagingRoot); err != nil {
			cleanErr := perrors.New(perrors.ErrCleanup, string(StageClean), err)
			logrus.Warnf("Cleanup failed: %v", cleanErr)
			result.record(StageClean, StatusFailed, time.Since(start), cleanErr)
		} else {
			result.record(StageClean, StatusOK, time.Since(start), nil)
		}
	}

	if !r.config.KeepWork {
		if err := os.RemoveAll(r.config.WorkDir); err != nil {
			logrus.Warnf("Could not remove work directory %s: %v", r.config.WorkDir, err)
		}
	}
}
