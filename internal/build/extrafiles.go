package build

import (
	"os"
	"path"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"pkgforge/internal/descriptor"
	perrors "pkgforge/internal/errors"
	"pkgforge/internal/fsutil"
	"pkgforge/internal/manifest"
)

// stageExtraFiles copies the descriptor's extra_files from the source tree
// into the staging root, outside the build tool's own record, and appends
// them to the manifest.
func (r *Runner) stageExtraFiles(m manifest.Manifest) (manifest.Manifest, error) {
	for i, ef := range r.desc.ExtraFiles {
		matches, err := r.findExtraMatches(ef)
		if err != nil {
			return nil, perrors.Newf(perrors.ErrFileOp, string(StageInstall), "extra_files[%d]: %w", i, err)
		}
		if len(matches) == 0 {
			logrus.Warnf("extra_files[%d]: %s matched nothing", i, ef.Src)
			continue
		}

		for _, src := range matches {
			name := filepath.Base(src)
			if ef.Versioned {
				name = name + "." + r.desc.Package.Version
			}
			installPath := path.Join(ef.Dest, name)

			dst := filepath.Join(r.config.StagingRoot, filepath.FromSlash(installPath))
			if err := fsutil.CopyFile(src, dst); err != nil {
				return nil, perrors.Newf(perrors.ErrFileOp, string(StageInstall), "staging %s: %w", installPath, err)
			}
			logrus.Debugf("Staged extra file %s", installPath)
			m = m.Append(installPath)
		}
	}
	return m, nil
}

func (r *Runner) findExtraMatches(ef descriptor.ExtraFile) ([]string, error) {
	if !ef.Recursive {
		matches, err := filepath.Glob(filepath.Join(r.sourceTree, filepath.FromSlash(ef.Src)))
		if err != nil {
			return nil, err
		}
		return onlyRegular(matches), nil
	}

	// Recursive patterns match their base name anywhere under the
	// pattern's directory part.
	dir, base := path.Split(ef.Src)
	rootDir := filepath.Join(r.sourceTree, filepath.FromSlash(dir))
	if _, err := os.Stat(rootDir); os.IsNotExist(err) {
		return nil, nil
	}

	var matches []string
	err := filepath.Walk(rootDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		ok, err := filepath.Match(base, info.Name())
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func onlyRegular(paths []string) []string {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, p)
	}
	return files
}
