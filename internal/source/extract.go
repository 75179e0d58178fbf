package source

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"pkgforge/internal/archive"
	perrors "pkgforge/internal/errors"
)

// Locate returns the source archive path inside sourceDir. A missing
// archive is an extraction failure.
func Locate(sourceDir, archiveName string) (string, error) {
	p := filepath.Join(sourceDir, archiveName)
	info, err := os.Stat(p)
	if err != nil {
		return "", perrors.Newf(perrors.ErrExtract, "prepare", "source archive %s: %w", archiveName, err)
	}
	if info.IsDir() {
		return "", perrors.Newf(perrors.ErrExtract, "prepare", "source archive %s is a directory", p)
	}
	return p, nil
}

// Extract unpacks a compressed tar archive into workDir and returns the
// name of the single top-level directory it created. Entries that would
// escape workDir are rejected.
func Extract(ctx context.Context, archivePath, workDir string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", perrors.Newf(perrors.ErrExtract, "prepare", "opening source archive: %w", err)
	}
	defer f.Close()

	rc, comp, err := archive.Decompress(f, archivePath)
	if err != nil {
		return "", perrors.Newf(perrors.ErrExtract, "prepare", "%w", err)
	}
	defer rc.Close()
	logrus.Debugf("Extracting %s (%s) into %s", filepath.Base(archivePath), comp, workDir)

	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", perrors.Newf(perrors.ErrExtract, "prepare", "creating work directory: %w", err)
	}

	tr := tar.NewReader(rc)
	roots := make(map[string]bool)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", perrors.Newf(perrors.ErrExtract, "prepare", "corrupt source archive %s: %w", filepath.Base(archivePath), err)
		}

		select {
		case <-ctx.Done():
			return "", perrors.New(perrors.ErrExtract, "prepare", ctx.Err())
		default:
		}

		name := path.Clean(header.Name)
		if name == "." {
			continue
		}
		if name == ".." || strings.HasPrefix(name, "../") || strings.HasPrefix(name, "/") {
			return "", perrors.Newf(perrors.ErrExtract, "prepare", "archive entry %q escapes the work directory", header.Name)
		}
		roots[strings.SplitN(name, "/", 2)[0]] = true

		target := filepath.Join(workDir, filepath.FromSlash(name))
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
				return "", perrors.Newf(perrors.ErrExtract, "prepare", "creating %s: %w", name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", perrors.Newf(perrors.ErrExtract, "prepare", "creating %s: %w", name, err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return "", perrors.Newf(perrors.ErrExtract, "prepare", "creating %s: %w", name, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return "", perrors.Newf(perrors.ErrExtract, "prepare", "extracting %s: %w", name, err)
			}
			if err := out.Close(); err != nil {
				return "", perrors.Newf(perrors.ErrExtract, "prepare", "extracting %s: %w", name, err)
			}
		default:
			logrus.Debugf("Skipping archive entry %s (type %c)", name, header.Typeflag)
		}
	}

	if len(roots) == 0 {
		return "", perrors.Newf(perrors.ErrExtract, "prepare", "source archive %s is empty", filepath.Base(archivePath))
	}
	if len(roots) != 1 {
		names := make([]string, 0, len(roots))
		for r := range roots {
			names = append(names, r)
		}
		sort.Strings(names)
		return "", perrors.Newf(perrors.ErrExtract, "prepare",
			"source archive has no single top-level directory: %s", strings.Join(names, ", "))
	}
	for r := range roots {
		return r, nil
	}
	return "", nil // unreachable
}
