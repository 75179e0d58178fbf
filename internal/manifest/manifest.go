package manifest

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	perrors "pkgforge/internal/errors"
)

// Manifest is the ordered list of files a build installed, one absolute
// install path per entry. The staging root prefix is never part of an
// entry; entries describe the target system.
type Manifest []string

// Load reads a record file written by a build tool's install step and
// normalizes it. Tools differ on whether recorded paths include the staging
// root, so any stagingRoot prefix is stripped. Entries are cleaned, made
// absolute and deduplicated, order preserved.
func Load(path, stagingRoot string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perrors.Newf(perrors.ErrManifest, "", "reading manifest: %w", err)
	}
	defer f.Close()
	return Parse(f, stagingRoot)
}

// Parse reads manifest lines from r, normalizing like Load.
func Parse(r io.Reader, stagingRoot string) (Manifest, error) {
	var m Manifest
	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		entry := normalize(line, stagingRoot)
		if seen[entry] {
			continue
		}
		seen[entry] = true
		m = append(m, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, perrors.Newf(perrors.ErrManifest, "", "reading manifest: %w", err)
	}
	return m, nil
}

func normalize(entry, stagingRoot string) string {
	// The root prefix only counts on a path boundary; /tmp/br is not a
	// prefix of /tmp/brick/file.py.
	if root := strings.TrimSuffix(stagingRoot, "/"); root != "" {
		if rest, ok := strings.CutPrefix(entry, root); ok && (rest == "" || strings.HasPrefix(rest, "/")) {
			entry = rest
		}
	}
	if !strings.HasPrefix(entry, "/") {
		entry = "/" + entry
	}
	return filepath.Clean(entry)
}

// Append adds a path to the manifest unless it is already present.
func (m Manifest) Append(path string) Manifest {
	entry := normalize(path, "")
	for _, existing := range m {
		if existing == entry {
			return m
		}
	}
	return append(m, entry)
}

// Write stores the manifest, one path per line.
func (m Manifest) Write(path string) error {
	var b strings.Builder
	for _, entry := range m {
		b.WriteString(entry)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return perrors.Newf(perrors.ErrManifest, "", "writing manifest: %w", err)
	}
	return nil
}

// Collect walks a staging root and returns every regular file beneath it as
// a rooted install path, in walk order.
func Collect(ctx context.Context, root string) (Manifest, error) {
	var m Manifest
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		m = append(m, "/"+filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, perrors.Newf(perrors.ErrManifest, "", "scanning staging root: %w", err)
	}
	return m, nil
}

// VerifyResult reports the two ways a manifest and a staged tree can
// disagree.
type VerifyResult struct {
	Missing   []string // listed in the manifest, absent from the tree
	Untracked []string // present in the tree, absent from the manifest
}

// OK reports whether the manifest and the staged tree match exactly.
func (r VerifyResult) OK() bool {
	return len(r.Missing) == 0 && len(r.Untracked) == 0
}

// Verify checks the manifest against a staging root in both directions:
// every entry must exist as a staged file and every staged file must be an
// entry.
func (m Manifest) Verify(ctx context.Context, root string) (VerifyResult, error) {
	staged, err := Collect(ctx, root)
	if err != nil {
		return VerifyResult{}, err
	}

	stagedSet := make(map[string]bool, len(staged))
	for _, p := range staged {
		stagedSet[p] = true
	}
	listed := make(map[string]bool, len(m))
	for _, p := range m {
		listed[p] = true
	}

	var result VerifyResult
	for _, p := range m {
		if !stagedSet[p] {
			result.Missing = append(result.Missing, p)
		}
	}
	for _, p := range staged {
		if !listed[p] {
			result.Untracked = append(result.Untracked, p)
		}
	}
	sort.Strings(result.Missing)
	sort.Strings(result.Untracked)
	return result, nil
}
