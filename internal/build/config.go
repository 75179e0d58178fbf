package build

import (
	"fmt"
	"os"
	"path/filepath"

	"pkgforge/internal/archive"
	"pkgforge/internal/depend"
	"pkgforge/internal/descriptor"
)

// BuildRootEnv seeds the default staging root, the way packaging
// ecosystems hand one down. It is read once when defaults are resolved;
// after that the root travels explicitly in Config.
const BuildRootEnv = "PKGFORGE_BUILDROOT"

// Config carries every path and switch one build run needs.
type Config struct {
	SourceDir   string // where the source archive lives
	WorkDir     string // where sources are extracted
	StagingRoot string // destination root the install stage populates
	OutputDir   string // where the package archive is written
	Compression archive.Compression

	// Environment is the candidate install environment to check
	// dependency constraints against. Nil skips the check.
	Environment depend.Environment

	KeepStaging bool // leave the staging root behind
	KeepWork    bool // leave the work directory behind
}

// DefaultStagingRoot returns the staging root used when none is
// configured: $PKGFORGE_BUILDROOT if set, else a per-identity directory
// under the system temp dir.
func DefaultStagingRoot(d *descriptor.Descriptor) string {
	if root := os.Getenv(BuildRootEnv); root != "" {
		return root
	}
	return filepath.Join(os.TempDir(),
		fmt.Sprintf("%s-%s-%s-buildroot", d.Package.Name, d.Package.Version, d.Package.Release))
}

// DefaultWorkDir returns the extraction directory used when none is
// configured.
func DefaultWorkDir(d *descriptor.Descriptor) string {
	return filepath.Join(os.TempDir(),
		fmt.Sprintf("%s-%s-%s-build", d.Package.Name, d.Package.Version, d.Package.Release))
}

func (c *Config) applyDefaults(d *descriptor.Descriptor) {
	if c.StagingRoot == "" {
		c.StagingRoot = DefaultStagingRoot(d)
	}
	if c.WorkDir == "" {
		c.WorkDir = DefaultWorkDir(d)
	}
	if c.SourceDir == "" {
		c.SourceDir = "."
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.Compression == "" {
		c.Compression = archive.CompressionGzip
	}
}

// CleanStagingRoot removes a staging root recursively. A root that does
// not exist is already clean, so cleaning twice is safe.
func CleanStagingRoot(root string) error {
	if root == "" || filepath.Clean(root) == "/" {
		return fmt.Errorf("refusing to remove %q", root)
	}
	return os.RemoveAll(root)
}
