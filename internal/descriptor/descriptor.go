package descriptor

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	perrors "pkgforge/internal/errors"
)

// Unknown is the placeholder value for metadata fields the descriptor
// author left unset.
const Unknown = "UNKNOWN"

// ArchNoarch marks a package as architecture-independent.
const ArchNoarch = "noarch"

// DefaultManifestName is the record file the install stage writes when the
// descriptor does not name one.
const DefaultManifestName = "INSTALLED_FILES"

// Descriptor is a declarative package descriptor: identity metadata, the
// source archive reference, the external build tool, dependency constraints
// and the four lifecycle stages.
type Descriptor struct {
	Package    Package     `toml:"package"`
	Source     Source      `toml:"source"`
	Tool       Tool        `toml:"tool"`
	Requires   Requires    `toml:"requires"`
	Stages     Stages      `toml:"stages"`
	ExtraFiles []ExtraFile `toml:"extra_files"`
}

// Package holds the identity and classification metadata of the package.
type Package struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Release     string `toml:"release"`
	Summary     string `toml:"summary"`
	Description string `toml:"description"`
	License     string `toml:"license"`
	Group       string `toml:"group"`
	Vendor      string `toml:"vendor"` // "Name <email>"
	Homepage    string `toml:"homepage"`
	Arch        string `toml:"arch"` // noarch, x86_64, ...
}

// Source describes where the source archive comes from. Archive and Dir are
// templates; {name}, {version}, {unmangled_version} and {release} expand to
// the package fields.
type Source struct {
	Archive          string `toml:"archive"`
	UnmangledVersion string `toml:"unmangled_version"`
	Dir              string `toml:"dir"`
}

// Tool is the external build tool invocation prefix, e.g.
// ["python", "setup.py"]. pkgforge appends the lifecycle verb and its
// arguments; everything about the tool itself stays opaque.
type Tool struct {
	Command []string `toml:"command"`
}

// Requires lists dependency constraints as "name [op version]" strings.
type Requires struct {
	Runtime []string `toml:"runtime"`
	Build   []string `toml:"build"`
}

// Stages holds the four lifecycle stages. All four tables must be present in
// the descriptor; an empty table selects the default behavior for that
// stage. Pointers distinguish an absent table from an empty one.
type Stages struct {
	Prepare *PrepareStage `toml:"prepare"`
	Build   *BuildStage   `toml:"build"`
	Install *InstallStage `toml:"install"`
	Clean   *CleanStage   `toml:"clean"`
}

// PrepareStage configures source extraction.
type PrepareStage struct {
	// SourceDir overrides the top-level directory expected after
	// extraction.
	SourceDir string `toml:"source_dir"`
}

// BuildStage configures the build verb of the tool. Skip declares the stage
// a no-op.
type BuildStage struct {
	Skip bool     `toml:"skip"`
	Args []string `toml:"args"`
}

// InstallStage configures the install verb of the tool.
type InstallStage struct {
	Skip     bool     `toml:"skip"`
	Args     []string `toml:"args"`
	Optimize int      `toml:"optimize"` // forwarded as -O<n>, default 1
	Manifest string   `toml:"manifest"` // record file name, default INSTALLED_FILES
}

// CleanStage configures staging root removal.
type CleanStage struct {
	Skip bool `toml:"skip"`
}

// ExtraFile stages files from the extracted source tree into the
// destination root after the install stage, outside the build tool's own
// manifest. Src is a glob relative to the source tree, Dest an absolute
// install directory. Versioned appends ".<version>" to each staged name.
type ExtraFile struct {
	Src       string `toml:"src"`
	Dest      string `toml:"dest"`
	Versioned bool   `toml:"versioned"`
	Recursive bool   `toml:"recursive"`
}

// Load reads, normalizes and validates a descriptor file.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.Newf(perrors.ErrDescriptor, "", "reading descriptor: %w", err)
	}

	var d Descriptor
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, perrors.Newf(perrors.ErrDescriptor, "", "parsing %s: %w", path, err)
	}

	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// SourceArchive returns the expanded source archive file name.
func (d *Descriptor) SourceArchive() string {
	return d.expand(d.Source.Archive)
}

// ExpectedSourceDir returns the top-level directory name the prepare stage
// expects the archive to extract into.
func (d *Descriptor) ExpectedSourceDir() string {
	if d.Stages.Prepare != nil && d.Stages.Prepare.SourceDir != "" {
		return d.expand(d.Stages.Prepare.SourceDir)
	}
	return d.expand(d.Source.Dir)
}

// Identity returns the name-version-release.arch string identifying a built
// package.
func (d *Descriptor) Identity() string {
	return fmt.Sprintf("%s-%s-%s.%s",
		d.Package.Name, d.Package.Version, d.Package.Release, d.Package.Arch)
}

// ManifestName returns the record file name the install stage writes.
func (d *Descriptor) ManifestName() string {
	return d.Stages.Install.Manifest
}

func (d *Descriptor) expand(s string) string {
	r := strings.NewReplacer(
		"{name}", d.Package.Name,
		"{version}", d.Package.Version,
		"{unmangled_version}", d.Source.UnmangledVersion,
		"{release}", d.Package.Release,
		"{arch}", d.Package.Arch,
	)
	return r.Replace(s)
}
