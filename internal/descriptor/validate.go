package descriptor

import (
	"strings"

	"pkgforge/internal/depend"
	perrors "pkgforge/internal/errors"
)

// Normalize fills in the defaults the descriptor format permits to be
// omitted. Load calls it before Validate.
func (d *Descriptor) Normalize() {
	if d.Package.Arch == "" {
		d.Package.Arch = ArchNoarch
	}
	if d.Package.Summary == "" {
		d.Package.Summary = Unknown
	}
	if d.Package.Description == "" {
		d.Package.Description = Unknown
	}
	if d.Package.License == "" {
		d.Package.License = Unknown
	}
	if d.Package.Homepage == "" {
		d.Package.Homepage = Unknown
	}
	if d.Package.Vendor == "" {
		d.Package.Vendor = Unknown
	}
	if d.Package.Group == "" {
		d.Package.Group = "Development/Libraries"
	}

	if d.Source.UnmangledVersion == "" {
		d.Source.UnmangledVersion = d.Package.Version
	}
	if d.Source.Archive == "" {
		d.Source.Archive = "{name}-{unmangled_version}.tar.gz"
	}
	if d.Source.Dir == "" {
		d.Source.Dir = "{name}-{unmangled_version}"
	}

	if d.Stages.Install != nil {
		if d.Stages.Install.Optimize == 0 {
			d.Stages.Install.Optimize = 1
		}
		if d.Stages.Install.Manifest == "" {
			d.Stages.Install.Manifest = DefaultManifestName
		}
	}
}

// Validate checks the descriptor for structural problems. The four stage
// tables must all be present; empty tables are fine.
func (d *Descriptor) Validate() error {
	if d.Package.Name == "" {
		return perrors.Newf(perrors.ErrDescriptor, "", "package.name is required")
	}
	if strings.ContainsAny(d.Package.Name, " \t/") {
		return perrors.Newf(perrors.ErrDescriptor, "", "package.name %q contains invalid characters", d.Package.Name)
	}
	if d.Package.Version == "" {
		return perrors.Newf(perrors.ErrDescriptor, "", "package.version is required")
	}
	if d.Package.Release == "" {
		return perrors.Newf(perrors.ErrDescriptor, "", "package.release is required")
	}
	// Dashes break name-version-release identities; mangle upstream
	// versions and keep the original in source.unmangled_version.
	if strings.ContainsAny(d.Package.Version, "- \t") {
		return perrors.Newf(perrors.ErrDescriptor, "", "package.version %q must not contain dashes or whitespace", d.Package.Version)
	}
	if strings.ContainsAny(d.Package.Release, "- \t") {
		return perrors.Newf(perrors.ErrDescriptor, "", "package.release %q must not contain dashes or whitespace", d.Package.Release)
	}

	for _, missing := range []struct {
		name string
		ok   bool
	}{
		{"prepare", d.Stages.Prepare != nil},
		{"build", d.Stages.Build != nil},
		{"install", d.Stages.Install != nil},
		{"clean", d.Stages.Clean != nil},
	} {
		if !missing.ok {
			return perrors.Newf(perrors.ErrDescriptor, "", "stage table [stages.%s] is required", missing.name)
		}
	}

	needsTool := !d.Stages.Build.Skip || !d.Stages.Install.Skip
	if needsTool && len(d.Tool.Command) == 0 {
		return perrors.Newf(perrors.ErrDescriptor, "", "tool.command is required unless build and install are skipped")
	}

	for _, req := range d.Requires.Runtime {
		if _, err := depend.Parse(req); err != nil {
			return perrors.Newf(perrors.ErrDescriptor, "", "requires.runtime: %w", err)
		}
	}
	for _, req := range d.Requires.Build {
		if _, err := depend.Parse(req); err != nil {
			return perrors.Newf(perrors.ErrDescriptor, "", "requires.build: %w", err)
		}
	}

	for i, ef := range d.ExtraFiles {
		if ef.Src == "" {
			return perrors.Newf(perrors.ErrDescriptor, "", "extra_files[%d]: src is required", i)
		}
		if !strings.HasPrefix(ef.Dest, "/") {
			return perrors.Newf(perrors.ErrDescriptor, "", "extra_files[%d]: dest %q must be an absolute path", i, ef.Dest)
		}
	}

	return nil
}

// RuntimeRequirements returns the parsed runtime constraints. Call after
// Validate.
func (d *Descriptor) RuntimeRequirements() []depend.Requirement {
	return mustParseAll(d.Requires.Runtime)
}

// BuildRequirements returns the parsed build constraints. Call after
// Validate.
func (d *Descriptor) BuildRequirements() []depend.Requirement {
	return mustParseAll(d.Requires.Build)
}

func mustParseAll(raw []string) []depend.Requirement {
	reqs := make([]depend.Requirement, 0, len(raw))
	for _, s := range raw {
		req, err := depend.Parse(s)
		if err != nil {
			continue // Validate already rejected these
		}
		reqs = append(reqs, req)
	}
	return reqs
}
