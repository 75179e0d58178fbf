package archive

import "time"

// Member names inside a package archive. They sort before any payload entry
// and live under a directory no payload may claim.
const (
	MetadataMember = ".pkgforge/metadata.toml"
	ManifestMember = ".pkgforge/manifest"
)

// Metadata is the package identity embedded in every archive as its
// metadata member.
type Metadata struct {
	Name        string    `toml:"name"`
	Version     string    `toml:"version"`
	Release     string    `toml:"release"`
	Arch        string    `toml:"arch"`
	Summary     string    `toml:"summary"`
	Description string    `toml:"description"`
	License     string    `toml:"license"`
	Group       string    `toml:"group"`
	Vendor      string    `toml:"vendor"`
	Homepage    string    `toml:"homepage"`
	Requires    []string  `toml:"requires,omitempty"`
	BuildID     string    `toml:"build_id"`
	BuiltAt     time.Time `toml:"built_at"`
	FileCount   int       `toml:"file_count"`
}

// Identity returns the name-version-release.arch string of the packaged
// build.
func (m Metadata) Identity() string {
	return m.Name + "-" + m.Version + "-" + m.Release + "." + m.Arch
}
