package buildtool

import "context"

// BuildRequest carries what the build verb needs.
type BuildRequest struct {
	SourceTree string   // working directory, the extracted source tree
	Args       []string // extra arguments appended after the verb
}

// InstallRequest carries what the install verb needs. DestRoot is the
// staging root the tool must install under; RecordPath is where it must
// write its installed-file record.
type InstallRequest struct {
	SourceTree string
	DestRoot   string
	RecordPath string
	Optimize   int
	Args       []string
}

// Tool is the narrow capability pkgforge requires from an external build
// tool: run its build verb, and run its install verb against a destination
// root while recording what it installed. Everything else about the tool
// stays opaque.
type Tool interface {
	Build(ctx context.Context, req BuildRequest) error
	Install(ctx context.Context, req InstallRequest) error
}
