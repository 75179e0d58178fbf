package errors

import (
	"errors"
	"fmt"
)

// ErrorType categorizes pkgforge failures
type ErrorType int

const (
	ErrDescriptor ErrorType = iota
	ErrDependency
	ErrExtract
	ErrBuildTool
	ErrInstallTool
	ErrFileOp
	ErrManifest
	ErrArchive
	ErrSigning
	ErrLock
	ErrCleanup
	ErrHistory
)

func (e ErrorType) String() string {
	switch e {
	case ErrDescriptor:
		return "DescriptorError"
	case ErrDependency:
		return "DependencyError"
	case ErrExtract:
		return "ExtractError"
	case ErrBuildTool:
		return "BuildToolError"
	case ErrInstallTool:
		return "InstallToolError"
	case ErrFileOp:
		return "FileOpError"
	case ErrManifest:
		return "ManifestError"
	case ErrArchive:
		return "ArchiveError"
	case ErrSigning:
		return "SigningError"
	case ErrLock:
		return "LockError"
	case ErrCleanup:
		return "CleanupError"
	case ErrHistory:
		return "HistoryError"
	default:
		return "UnknownError"
	}
}

// BuildError wraps an error with its type and the lifecycle stage it
// occurred in. Stage may be empty for failures outside the stage sequence.
type BuildError struct {
	Type  ErrorType
	Stage string
	Err   error
}

func (e *BuildError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Stage, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Type, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// New creates a typed build error
func New(errType ErrorType, stage string, err error) *BuildError {
	return &BuildError{
		Type:  errType,
		Stage: stage,
		Err:   err,
	}
}

// Newf creates a typed build error from a format string
func Newf(errType ErrorType, stage string, format string, args ...interface{}) *BuildError {
	return New(errType, stage, fmt.Errorf(format, args...))
}

// AsBuildError unwraps err to the first BuildError in its chain
func AsBuildError(err error) (*BuildError, bool) {
	var be *BuildError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// IsType reports whether err carries the given error type
func IsType(err error, errType ErrorType) bool {
	be, ok := AsBuildError(err)
	return ok && be.Type == errType
}
