package build

import (
	"time"
)

// Stage names one step of the build lifecycle.
type Stage string

const (
	StagePrepare Stage = "prepare"
	StageBuild   Stage = "build"
	StageInstall Stage = "install"
	StagePackage Stage = "package"
	StageClean   Stage = "clean"
)

// StageOrder is the fixed execution sequence. Prepare, build, install and
// clean come from the descriptor; package is the engine's own finalization
// step between install and clean.
var StageOrder = []Stage{StagePrepare, StageBuild, StageInstall, StagePackage, StageClean}

// Status is the outcome of one stage.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StageResult records how one stage went.
type StageResult struct {
	Stage    Stage
	Status   Status
	Duration time.Duration
	Err      error
}

// Result is the outcome of one build run. Stages always lists every stage
// of StageOrder exactly once, in order; stages after a failure are marked
// skipped.
type Result struct {
	BuildID  string
	Name     string
	Version  string
	Release  string
	Arch     string
	Identity string

	ArchivePath   string
	SignaturePath string
	SHA256        string
	FileCount     int

	Stages   []StageResult
	Started  time.Time
	Finished time.Time

	// Err is the first fatal error, nil on success. Cleanup failures are
	// recorded on the clean stage but never set here.
	Err error
}

// OK reports whether the build succeeded.
func (r *Result) OK() bool {
	return r.Err == nil
}

// Duration is the wall time of the whole run.
func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// StageStatus returns the recorded status of a stage.
func (r *Result) StageStatus(stage Stage) (Status, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Status, true
		}
	}
	return "", false
}

func (r *Result) record(stage Stage, status Status, d time.Duration, err error) {
	r.Stages = append(r.Stages, StageResult{
		Stage:    stage,
		Status:   status,
		Duration: d,
		Err:      err,
	})
}
