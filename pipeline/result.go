package pipeline

import "github.com/pgopipe/pgopipe/invoke"

// Verdict is the single per-stage outcome. Degradation is expected
// control flow, so it is a variant here rather than an error.
type Verdict string

const (
	// Succeeded: every tool invocation completed and artifacts committed.
	Succeeded Verdict = "succeeded"

	// SucceededWithDegradation: an optional stage attempted its work and
	// failed gracefully; the pipeline continues without its optimization.
	SucceededWithDegradation Verdict = "succeeded-with-degradation"

	// Failed: a required invocation failed. Fatal for mandatory stages.
	Failed Verdict = "failed"

	// Skipped: the stage was not attempted at all, either by
	// configuration or because a required capability is unavailable.
	Skipped Verdict = "skipped"
)

// Skip and degradation causes recorded on StageResult.Cause.
const (
	CauseDisabled    = "disabled by configuration"
	CauseCapability  = "required capability unavailable"
	CauseToolFailure = "tool invocation failed"
	CauseCancelled   = "cancelled"
)

// StageResult aggregates a stage's tool outcomes into one verdict.
// Exactly one StageResult exists per stage per pipeline run.
type StageResult struct {
	Stage      string           `json:"stage"`
	Verdict    Verdict          `json:"verdict"`
	Cause      string           `json:"cause,omitempty"`
	Diagnostic string           `json:"diagnostic,omitempty"`
	Outcomes   []invoke.Outcome `json:"outcomes,omitempty"`
}

// Fatal reports whether this result aborts the pipeline: a Failed verdict
// on a mandatory stage.
func (r StageResult) Fatal(s Stage) bool {
	return r.Verdict == Failed && !s.Optional
}

// Degrades reports whether this result caps the run verdict at
// PartialSuccess: attempted-and-failed optional work, or a skip forced by
// a missing capability. A skip chosen by configuration is verdict-neutral.
func (r StageResult) Degrades() bool {
	switch r.Verdict {
	case SucceededWithDegradation, Failed:
		return true
	case Skipped:
		return r.Cause == CauseCapability
	default:
		return false
	}
}

// RunVerdict is the overall pipeline verdict.
type RunVerdict string

const (
	Success        RunVerdict = "success"
	PartialSuccess RunVerdict = "partial-success"
	Failure        RunVerdict = "failure"
)

// ExitCode maps the run verdict to a process exit status so calling
// automation can distinguish fully optimized, optimized-with-degradation,
// and unusable builds.
func (v RunVerdict) ExitCode() int {
	switch v {
	case Success:
		return 0
	case PartialSuccess:
		return 2
	default:
		return 1
	}
}
