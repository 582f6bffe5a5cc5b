package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/pgopipe/pgopipe/artifact"
	"github.com/pgopipe/pgopipe/invoke"
	"github.com/pgopipe/pgopipe/internal/logging"
	"github.com/pgopipe/pgopipe/probe"
)

// CauseMissingInput marks a stage skipped because an upstream optional
// stage did not produce an artifact this stage cannot run without.
const CauseMissingInput = "required input artifact missing"

// Runner executes a single stage: capability gate, hard-input check,
// planned tool invocations in declared order, then commit. It maps tool
// outcomes to exactly one StageResult.
type Runner struct{}

// Run executes the stage against the run context and returns its result.
func (r *Runner) Run(ctx context.Context, rc *RunContext, s Stage) StageResult {
	log := logging.New("stage")

	if s.Disabled {
		return StageResult{Stage: s.Name, Verdict: Skipped, Cause: CauseDisabled}
	}

	if s.Requires != "" && rc.Capability(s.Requires) == probe.Unavailable {
		if !s.Optional {
			return StageResult{
				Stage:      s.Name,
				Verdict:    Failed,
				Cause:      CauseCapability,
				Diagnostic: fmt.Sprintf("mandatory stage requires unavailable capability %q", s.Requires),
			}
		}
		return StageResult{Stage: s.Name, Verdict: Skipped, Cause: CauseCapability}
	}

	if missing := r.missingInputs(rc, s); missing != "" {
		if !s.Optional {
			return StageResult{Stage: s.Name, Verdict: Failed, Cause: CauseMissingInput, Diagnostic: missing}
		}
		return StageResult{Stage: s.Name, Verdict: Skipped, Cause: CauseMissingInput, Diagnostic: missing}
	}

	requests, err := s.Plan(ctx, rc)
	if err != nil {
		return StageResult{
			Stage:      s.Name,
			Verdict:    Failed,
			Cause:      "planning failed",
			Diagnostic: err.Error(),
		}
	}

	result := StageResult{Stage: s.Name}
	for _, req := range requests {
		out := rc.Invoker.Run(ctx, req)

		if out.Status == invoke.StatusTimeout && s.RetryOnTimeout {
			log.Warn("invocation timed out, retrying once",
				"stage", s.Name, "label", req.Label)
			retry := req
			retry.Label = req.Label + "-retry"
			out = rc.Invoker.Run(ctx, retry)
		}
		result.Outcomes = append(result.Outcomes, out)

		if out.Status == invoke.StatusCancelled {
			result.Verdict = Failed
			result.Cause = CauseCancelled
			result.Diagnostic = fmt.Sprintf("%s %s cancelled", req.Command, req.Label)
			return result
		}

		if !out.OK() {
			diag := diagnostic(req, out)
			if s.Optional {
				// Attempted and failed gracefully: the pipeline continues
				// without this stage's optimization.
				result.Verdict = SucceededWithDegradation
				result.Cause = CauseToolFailure
				result.Diagnostic = diag
				log.Warn("optional stage degraded", "stage", s.Name, "diagnostic", diag)
				return result
			}
			result.Verdict = Failed
			result.Cause = CauseToolFailure
			result.Diagnostic = diag
			log.Error("mandatory stage failed", "stage", s.Name, "diagnostic", diag)
			return result
		}
	}

	if s.Commit != nil {
		if err := s.Commit(ctx, rc); err != nil {
			result.Verdict = Failed
			result.Cause = "commit failed"
			result.Diagnostic = err.Error()
			return result
		}
	}

	result.Verdict = Succeeded
	return result
}

// missingInputs reports the first hard input that is absent or
// invalidated, or "" when all are present.
func (r *Runner) missingInputs(rc *RunContext, s Stage) string {
	for _, ref := range s.Consumes {
		if _, err := rc.Store.GetValid(ref.Kind, ref.Name); err != nil {
			if errors.Is(err, artifact.ErrNotFound) {
				return fmt.Sprintf("missing input %s/%s", ref.Kind, ref.Name)
			}
			return err.Error()
		}
	}
	return ""
}

func diagnostic(req invoke.Request, out invoke.Outcome) string {
	d := fmt.Sprintf("%s (%s): %s", req.Command, req.Label, out.Err)
	if out.Log != nil {
		d += fmt.Sprintf(" [log: %s]", out.Log.Path)
	}
	return d
}
