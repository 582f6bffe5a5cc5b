package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pgopipe/pgopipe/artifact"
)

// Report is the final record of one pipeline run: every stage's result in
// order, the overall verdict, and the final artifact set. It is created
// once per run and immutable after the sequencer finishes.
type Report struct {
	Target      string               `json:"target"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  time.Time            `json:"finished_at"`
	Verdict     RunVerdict           `json:"verdict"`
	Aborted     bool                 `json:"aborted,omitempty"`
	AbortStage  string               `json:"abort_stage,omitempty"`
	AbortIndex  int                  `json:"abort_index,omitempty"`
	AbortReason string               `json:"abort_reason,omitempty"`
	FinalBinary string               `json:"final_binary,omitempty"`
	Stages      []StageResult        `json:"stages"`
	Artifacts   []*artifact.Artifact `json:"artifacts,omitempty"`
}

// Result returns the recorded result for the named stage, or nil.
func (r *Report) Result(stage string) *StageResult {
	for i := range r.Stages {
		if r.Stages[i].Stage == stage {
			return &r.Stages[i]
		}
	}
	return nil
}

// Write marshals the report to path after validating it against the
// report schema. A schema violation is a programming error and fails the
// write rather than producing a report downstream automation cannot trust.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}

	errs, err := ValidateReport(data)
	if err != nil {
		return fmt.Errorf("validating report: %w", err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("report does not match schema: %v", errs)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
