package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/pgopipe/pgopipe/artifact"
	"github.com/pgopipe/pgopipe/internal/logging"
)

// State is the sequencer's position in its run. The index fields of the
// parameterized states live alongside on the Sequencer itself.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
	StateFinished  State = "finished"
)

// Abort reasons surfaced in the report.
const (
	AbortMandatoryFailed = "mandatory stage failed"
	AbortCancelled       = "cancelled"
)

// Gate decides pass/fail for the produced binary. Verification is binary
// by design: a degraded-but-correct binary passes, a broken one never does.
type Gate interface {
	Verify(ctx context.Context, rc *RunContext, binary *artifact.Artifact) error
}

// VerifyStageName is the reserved name under which the gate's result is
// recorded in the report.
const VerifyStageName = "verify"

// EventType tags sequencer progress events.
type EventType string

const (
	EventStageStart EventType = "stage-start"
	EventStageDone  EventType = "stage-done"
	EventDone       EventType = "pipeline-done"
)

// Event is a progress notification emitted while the pipeline runs.
type Event struct {
	Type    EventType
	Index   int
	Stage   string
	Result  *StageResult
	Verdict RunVerdict
}

// Sequencer drives the ordered stage list as a linear state machine,
// applying skip/degrade/abort policy, then invokes the verification gate
// and produces the final report. A stage outcome is final once returned;
// the sequencer never retries a stage.
type Sequencer struct {
	Target string
	Stages []Stage
	Gate   Gate

	// FinalBinary lists candidate binary artifacts in priority order; the
	// first valid one is the pipeline's final binary.
	FinalBinary []ArtifactRef

	// Notify, when set, receives progress events (drives the TTY view).
	Notify func(Event)

	runner Runner
	state  State
	index  int
}

// NewSequencer creates a sequencer over the given stages.
func NewSequencer(target string, stages []Stage, gate Gate, finalBinary []ArtifactRef) *Sequencer {
	return &Sequencer{
		Target:      target,
		Stages:      stages,
		Gate:        gate,
		FinalBinary: finalBinary,
		state:       StatePending,
	}
}

// StateAt returns the sequencer's current state and stage index.
func (q *Sequencer) StateAt() (State, int) { return q.state, q.index }

// Run executes the pipeline to completion or abort and returns the
// report. The report is immutable after Run returns.
func (q *Sequencer) Run(ctx context.Context, rc *RunContext) *Report {
	log := logging.New("sequencer")

	// Stages starts as an empty slice so a run aborted before any stage
	// still marshals "stages": [] and satisfies the report schema.
	report := &Report{
		Target:    q.Target,
		StartedAt: time.Now().UTC(),
		Verdict:   Success,
		Stages:    []StageResult{},
	}
	degraded := false

	for i, s := range q.Stages {
		q.index = i

		if err := ctx.Err(); err != nil {
			q.abort(report, i, AbortCancelled)
			q.finish(rc, report, log)
			return report
		}

		q.state = StateRunning
		q.emit(Event{Type: EventStageStart, Index: i, Stage: s.Name})
		log.Info("stage starting", "stage", s.Name, "index", i, "optional", s.Optional)

		result := q.runner.Run(ctx, rc, s)
		report.Stages = append(report.Stages, result)
		q.emit(Event{Type: EventStageDone, Index: i, Stage: s.Name, Result: &result})
		log.Info("stage finished", "stage", s.Name, "verdict", string(result.Verdict), "cause", result.Cause)

		if result.Cause == CauseCancelled || ctx.Err() != nil {
			q.abort(report, i, AbortCancelled)
			q.finish(rc, report, log)
			return report
		}
		if result.Fatal(s) {
			q.abort(report, i, AbortMandatoryFailed)
			q.finish(rc, report, log)
			return report
		}
		if result.Degrades() {
			degraded = true
		}

		q.state = StateCompleted
	}

	if degraded {
		report.Verdict = PartialSuccess
	}

	q.verify(ctx, rc, report)
	q.finish(rc, report, log)
	return report
}

// verify resolves the final binary and runs the gate. Gate failure forces
// Failure regardless of earlier degradation: an unverified binary is
// never reported as successful.
func (q *Sequencer) verify(ctx context.Context, rc *RunContext, report *Report) {
	result := StageResult{Stage: VerifyStageName}

	binary := q.resolveFinalBinary(rc)
	if binary == nil {
		result.Verdict = Failed
		result.Diagnostic = "no valid binary artifact to verify"
		report.Stages = append(report.Stages, result)
		report.Verdict = Failure
		q.emit(Event{Type: EventStageDone, Index: len(q.Stages), Stage: VerifyStageName, Result: &result})
		return
	}
	report.FinalBinary = binary.Path

	q.emit(Event{Type: EventStageStart, Index: len(q.Stages), Stage: VerifyStageName})
	if err := q.Gate.Verify(ctx, rc, binary); err != nil {
		result.Verdict = Failed
		result.Diagnostic = err.Error()
		report.Verdict = Failure
	} else {
		result.Verdict = Succeeded
	}
	report.Stages = append(report.Stages, result)
	q.emit(Event{Type: EventStageDone, Index: len(q.Stages), Stage: VerifyStageName, Result: &result})
}

func (q *Sequencer) resolveFinalBinary(rc *RunContext) *artifact.Artifact {
	for _, ref := range q.FinalBinary {
		if a, err := rc.Store.GetValid(ref.Kind, ref.Name); err == nil {
			return a
		}
	}
	return nil
}

func (q *Sequencer) abort(report *Report, index int, reason string) {
	q.state = StateAborted
	report.Verdict = Failure
	report.Aborted = true
	report.AbortStage = q.Stages[index].Name
	report.AbortIndex = index
	report.AbortReason = reason
}

// finish seals the report, writes the artifact manifest and report file,
// and validates the written report against its schema.
func (q *Sequencer) finish(rc *RunContext, report *Report, log *slog.Logger) {
	report.FinishedAt = time.Now().UTC()
	report.Artifacts = rc.Store.All()

	root := rc.Store.Root()
	if err := rc.Store.WriteManifest(filepath.Join(root, "manifest.json")); err != nil {
		log.Warn("writing artifact manifest failed", "error", err)
	}

	reportPath := filepath.Join(root, "report.json")
	if err := report.Write(reportPath); err != nil {
		log.Warn("writing report failed", "error", err)
	} else if _, err := rc.Store.Put(artifact.KindReport, "pipeline-report", reportPath, VerifyStageName); err != nil {
		log.Warn("registering report artifact failed", "error", err)
	}

	if !report.Aborted {
		q.state = StateFinished
	}
	q.emit(Event{Type: EventDone, Verdict: report.Verdict})
	log.Info("pipeline finished",
		"verdict", string(report.Verdict),
		"stages", len(report.Stages),
		"duration", report.FinishedAt.Sub(report.StartedAt).String())
}

func (q *Sequencer) emit(e Event) {
	if q.Notify != nil {
		q.Notify(e)
	}
}
