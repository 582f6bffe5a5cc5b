// Package pipeline provides the stage model, the per-stage runner, and
// the sequencer that drives an ordered list of build stages to a final
// report.
package pipeline

import (
	"context"

	"github.com/pgopipe/pgopipe/artifact"
	"github.com/pgopipe/pgopipe/invoke"
	"github.com/pgopipe/pgopipe/probe"
)

// ArtifactRef names an artifact a stage consumes or produces.
type ArtifactRef struct {
	Kind artifact.Kind
	Name string
}

// RunContext carries the shared collaborators a stage plans and commits
// against. Stages communicate only through the artifact store and their
// returned results; they never mutate each other's state.
type RunContext struct {
	Store        *artifact.Store
	Invoker      invoke.Invoker
	Capabilities map[probe.Capability]probe.Result
	WorkDir      string
}

// Capability returns the probed result for c, Unknown when unprobed.
func (rc *RunContext) Capability(c probe.Capability) probe.Result {
	if r, ok := rc.Capabilities[c]; ok {
		return r
	}
	return probe.Unknown
}

// Stage is one named step of the pipeline. Mandatory stages abort the
// pipeline on failure; optional stages degrade it.
type Stage struct {
	Name     string
	Optional bool

	// Requires gates the stage on a probed capability. When the probe
	// reported Unavailable and the stage is optional, the stage is
	// skipped without invoking any tool.
	Requires probe.Capability

	// Disabled marks a stage switched off by configuration. A disabled
	// skip is verdict-neutral, unlike a capability skip.
	Disabled bool

	// Consumes are hard inputs: planning fails when one is missing.
	// Wants are soft inputs the stage falls back on when absent.
	Consumes []ArtifactRef
	Wants    []ArtifactRef
	Produces []ArtifactRef

	// RetryOnTimeout allows one intra-stage retry of an invocation that
	// timed out. The sequencer itself never retries a stage.
	RetryOnTimeout bool

	// Plan assembles the stage's tool invocations in execution order.
	Plan func(ctx context.Context, rc *RunContext) ([]invoke.Request, error)

	// Commit validates and registers the stage's produced artifacts after
	// every invocation succeeded. It is not called for Failed stages, so
	// partial outputs are never marked valid.
	Commit func(ctx context.Context, rc *RunContext) error
}
