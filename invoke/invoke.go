// Package invoke runs external tools as subprocesses and reports
// structured outcomes. Retry policy lives above this layer; every call
// spawns exactly one process and always returns an Outcome.
package invoke

import (
	"context"
	"time"

	"github.com/pgopipe/pgopipe/artifact"
)

// Status classifies the result of one subprocess invocation.
type Status string

const (
	StatusOK        Status = "ok"
	StatusExitError Status = "nonzero-exit"
	StatusTimeout   Status = "timeout"
	StatusNotFound  Status = "not-found"
	StatusCancelled Status = "cancelled"
)

// Request describes one tool invocation.
type Request struct {
	Stage   string            // owning stage, used for log artifact naming
	Label   string            // short invocation label, unique within the stage
	Command string            // executable; must resolve on PATH or be a path
	Args    []string
	Dir     string            // working directory; empty = inherit
	Env     map[string]string // merged over the parent environment
	Timeout time.Duration     // per-call deadline; zero = no deadline
}

// Outcome is the immutable result of one invocation.
type Outcome struct {
	Status    Status             `json:"status"`
	ExitCode  int                `json:"exit_code"`
	Duration  time.Duration      `json:"duration_ns"`
	Log       *artifact.Artifact `json:"log,omitempty"`       // captured output, kind log; nil if capture failed
	Truncated bool               `json:"truncated,omitempty"` // captured output exceeded the capture cap
	Err       string             `json:"error,omitempty"`     // short diagnostic for non-OK statuses
}

// OK reports whether the invocation completed with a zero exit status.
func (o Outcome) OK() bool { return o.Status == StatusOK }

// Invoker runs a single external tool. Implementations must always return
// an Outcome and never leave a partially-reaped subprocess behind.
type Invoker interface {
	Run(ctx context.Context, req Request) Outcome
}
