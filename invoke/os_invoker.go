package invoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pgopipe/pgopipe/artifact"
	"github.com/pgopipe/pgopipe/internal/logging"
)

// DefaultCaptureCap bounds how much tool output is kept per invocation.
const DefaultCaptureCap = 1 << 20 // 1 MiB

const truncationMarker = "\n--- output truncated ---\n"

// OSInvoker runs tools via os/exec and stores captured output as log
// artifacts in the given store.
type OSInvoker struct {
	Store      *artifact.Store
	CaptureCap int // bytes of combined output to keep; 0 = DefaultCaptureCap
}

// NewOSInvoker creates an OSInvoker writing log artifacts into store.
func NewOSInvoker(store *artifact.Store) *OSInvoker {
	return &OSInvoker{Store: store}
}

// Run executes the request and always returns an Outcome. On timeout the
// subprocess is killed through the command context; the call does not
// return until the process has been reaped.
func (inv *OSInvoker) Run(ctx context.Context, req Request) Outcome {
	log := logging.New("invoke")

	if _, err := exec.LookPath(req.Command); err != nil {
		return Outcome{
			Status: StatusNotFound,
			Err:    fmt.Sprintf("%s: not found on PATH", req.Command),
		}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, req.Command, req.Args...)
	cmd.Dir = req.Dir

	env := os.Environ()
	for k, v := range req.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	capture := newCapWriter(inv.captureCap())
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{Status: StatusExitError, ExitCode: -1, Err: fmt.Sprintf("stdout pipe: %v", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Outcome{Status: StatusExitError, ExitCode: -1, Err: fmt.Sprintf("stderr pipe: %v", err)}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Outcome{Status: StatusExitError, ExitCode: -1, Err: fmt.Sprintf("starting %s: %v", req.Command, err)}
	}

	var g errgroup.Group
	g.Go(func() error { _, err := io.Copy(capture, stdout); return err })
	g.Go(func() error { _, err := io.Copy(capture, stderr); return err })
	_ = g.Wait() // pipe errors are expected when the process is killed

	waitErr := cmd.Wait()
	duration := time.Since(start)

	out := Outcome{Duration: duration, Truncated: capture.truncated}
	out.Log = inv.storeLog(req, capture)

	switch {
	case waitErr == nil:
		out.Status = StatusOK
	case runCtx.Err() != nil && ctx.Err() != nil:
		out.Status = StatusCancelled
		out.ExitCode = -1
		out.Err = "cancelled"
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		out.Status = StatusTimeout
		out.ExitCode = -1
		out.Err = fmt.Sprintf("timed out after %s", req.Timeout)
	default:
		out.Status = StatusExitError
		out.ExitCode = exitCode(waitErr)
		out.Err = waitErr.Error()
	}

	log.Debug("tool finished",
		"stage", req.Stage, "label", req.Label, "command", req.Command,
		"status", string(out.Status), "exit", out.ExitCode, "duration", duration.String())
	return out
}

func (inv *OSInvoker) captureCap() int {
	if inv.CaptureCap > 0 {
		return inv.CaptureCap
	}
	return DefaultCaptureCap
}

// storeLog writes the captured output to a store-owned log file and
// registers it. A capture that cannot be stored degrades to a nil Log
// reference rather than failing the invocation.
func (inv *OSInvoker) storeLog(req Request, capture *capWriter) *artifact.Artifact {
	if inv.Store == nil {
		return nil
	}

	name := req.Stage + "-" + req.Label
	path := inv.Store.AllocPath(artifact.KindLog, name)

	data := capture.buf
	if capture.truncated {
		data = append(data, truncationMarker...)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logging.New("invoke").Warn("storing tool log failed", "path", path, "error", err)
		return nil
	}

	a, err := inv.Store.Put(artifact.KindLog, name, path, req.Stage)
	if err != nil {
		logging.New("invoke").Warn("registering tool log failed", "name", name, "error", err)
		return nil
	}
	return a
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// capWriter keeps at most cap bytes and records whether anything was
// dropped. It is safe for concurrent writers.
type capWriter struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func newCapWriter(limit int) *capWriter {
	return &capWriter{limit: limit}
}

func (w *capWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	room := w.limit - len(w.buf)
	if room <= 0 {
		w.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		w.buf = append(w.buf, p[:room]...)
		w.truncated = true
		return len(p), nil
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}
