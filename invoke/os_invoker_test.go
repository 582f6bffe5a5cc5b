package invoke

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pgopipe/pgopipe/artifact"
)

func newTestInvoker(t *testing.T) (*OSInvoker, *artifact.Store) {
	t.Helper()
	store, err := artifact.New(t.TempDir())
	if err != nil {
		t.Fatalf("artifact.New: %v", err)
	}
	return NewOSInvoker(store), store
}

func TestRunSuccess(t *testing.T) {
	inv, _ := newTestInvoker(t)

	out := inv.Run(context.Background(), Request{
		Stage:   "test",
		Label:   "echo",
		Command: "sh",
		Args:    []string{"-c", "echo hello"},
	})
	if !out.OK() {
		t.Fatalf("status = %s, want ok (err: %s)", out.Status, out.Err)
	}
	if out.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", out.ExitCode)
	}
	if out.Log == nil {
		t.Fatal("log artifact not captured")
	}
	data, err := os.ReadFile(out.Log.Path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log = %q, want it to contain %q", data, "hello")
	}
}

func TestRunExitError(t *testing.T) {
	inv, _ := newTestInvoker(t)

	out := inv.Run(context.Background(), Request{
		Stage:   "test",
		Label:   "fail",
		Command: "sh",
		Args:    []string{"-c", "echo oops >&2; exit 3"},
	})
	if out.Status != StatusExitError {
		t.Fatalf("status = %s, want %s", out.Status, StatusExitError)
	}
	if out.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", out.ExitCode)
	}
	if out.Log == nil {
		t.Fatal("stderr should be captured even on failure")
	}
	data, _ := os.ReadFile(out.Log.Path)
	if !strings.Contains(string(data), "oops") {
		t.Errorf("log = %q, want it to contain %q", data, "oops")
	}
}

func TestRunNotFound(t *testing.T) {
	inv, _ := newTestInvoker(t)

	out := inv.Run(context.Background(), Request{
		Stage:   "test",
		Label:   "missing",
		Command: "definitely-not-a-real-tool-4471",
	})
	if out.Status != StatusNotFound {
		t.Fatalf("status = %s, want %s", out.Status, StatusNotFound)
	}
}

func TestRunTimeout(t *testing.T) {
	inv, _ := newTestInvoker(t)

	start := time.Now()
	out := inv.Run(context.Background(), Request{
		Stage:   "test",
		Label:   "sleep",
		Command: "sh",
		Args:    []string{"-c", "sleep 10"},
		Timeout: 100 * time.Millisecond,
	})
	if out.Status != StatusTimeout {
		t.Fatalf("status = %s, want %s", out.Status, StatusTimeout)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("run took %s, process not killed on timeout", elapsed)
	}
}

func TestRunCancelled(t *testing.T) {
	inv, _ := newTestInvoker(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	out := inv.Run(ctx, Request{
		Stage:   "test",
		Label:   "sleep",
		Command: "sh",
		Args:    []string{"-c", "sleep 10"},
	})
	if out.Status != StatusCancelled {
		t.Fatalf("status = %s, want %s", out.Status, StatusCancelled)
	}
}

func TestRunCaptureCap(t *testing.T) {
	inv, _ := newTestInvoker(t)
	inv.CaptureCap = 64

	out := inv.Run(context.Background(), Request{
		Stage:   "test",
		Label:   "spam",
		Command: "sh",
		Args:    []string{"-c", "yes x | head -c 4096"},
	})
	if !out.OK() {
		t.Fatalf("status = %s, want ok", out.Status)
	}
	if !out.Truncated {
		t.Error("output over the cap should be marked truncated")
	}
	data, err := os.ReadFile(out.Log.Path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "truncated") {
		t.Error("log should carry the truncation marker")
	}
	if len(data) > 64+len(truncationMarker) {
		t.Errorf("log is %d bytes, cap is 64", len(data))
	}
}

func TestRunEnvMerge(t *testing.T) {
	inv, _ := newTestInvoker(t)

	out := inv.Run(context.Background(), Request{
		Stage:   "test",
		Label:   "env",
		Command: "sh",
		Args:    []string{"-c", "echo $PGOPIPE_TEST_VAR"},
		Env:     map[string]string{"PGOPIPE_TEST_VAR": "merged"},
	})
	if !out.OK() {
		t.Fatalf("status = %s, want ok", out.Status)
	}
	data, _ := os.ReadFile(out.Log.Path)
	if !strings.Contains(string(data), "merged") {
		t.Errorf("log = %q, want env var to be visible", data)
	}
}

func TestRunNoStore(t *testing.T) {
	inv := &OSInvoker{}
	out := inv.Run(context.Background(), Request{
		Stage:   "test",
		Label:   "echo",
		Command: "sh",
		Args:    []string{"-c", "true"},
	})
	if !out.OK() {
		t.Fatalf("status = %s, want ok", out.Status)
	}
	if out.Log != nil {
		t.Error("no store configured, log should be nil")
	}
}

func TestCapWriter(t *testing.T) {
	w := newCapWriter(8)
	n, err := w.Write([]byte("12345"))
	if err != nil || n != 5 {
		t.Fatalf("Write = (%d, %v), want (5, nil)", n, err)
	}
	n, err = w.Write([]byte("67890"))
	if err != nil || n != 5 {
		t.Fatalf("Write = (%d, %v), want (5, nil)", n, err)
	}
	if string(w.buf) != "12345678" {
		t.Errorf("buf = %q, want %q", w.buf, "12345678")
	}
	if !w.truncated {
		t.Error("writer should be truncated")
	}
}
