package verify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pgopipe/pgopipe/artifact"
	"github.com/pgopipe/pgopipe/config"
	"github.com/pgopipe/pgopipe/invoke"
	"github.com/pgopipe/pgopipe/pipeline"
	"github.com/pgopipe/pgopipe/probe"
)

func testBinary(t *testing.T, rc *pipeline.RunContext) *artifact.Artifact {
	t.Helper()
	path := rc.Store.AllocPath(artifact.KindBinary, "optimized")
	if err := os.WriteFile(path, []byte("elf"), 0o755); err != nil {
		t.Fatal(err)
	}
	a, err := rc.Store.Put(artifact.KindBinary, "optimized", path, "optimized-build")
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func newRunContext(t *testing.T, fake *invoke.FakeInvoker) *pipeline.RunContext {
	t.Helper()
	store, err := artifact.New(t.TempDir())
	if err != nil {
		t.Fatalf("artifact.New: %v", err)
	}
	return &pipeline.RunContext{
		Store:        store,
		Invoker:      fake,
		Capabilities: map[probe.Capability]probe.Result{},
	}
}

func TestVerifyStartupOnly(t *testing.T) {
	fake := invoke.NewFakeInvoker()
	rc := newRunContext(t, fake)
	binary := testBinary(t, rc)

	gate := NewGate(config.VerifyRef{}, "")
	if err := gate.Verify(context.Background(), rc, binary); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	reqs := fake.Requests()
	if len(reqs) != 1 {
		t.Fatalf("recorded %d requests, want 1", len(reqs))
	}
	if reqs[0].Command != binary.Path {
		t.Errorf("startup command = %q, want the binary path", reqs[0].Command)
	}
	if len(reqs[0].Args) != 1 || reqs[0].Args[0] != "--version" {
		t.Errorf("startup args = %v, want the --version default", reqs[0].Args)
	}
}

func TestVerifyHarness(t *testing.T) {
	fake := invoke.NewFakeInvoker()
	rc := newRunContext(t, fake)
	binary := testBinary(t, rc)

	gate := NewGate(config.VerifyRef{
		Harness:     "./smoke.sh",
		HarnessArgs: []string{"--target", "{binary}"},
	}, "")
	if err := gate.Verify(context.Background(), rc, binary); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	reqs := fake.Requests()
	if len(reqs) != 2 {
		t.Fatalf("recorded %d requests, want startup plus harness", len(reqs))
	}
	harness := reqs[1]
	if harness.Command != "./smoke.sh" {
		t.Errorf("harness command = %q", harness.Command)
	}
	if len(harness.Args) != 2 || harness.Args[1] != binary.Path {
		t.Errorf("harness args = %v, want {binary} expanded", harness.Args)
	}
}

func TestVerifyHarnessDefaultArgs(t *testing.T) {
	fake := invoke.NewFakeInvoker()
	rc := newRunContext(t, fake)
	binary := testBinary(t, rc)

	gate := NewGate(config.VerifyRef{Harness: "./smoke.sh"}, "")
	if err := gate.Verify(context.Background(), rc, binary); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	reqs := fake.Requests()
	if len(reqs) != 2 || len(reqs[1].Args) != 1 || reqs[1].Args[0] != binary.Path {
		t.Errorf("harness without args should get the binary path, requests = %+v", reqs)
	}
}

func TestVerifyStartupFailure(t *testing.T) {
	fake := invoke.NewFakeInvoker()
	fake.Script(pipeline.VerifyStageName, "startup",
		invoke.Outcome{Status: invoke.StatusExitError, ExitCode: 127, Err: "exit status 127"})
	rc := newRunContext(t, fake)
	binary := testBinary(t, rc)

	gate := NewGate(config.VerifyRef{Harness: "./smoke.sh"}, "")
	err := gate.Verify(context.Background(), rc, binary)
	if err == nil {
		t.Fatal("startup failure must fail verification")
	}
	if !strings.Contains(err.Error(), "startup") {
		t.Errorf("error = %q, want it to name the failed check", err)
	}
	if len(fake.Requests()) != 1 {
		t.Error("checks after the first failure must not run")
	}
}

func TestVerifyHarnessFailure(t *testing.T) {
	fake := invoke.NewFakeInvoker()
	fake.Script(pipeline.VerifyStageName, "smoke",
		invoke.Outcome{Status: invoke.StatusExitError, ExitCode: 1, Err: "exit status 1"})
	rc := newRunContext(t, fake)
	binary := testBinary(t, rc)

	gate := NewGate(config.VerifyRef{Harness: filepath.Join(".", "smoke.sh")}, "")
	err := gate.Verify(context.Background(), rc, binary)
	if err == nil {
		t.Fatal("harness failure must fail verification")
	}
	if !strings.Contains(err.Error(), "smoke") {
		t.Errorf("error = %q, want it to name the failed check", err)
	}
}
