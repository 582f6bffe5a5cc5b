// Package probe determines, before the pipeline starts, whether optional
// environment capabilities are available. Absence of a capability is a
// normal outcome, never an error.
package probe

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pgopipe/pgopipe/internal/logging"
)

// Capability names an optional environment capability a stage may require.
type Capability string

// PerfEvents is hardware performance-counter access for sampled profiling.
const PerfEvents Capability = "perf-events"

// Result is the outcome of probing one capability.
type Result string

const (
	Available   Result = "available"
	Unavailable Result = "unavailable"
	Unknown     Result = "unknown"
)

// Prober checks capabilities in the current environment.
type Prober interface {
	Probe(ctx context.Context, c Capability) Result
}

// probeTimeout bounds the whole probe, including its helper process.
const probeTimeout = 2 * time.Second

// paranoidPath exposes the kernel's perf_event access policy. Values
// above 2 deny unprivileged hardware counter access.
const paranoidPath = "/proc/sys/kernel/perf_event_paranoid"

// PerfProber checks hardware counter access with a minimal `perf stat`
// run against /bin/true. It never invokes the full profiler.
type PerfProber struct {
	// ParanoidPath overrides the kernel policy file location, for tests.
	ParanoidPath string
}

// Probe implements Prober. Unexpected probe failures yield Unknown so the
// caller can decide whether to attempt profiling anyway.
func (p *PerfProber) Probe(ctx context.Context, c Capability) Result {
	if c != PerfEvents {
		return Unknown
	}
	log := logging.New("probe")

	if _, err := exec.LookPath("perf"); err != nil {
		log.Info("perf not found on PATH", "capability", string(c))
		return Unavailable
	}

	if level, ok := p.paranoidLevel(); ok && level > 2 {
		log.Info("perf_event_paranoid denies unprivileged counters", "level", level)
		return Unavailable
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, "perf", "stat", "-e", "cycles", "--", "true")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case err == nil:
		return Available
	case probeCtx.Err() != nil:
		log.Warn("perf probe timed out", "timeout", probeTimeout.String())
		return Unknown
	case strings.Contains(stderr.String(), "not supported"),
		strings.Contains(stderr.String(), "Permission"),
		strings.Contains(stderr.String(), "permission"):
		return Unavailable
	default:
		log.Warn("perf probe failed", "error", err, "stderr", strings.TrimSpace(stderr.String()))
		return Unknown
	}
}

func (p *PerfProber) paranoidLevel() (int, bool) {
	path := p.ParanoidPath
	if path == "" {
		path = paranoidPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	level, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return level, true
}

// StaticProber returns fixed results, for tests and for CLI overrides.
type StaticProber map[Capability]Result

// Probe implements Prober. Unlisted capabilities are Unknown.
func (s StaticProber) Probe(_ context.Context, c Capability) Result {
	if r, ok := s[c]; ok {
		return r
	}
	return Unknown
}
