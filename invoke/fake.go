package invoke

import (
	"context"
	"sync"
)

// FakeInvoker replays scripted outcomes keyed by stage-label, recording
// every request it sees. It lets the stage and sequencer logic be tested
// without spawning real processes.
type FakeInvoker struct {
	mu       sync.Mutex
	outcomes map[string][]Outcome
	requests []Request
}

// NewFakeInvoker creates an empty FakeInvoker. Unscripted invocations
// succeed with StatusOK.
func NewFakeInvoker() *FakeInvoker {
	return &FakeInvoker{outcomes: make(map[string][]Outcome)}
}

// Script queues outcomes for the given stage and label. Each queued
// outcome is consumed by one invocation; the last one repeats.
func (f *FakeInvoker) Script(stage, label string, outcomes ...Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[stage+"-"+label] = append(f.outcomes[stage+"-"+label], outcomes...)
}

// Run records the request and returns the next scripted outcome.
func (f *FakeInvoker) Run(ctx context.Context, req Request) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)

	if err := ctx.Err(); err != nil {
		return Outcome{Status: StatusCancelled, ExitCode: -1, Err: "cancelled"}
	}

	key := req.Stage + "-" + req.Label
	queue := f.outcomes[key]
	if len(queue) == 0 {
		return Outcome{Status: StatusOK}
	}
	out := queue[0]
	if len(queue) > 1 {
		f.outcomes[key] = queue[1:]
	}
	return out
}

// Requests returns a copy of every request seen so far.
func (f *FakeInvoker) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// RequestsFor returns the requests recorded for one stage.
func (f *FakeInvoker) RequestsFor(stage string) []Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Request
	for _, r := range f.requests {
		if r.Stage == stage {
			out = append(out, r)
		}
	}
	return out
}
