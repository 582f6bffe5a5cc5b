package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pgopipe/pgopipe/pipeline"
)

func stageEvent(typ pipeline.EventType, index int, stage string, verdict pipeline.Verdict) pipeline.Event {
	e := pipeline.Event{Type: typ, Index: index, Stage: stage}
	if typ == pipeline.EventStageDone {
		e.Result = &pipeline.StageResult{Stage: stage, Verdict: verdict}
	}
	return e
}

func TestProgressTracksStages(t *testing.T) {
	m := NewProgress("myapp", []string{"initial-build", "optimized-build", "verify"}, "dev", nil)

	next, _ := m.Update(stageEvent(pipeline.EventStageStart, 0, "initial-build", ""))
	m = next.(ProgressModel)
	if m.status[0] != statusRunning {
		t.Errorf("stage 0 status = %v, want running", m.status[0])
	}

	next, _ = m.Update(stageEvent(pipeline.EventStageDone, 0, "initial-build", pipeline.Succeeded))
	m = next.(ProgressModel)
	if m.status[0] != statusDone || m.results[0] == nil {
		t.Fatalf("stage 0 not marked done")
	}

	view := m.View()
	if !strings.Contains(view, "initial-build") || !strings.Contains(view, "myapp") {
		t.Errorf("view missing stage or target:\n%s", view)
	}
}

func TestProgressQuitsOnDone(t *testing.T) {
	m := NewProgress("myapp", []string{"initial-build"}, "dev", nil)

	next, cmd := m.Update(pipeline.Event{Type: pipeline.EventDone, Verdict: pipeline.Success})
	m = next.(ProgressModel)
	if !m.done {
		t.Error("model not marked done")
	}
	if cmd == nil {
		t.Fatal("done event should quit the program")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("done event should produce tea.Quit")
	}
	if !strings.Contains(m.View(), "success") {
		t.Errorf("final view missing verdict:\n%s", m.View())
	}
}

func TestProgressCancelKey(t *testing.T) {
	cancelled := false
	m := NewProgress("myapp", []string{"initial-build"}, "dev", func() { cancelled = true })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(ProgressModel)
	if !cancelled {
		t.Error("ctrl+c should invoke the cancel callback")
	}
	if cmd != nil {
		t.Error("view must stay up until the pipeline reports completion")
	}
	if !strings.Contains(m.View(), "cancelling") {
		t.Errorf("view should show the cancelling notice:\n%s", m.View())
	}
}
