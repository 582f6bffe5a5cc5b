// Package tui renders the interactive pipeline progress view.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pgopipe/pgopipe/pipeline"
)

type stageStatus int

const (
	statusPending stageStatus = iota
	statusRunning
	statusDone
)

// ProgressModel is the bubbletea model that tracks pipeline progress.
// It consumes pipeline.Event messages forwarded from the sequencer and
// quits once the pipeline-done event arrives.
type ProgressModel struct {
	styles  *StyleSet
	spin    spinner.Model
	target  string
	version string

	stages   []string
	status   []stageStatus
	results  []*pipeline.StageResult
	verdict  pipeline.RunVerdict
	done     bool
	cancel   func()
	quitting bool
}

// NewProgress creates the progress model for the given stage list. The
// final entry is expected to be the verification stage. cancel, when
// set, is invoked on ctrl+c to request pipeline abort; the view stays up
// until the pipeline reports completion.
func NewProgress(target string, stages []string, version string, cancel func()) ProgressModel {
	styles := NewStyleSet(DetectTheme(""))
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.AccentTxt

	return ProgressModel{
		styles:  styles,
		spin:    sp,
		target:  target,
		version: version,
		stages:  stages,
		status:  make([]stageStatus, len(stages)),
		results: make([]*pipeline.StageResult, len(stages)),
		cancel:  cancel,
	}
}

// Init starts the spinner.
func (m ProgressModel) Init() tea.Cmd {
	return m.spin.Tick
}

// Update handles key, spinner, and pipeline events.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.cancel != nil {
				m.quitting = true
				m.cancel()
				return m, nil
			}
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case pipeline.Event:
		switch msg.Type {
		case pipeline.EventStageStart:
			if msg.Index < len(m.status) {
				m.status[msg.Index] = statusRunning
			}
		case pipeline.EventStageDone:
			if msg.Index < len(m.status) {
				m.status[msg.Index] = statusDone
				m.results[msg.Index] = msg.Result
			}
		case pipeline.EventDone:
			m.done = true
			m.verdict = msg.Verdict
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the stage list with per-stage verdicts.
func (m ProgressModel) View() string {
	s := m.styles
	var b strings.Builder

	b.WriteString(s.Title.Render("pgopipe") + " " + s.VersionPill.Render(m.version))
	b.WriteString("\n" + s.SecondaryTxt.Render("target: "+m.target) + "\n\n")

	for i, name := range m.stages {
		b.WriteString("  " + m.glyph(i) + " " + m.line(i, name) + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.done:
		b.WriteString(m.verdictLine())
	case m.quitting:
		b.WriteString(s.WarningTxt.Render("cancelling, waiting for the current stage..."))
	default:
		b.WriteString(s.DimTxt.Render("ctrl+c to cancel"))
	}
	b.WriteString("\n")

	return s.BorderedBox.Render(b.String())
}

func (m ProgressModel) glyph(i int) string {
	s := m.styles
	switch m.status[i] {
	case statusRunning:
		return m.spin.View()
	case statusDone:
		r := m.results[i]
		if r == nil {
			return s.DimTxt.Render("·")
		}
		switch r.Verdict {
		case pipeline.Succeeded:
			return s.SuccessTxt.Render("✓")
		case pipeline.SucceededWithDegradation:
			return s.WarningTxt.Render("!")
		case pipeline.Skipped:
			return s.DimTxt.Render("-")
		default:
			return s.ErrorTxt.Render("✗")
		}
	default:
		return s.DimTxt.Render("·")
	}
}

func (m ProgressModel) line(i int, name string) string {
	s := m.styles
	switch m.status[i] {
	case statusRunning:
		return s.PrimaryTxt.Render(name)
	case statusDone:
		r := m.results[i]
		if r != nil && r.Cause != "" {
			return s.SecondaryTxt.Render(name) + " " + s.DimTxt.Render("("+r.Cause+")")
		}
		return s.SecondaryTxt.Render(name)
	default:
		return s.DimTxt.Render(name)
	}
}

func (m ProgressModel) verdictLine() string {
	s := m.styles
	switch m.verdict {
	case pipeline.Success:
		return s.SuccessTxt.Render("success")
	case pipeline.PartialSuccess:
		return s.WarningTxt.Render("partial success (degraded)")
	default:
		return s.ErrorTxt.Render("failure")
	}
}
