package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sable-labs/katana/engine"
)

const pollInterval = 200 * time.Millisecond

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

type tickMsg time.Time

type joinResultMsg struct{ clean bool }

// WatchModel polls a running engine.Manager's Stats on a timer and
// renders them as a row of stat boxes, until the run completes (signaled
// via joinDone) or the user quits early.
type WatchModel struct {
	mgr      *engine.Manager
	joinDone <-chan bool
	started  time.Time
	stats    engine.Stats
	clean    *bool
	quitting bool
}

// NewWatchModel builds a dashboard for mgr. joinDone receives exactly one
// value — the result of the Manager.Join call the caller runs
// concurrently — at which point the dashboard renders a final frame and
// exits on its own.
func NewWatchModel(mgr *engine.Manager, joinDone <-chan bool) WatchModel {
	return WatchModel{mgr: mgr, joinDone: joinDone, started: time.Now()}
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(tick(), waitForJoin(m.joinDone))
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForJoin(done <-chan bool) tea.Cmd {
	return func() tea.Msg {
		clean, ok := <-done
		if !ok {
			clean = true
		}
		return joinResultMsg{clean: clean}
	}
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		m.stats = m.mgr.Stats()
		if m.quitting {
			return m, nil
		}
		return m, tick()
	case joinResultMsg:
		m.stats = m.mgr.Stats()
		clean := msg.clean
		m.clean = &clean
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m WatchModel) View() string {
	elapsed := time.Since(m.started).Round(time.Second)

	boxes := []string{
		statBox("Evaluated", fmt.Sprintf("%d", m.stats.UnitsEvaluated), highlightColor),
		statBox("Flags", fmt.Sprintf("%d", m.stats.FlagsFound), successColor),
		statBox("Exceptions", fmt.Sprintf("%d", m.stats.Exceptions), errorColor),
		statBox("Depth hits", fmt.Sprintf("%d", m.stats.DepthLimitHits), warningColor),
		statBox("Workers", fmt.Sprintf("%d", m.stats.ActiveWorkers), highlightColor),
		statBox("Queue", fmt.Sprintf("%d", m.stats.QueueLength), highlightColor),
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("katana eval"))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")
	b.WriteString(LabelStyle.Render("Elapsed:") + ValueStyle.Render(elapsed.String()))

	b.WriteString("\n")
	b.WriteString(StateStyle(m.state()).Render(m.statusText()))
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("Press q or Ctrl+C to quit"))
	return b.String()
}

// state reports this run's state in the vocabulary StateStyle expects:
// "running" while a Join result hasn't arrived yet, "completed" once it
// has arrived clean, "failed" if it arrived as a timeout.
func (m WatchModel) state() string {
	switch {
	case m.clean == nil:
		return "running"
	case *m.clean:
		return "completed"
	default:
		return "failed"
	}
}

func (m WatchModel) statusText() string {
	switch m.state() {
	case "completed":
		return "run complete"
	case "failed":
		return "run timed out"
	default:
		return "run in progress"
	}
}

func statBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)
	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

// RunWatch drives the dashboard for the duration of a Join call already
// running on the goroutine feeding joinDone. It returns the clean/timeout
// result that Join produced, or true if the user quit before Join
// finished (the scheduler keeps running in the background regardless).
func RunWatch(mgr *engine.Manager, joinDone <-chan bool) (bool, error) {
	model := NewWatchModel(mgr, joinDone)
	p := tea.NewProgram(model, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return false, err
	}
	m := final.(WatchModel)
	if m.clean == nil {
		return true, nil
	}
	return *m.clean, nil
}
