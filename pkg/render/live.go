package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mendtest/mend/mend"
)

// RunOutcome is what the engine goroutine delivers when a watched run ends.
type RunOutcome struct {
	Result *mend.RunResult
	Err    error
}

// Watch drives a live TUI while an engine run progresses. Events stream in
// on events; the final outcome arrives on outcomes. Watch returns the run's
// result once the program exits.
func Watch(ctx context.Context, theme Theme, events <-chan mend.Event, outcomes <-chan RunOutcome) (*mend.RunResult, error) {
	m := newLiveModel(theme, events, outcomes)
	program := tea.NewProgram(m, tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil {
		return nil, err
	}
	lm := final.(liveModel)
	if lm.outcome.Err != nil {
		return nil, lm.outcome.Err
	}
	return lm.outcome.Result, nil
}

type liveModel struct {
	theme    Theme
	spinner  spinner.Model
	events   <-chan mend.Event
	outcomes <-chan RunOutcome

	history []mend.Event
	current mend.Event
	outcome RunOutcome
	done    bool
}

func newLiveModel(theme Theme, events <-chan mend.Event, outcomes <-chan RunOutcome) liveModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Primary
	return liveModel{theme: theme, spinner: sp, events: events, outcomes: outcomes}
}

type eventMsg mend.Event
type outcomeMsg RunOutcome

func (m liveModel) listenEvents() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev, ok := <-m.events:
			if !ok {
				out := <-m.outcomes
				return outcomeMsg(out)
			}
			return eventMsg(ev)
		case out := <-m.outcomes:
			return outcomeMsg(out)
		}
	}
}

func (m liveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenEvents())
}

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case eventMsg:
		ev := mend.Event(msg)
		if ev.State != m.current.State || ev.Attempt != m.current.Attempt {
			m.history = append(m.history, ev)
		}
		m.current = ev
		return m, m.listenEvents()
	case outcomeMsg:
		m.outcome = RunOutcome(msg)
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m liveModel) View() string {
	var sb strings.Builder
	sb.WriteString(m.theme.Bold.Render("mend") + "\n\n")

	for _, ev := range m.history {
		sb.WriteString("  " + m.theme.Muted.Render(describeEvent(m.theme, ev)) + "\n")
	}

	if m.done {
		sb.WriteString("\n" + m.theme.Success.Render("run complete") + "\n")
	} else {
		sb.WriteString("\n  " + m.spinner.View() + " " + describeEvent(m.theme, m.current) + "\n")
	}
	return sb.String()
}

func describeEvent(theme Theme, ev mend.Event) string {
	switch ev.State {
	case mend.StateRunning:
		return fmt.Sprintf("attempt %d/%d running", ev.Attempt, ev.MaxAttempts)
	case mend.StateManualRetry:
		return fmt.Sprintf("%s attempt %d failed, retrying unchanged", theme.Icons.Retry, ev.Attempt)
	case mend.StateRepairing:
		if ev.Detail != "" {
			return fmt.Sprintf("%s fix applied: %s", theme.Icons.Heal, ev.Detail)
		}
		return fmt.Sprintf("%s attempt %d failed, requesting fix", theme.Icons.Heal, ev.Attempt)
	case mend.StateSuccess:
		return theme.Icons.Pass + " all tests passed"
	case mend.StateAborted:
		if ev.Detail != "" {
			return theme.Icons.Fail + " aborted: " + ev.Detail
		}
		return theme.Icons.Fail + " aborted"
	default:
		return "starting"
	}
}
