package cli

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bakeassist/bakeassist/internal/agent"
)

type turnDoneMsg struct {
	res *agent.RunResult
	err error
}

// turnModel shows a spinner while a chat turn runs.
type turnModel struct {
	spinner spinner.Model
	run     func() (*agent.RunResult, error)
	cancel  context.CancelFunc
	res     *agent.RunResult
	err     error
	done    bool
}

func (m turnModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		res, err := m.run()
		return turnDoneMsg{res: res, err: err}
	})
}

func (m turnModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case turnDoneMsg:
		m.res, m.err, m.done = msg.res, msg.err, true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.cancel()
			m.err, m.done = context.Canceled, true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m turnModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + styleMuted.Render(" baking a reply...")
}

// runTurnWithSpinner runs req on runner while a spinner is shown. Ctrl+C
// cancels the turn.
func runTurnWithSpinner(ctx context.Context, runner *agent.Runner, req *agent.RunRequest) (*agent.RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := turnModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styleLabel)),
		run:     func() (*agent.RunResult, error) { return runner.Run(ctx, req) },
		cancel:  cancel,
	}
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, err
	}
	tm := final.(turnModel)
	return tm.res, tm.err
}
