// internal/tui/watch.go
// Package tui renders live verification progress in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/paragon/internal/accuracy"
	"github.com/mwiater/paragon/internal/util"
)

// RunFunc drives one verification run, reporting progress through the feed.
type RunFunc func(ctx context.Context, feed *Feed) error

// Feed forwards run events into the watch program. Its methods are safe to
// call from the goroutine executing the run.
type Feed struct {
	p *tea.Program
}

// Stage announces the phase the run has entered.
func (f *Feed) Stage(name string) {
	f.p.Send(stageMsg(name))
}

// Detail reports one evaluated record.
func (f *Feed) Detail(d accuracy.Detail) {
	f.p.Send(detailMsg{detail: d})
}

// Report delivers a finished accuracy report.
func (f *Feed) Report(r *accuracy.Report) {
	f.p.Send(reportMsg{report: r})
}

// stageMsg is a message sent when the run enters a new phase.
type stageMsg string

// detailMsg is a message sent for every evaluated record.
type detailMsg struct{ detail accuracy.Detail }

// reportMsg is a message sent when an accuracy report is complete.
type reportMsg struct{ report *accuracy.Report }

// runDoneMsg is a message sent when the run has finished.
type runDoneMsg struct{}

// runErr is a message sent when the run fails.
type runErr struct{ error }

// tickMsg is a message sent at regular intervals to refresh the elapsed timer.
type tickMsg time.Time

// tickCmd creates a Bubble Tea command that sends a tickMsg at a regular interval.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// watchModel is the Bubble Tea model for a live verification run.
type watchModel struct {
	title   string
	stage   string
	spinner spinner.Model
	feed    viewport.Model

	lines   []string
	total   int
	exact   int
	relaxed int

	reports []*accuracy.Report
	err     error
	done    bool

	width, height int
	started       time.Time
}

// initialWatchModel creates the watch model in its starting state.
func initialWatchModel(title string) *watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &watchModel{
		title:   title,
		stage:   "starting",
		spinner: s,
		feed:    viewport.New(100, 5),
		started: time.Now(),
	}
}

// Init starts the spinner animation and the elapsed timer.
func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// Update is the central update function for the watch model.
func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		headerHeight := 3
		footerHeight := 3
		m.feed.Width = msg.Width
		m.feed.Height = util.Max(msg.Height-headerHeight-footerHeight, 3)
		m.refreshFeed()

	case stageMsg:
		m.stage = string(msg)
		return m, nil

	case detailMsg:
		m.total++
		m.exact += util.BoolToInt(msg.detail.Exact)
		m.relaxed += util.BoolToInt(msg.detail.Relaxed)
		m.lines = append(m.lines, renderDetail(msg.detail))
		m.refreshFeed()
		return m, nil

	case reportMsg:
		m.reports = append(m.reports, msg.report)
		return m, nil

	case runDoneMsg:
		m.done = true
		return m, tea.Quit

	case runErr:
		m.err = msg.error
		m.done = true
		return m, tea.Quit

	case tickMsg:
		if !m.done {
			return m, tickCmd()
		}
		return m, nil
	}

	m.feed, cmd = m.feed.Update(msg)
	cmds = append(cmds, cmd)

	if !m.done {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// refreshFeed pushes the accumulated detail lines into the viewport. Lines
// are clamped to the viewport width so a long prompt cannot wrap and push
// earlier entries out of view.
func (m *watchModel) refreshFeed() {
	content := strings.Join(m.lines, "\n")
	if m.feed.Width > 0 {
		content = util.TruncateToWidth(content, m.feed.Width)
	}
	m.feed.SetContent(content)
	m.feed.GotoBottom()
}

// View renders the watch UI.
func (m *watchModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(1)
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	var builder strings.Builder

	labelStyle := lipgloss.NewStyle().Background(lipgloss.Color("0")).Foreground(lipgloss.Color("255")).Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1).MarginLeft(1)
	stageStyle := lipgloss.NewStyle().Background(lipgloss.Color("229")).Foreground(lipgloss.Color("0")).Padding(0, 1).MarginLeft(1)

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render("Verify:"),
		headerStyle.Render(m.title),
		stageStyle.Render(fmt.Sprintf("Stage: %s", m.stage)),
	)
	builder.WriteString(header + "\n\n")

	builder.WriteString(m.feed.View())

	timer := fmt.Sprintf("%.1f", time.Since(m.started).Seconds())
	if m.done {
		builder.WriteString(fmt.Sprintf("\n\n%s %ss", m.footer(), timer))
	} else {
		builder.WriteString(fmt.Sprintf("\n\n%s %s %ss", m.spinner.View(), m.footer(), timer))
	}

	return builder.String()
}

// footer renders the running match counters.
func (m *watchModel) footer() string {
	countStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	return countStyle.Render(fmt.Sprintf(
		"records: %d | exact: %d | relaxed: %d", m.total, m.exact, m.relaxed))
}

// renderDetail formats one evaluated record for the feed.
func renderDetail(d accuracy.Detail) string {
	exactStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	relaxedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	missStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	mark := missStyle.Render("miss")
	if d.Exact {
		mark = exactStyle.Render("exact")
	} else if d.Relaxed {
		mark = relaxedStyle.Render("relaxed")
	}

	prompt := util.TruncateRunes(d.Prompt, 48)
	return fmt.Sprintf("  >>> [%d] %q -> %q (want %q) %s", d.Index, prompt, d.Predicted, d.Expected, mark)
}

// Watch runs fn under a live progress display and returns fn's error. The
// display exits when the run finishes or the user quits, which cancels the
// run's context.
func Watch(ctx context.Context, title string, fn RunFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := initialWatchModel(title)
	p := tea.NewProgram(m, tea.WithAltScreen())

	errCh := make(chan error, 1)
	go func() {
		err := fn(ctx, &Feed{p: p})
		errCh <- err
		if err != nil {
			p.Send(runErr{error: err})
		} else {
			p.Send(runDoneMsg{})
		}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-errCh
		return fmt.Errorf("tui: run display: %w", err)
	}
	cancel()
	return <-errCh
}
