// Package tui renders live link-check progress and a styled end-of-run
// summary with Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/sitecheck/crawler"
	"github.com/lukemcguire/sitecheck/result"
)

// Runner runs a link check; *crawler.Crawler satisfies it.
type Runner interface {
	Run(ctx context.Context) (*result.Report, error)
}

// counter is the progress of one phase.
type counter struct {
	done, total, failed int
}

// Model is the Bubble Tea model for a link-check run.
type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	runner     Runner
	progressCh <-chan crawler.CrawlEvent
	spinner    spinner.Model

	discovered int
	pages      counter
	links      counter
	current    string
	width      int

	quitting bool
	done     bool
	report   *result.Report
	err      error
}

// NewModel wires a model to runner and the channel it reports progress on.
func NewModel(ctx context.Context, cancel context.CancelFunc, runner Runner, progressCh <-chan crawler.CrawlEvent) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:        ctx,
		cancel:     cancel,
		runner:     runner,
		progressCh: progressCh,
		spinner:    spin,
	}
}

// Init starts the spinner, the run and the progress listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run(), waitForProgress(m.progressCh))
}

func (m Model) run() tea.Cmd {
	return func() tea.Msg {
		rep, err := m.runner.Run(m.ctx)
		return DoneMsg{Report: rep, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case ProgressMsg:
		c := counter{done: msg.Done, total: msg.Total, failed: msg.Broken}
		switch msg.Phase {
		case crawler.PhaseDiscovery:
			m.discovered = msg.Total
		case crawler.PhasePages:
			m.pages = c
		case crawler.PhaseLinks:
			m.links = c
		}
		m.current = msg.URL
		return m, waitForProgress(m.progressCh)

	case progressClosedMsg:
		return m, nil

	case DoneMsg:
		m.done = true
		m.report = msg.Report
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current state.
func (m Model) View() string {
	if m.done && m.report != nil {
		return RenderSummary(m.report)
	}
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	var b strings.Builder
	if m.discovered == 0 {
		fmt.Fprintf(&b, "%s Loading navigation...\n", m.spinner.View())
	} else {
		fmt.Fprintf(&b, "%s Checking links across %d navigation pages...\n", m.spinner.View(), m.discovered)
	}
	fmt.Fprintf(&b, "  pages %d/%d, navigation errors %d\n", m.pages.done, m.pages.total, m.pages.failed)
	fmt.Fprintf(&b, "  links %d/%d, broken %d\n", m.links.done, m.links.total, m.links.failed)
	b.WriteString(dimStyle.Render("  " + truncate(m.current, m.width-2)))
	b.WriteString("\n")
	return b.String()
}

// Report returns the finished run's report, if any.
func (m Model) Report() *result.Report { return m.report }

// Err returns the error the run ended with.
func (m Model) Err() error { return m.err }

// Quitting reports whether the user interrupted the run.
func (m Model) Quitting() bool { return m.quitting }

func truncate(s string, width int) string {
	if width <= 3 || len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}
