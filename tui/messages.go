package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/sitecheck/crawler"
	"github.com/lukemcguire/sitecheck/result"
)

// ProgressMsg carries one crawler event into the model.
type ProgressMsg crawler.CrawlEvent

// DoneMsg signals the run has finished.
type DoneMsg struct {
	Report *result.Report
	Err    error
}

// progressClosedMsg is sent once the progress channel is drained and closed.
type progressClosedMsg struct{}

// waitForProgress reads the next event from ch.
func waitForProgress(ch <-chan crawler.CrawlEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return progressClosedMsg{}
		}
		return ProgressMsg(evt)
	}
}
