package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/sitecheck/result"
	"github.com/lukemcguire/sitecheck/urlutil"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	cellStyle        = lipgloss.NewStyle()
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// categoryOrder lists categories from most to least actionable.
var categoryOrder = []result.ErrorCategory{
	result.Category4xx,
	result.Category5xx,
	result.CategoryTimeout,
	result.CategoryDNSFailure,
	result.CategoryConnectionRefused,
	result.CategoryCancelled,
	result.CategoryUnknown,
}

// RenderSummary renders a report as styled tables: navigation errors first,
// then broken links grouped by failure category.
func RenderSummary(rep *result.Report) string {
	if rep == nil {
		return errorStyle.Render("No report available.")
	}
	sum := rep.Summary
	elapsed := sum.Elapsed.Round(time.Millisecond)

	var b strings.Builder
	if !rep.HasIssues() {
		b.WriteString(successStyle.Render("No broken links found!"))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf(
			"Processed %d pages and checked %d links in %s",
			sum.PagesProcessed, sum.UniqueLinksChecked, elapsed,
		)))
		b.WriteString("\n")
		return b.String()
	}

	if len(rep.NavErrors) > 0 {
		b.WriteString(categoryStyle.Render(fmt.Sprintf("## Navigation errors (%d)", len(rep.NavErrors))))
		b.WriteString("\n")
		rows := make([][]string, 0, len(rep.NavErrors))
		for _, ne := range rep.NavErrors {
			rows = append(rows, []string{urlutil.Relative(ne.Page, rep.BaseURL), ne.Status})
		}
		b.WriteString(renderTable([]string{"Page", "Status"}, rows))
		b.WriteString("\n\n")
	}

	grouped := make(map[result.ErrorCategory][][]string)
	for _, page := range rep.Pages {
		for _, l := range page.Links {
			cat := l.Status.ErrorCategory
			if cat == "" {
				cat = result.CategoryUnknown
			}
			grouped[cat] = append(grouped[cat], []string{
				urlutil.Relative(l.URL, rep.BaseURL),
				l.Status.Display(),
				urlutil.Relative(page.Page, rep.BaseURL),
			})
		}
	}
	for _, cat := range categoryOrder {
		rows := grouped[cat]
		if len(rows) == 0 {
			continue
		}
		b.WriteString(categoryStyle.Render(fmt.Sprintf("## %s (%d)", result.FormatCategory(cat), len(rows))))
		b.WriteString("\n")
		b.WriteString(renderTable([]string{"Link", "Status", "Found On"}, rows))
		b.WriteString("\n\n")
	}

	b.WriteString(titleStyle.Render(fmt.Sprintf(
		"Found %d broken links (%d references) and %d navigation errors across %d pages (%s)",
		sum.UniqueBrokenLinks, sum.BrokenLinkReferences, sum.NavigationErrors, sum.PagesProcessed, elapsed,
	)))
	b.WriteString("\n")
	return b.String()
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 {
				return statusErrorStyle
			}
			return cellStyle
		}).
		Rows(rows...).
		Render()
}
