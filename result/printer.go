package result

import (
	"fmt"
	"io"
)

// PrintSummary writes the end-of-run counters to w, typically stderr.
func PrintSummary(w io.Writer, rep *Report) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	if rep.HasIssues() {
		writef("Link check complete: issues found\n")
	} else {
		writef("Link check complete: no broken links found!\n")
	}

	s := rep.Summary
	writef("  - Pages processed: %d\n", s.PagesProcessed)
	if s.PagesSkipped > 0 {
		writef("  - Pages skipped: %d\n", s.PagesSkipped)
	}
	writef("  - Unique links checked: %d\n", s.UniqueLinksChecked)
	writef("  - Broken link references: %d\n", s.BrokenLinkReferences)
	writef("  - Pages with issues: %d\n", s.PagesWithIssues)
	writef("  - Navigation errors: %d\n", s.NavigationErrors)
	writef("  - Elapsed time: %.1fs\n", s.Elapsed.Seconds())
}
