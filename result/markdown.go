package result

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/lukemcguire/sitecheck/urlutil"
)

// WriteMarkdown writes the report as a Markdown document suitable for a
// CI job summary or a pull request comment.
func WriteMarkdown(w io.Writer, rep *Report) error {
	md := markdown.NewMarkdown(w)

	md.H1("Broken Links Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Base URL", "`" + rep.BaseURL + "`"},
			{"Generated", rep.GeneratedAt.Format(generatedLayout)},
			{"Pages processed", strconv.Itoa(rep.Summary.PagesProcessed)},
			{"Unique links checked", strconv.Itoa(rep.Summary.UniqueLinksChecked)},
			{"Broken link references", strconv.Itoa(rep.Summary.BrokenLinkReferences)},
			{"Pages with issues", strconv.Itoa(rep.Summary.PagesWithIssues)},
			{"Navigation errors", strconv.Itoa(rep.Summary.NavigationErrors)},
		},
	})
	md.PlainText("")

	if !rep.HasIssues() {
		md.Tip("No broken links found.")
		md.PlainText("")
		return buildMarkdown(md)
	}

	if rep.Summary.NavigationErrors > 0 {
		md.Warningf("%d page(s) listed in the navigation could not be loaded.", rep.Summary.NavigationErrors)
		md.PlainText("")
	}

	for _, s := range reportSections(rep) {
		if s.key == NavSectionKey {
			md.H2("Bad nav links")
		} else {
			md.H2(fmt.Sprintf("`%s`", s.key))
		}
		md.PlainText("")
		md.BulletList(s.entries...)
		md.PlainText("")
	}

	if len(rep.Pages) > 0 {
		md.H2("Broken links by page")
		md.PlainText("")
		rows := make([][]string, 0, rep.Summary.BrokenLinkReferences)
		for _, p := range rep.Pages {
			for _, l := range p.Links {
				rows = append(rows, []string{
					urlutil.Relative(p.Page, rep.BaseURL),
					urlutil.Relative(l.URL, rep.BaseURL),
					l.Status.Display(),
					FormatCategory(l.Status.ErrorCategory),
				})
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Page", "Link", "Status", "Category"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	return buildMarkdown(md)
}

func buildMarkdown(md *markdown.Markdown) error {
	if err := md.Build(); err != nil {
		return fmt.Errorf("write markdown output: %w", err)
	}
	return nil
}
