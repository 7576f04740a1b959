package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lukemcguire/sitecheck/urlutil"
)

// Format selects a report encoding.
type Format string

const (
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatYAML, FormatJSON, FormatCSV, FormatMarkdown:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want yaml, json, csv or markdown)", s)
	}
}

// Write encodes rep to w in the given format.
func Write(w io.Writer, format Format, rep *Report) error {
	switch format {
	case FormatYAML, "":
		return WriteYAML(w, rep)
	case FormatJSON:
		return WriteJSON(w, rep)
	case FormatCSV:
		return WriteCSV(w, rep)
	case FormatMarkdown:
		return WriteMarkdown(w, rep)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteJSON writes the full report as indented JSON.
func WriteJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteCSV writes one row per broken reference and per navigation error.
// Always includes a header row, even if nothing is broken.
// Column order: page, link, status, error_type, kind
func WriteCSV(w io.Writer, rep *Report) error {
	cw := csv.NewWriter(w)

	header := []string{"page", "link", "status", "error_type", "kind"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, ne := range rep.NavErrors {
		record := []string{
			urlutil.Relative(ne.Page, rep.BaseURL),
			"",
			ne.Status,
			string(ne.ErrorCategory),
			"navigation",
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for %s: %w", ne.Page, err)
		}
	}

	for _, page := range rep.Pages {
		for _, link := range page.Links {
			record := []string{
				urlutil.Relative(page.Page, rep.BaseURL),
				urlutil.Relative(link.URL, rep.BaseURL),
				link.Status.Display(),
				string(link.Status.ErrorCategory),
				"link",
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write csv record for %s: %w", link.URL, err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}
