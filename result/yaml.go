package result

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"

	"github.com/lukemcguire/sitecheck/urlutil"
)

// NavSectionKey is the report key that lists unreachable navigation pages.
const NavSectionKey = "Bad nav links:"

// generatedLayout is the timestamp format of the "# Generated:" header.
const generatedLayout = "2006-01-02 15:04:05"

// WriteYAML writes the report in the broken-links YAML format: a comment
// header followed by a mapping whose first key, when present, is
// NavSectionKey and whose remaining keys are problematic pages relative to
// the base URL. Apart from the "# Generated:" line the output is a pure
// function of the report's findings.
func WriteYAML(w io.Writer, rep *Report) error {
	body, err := YAMLBody(rep)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString("# Broken Links Report\n")
	fmt.Fprintf(&buf, "# Generated: %s\n", rep.GeneratedAt.Format(generatedLayout))
	fmt.Fprintf(&buf, "# Base URL: %s\n", rep.BaseURL)
	fmt.Fprintf(&buf, "# Links checked: %d\n", rep.Summary.UniqueLinksChecked)
	fmt.Fprintf(&buf, "# Digest: blake3:%s\n", Digest(body))
	buf.WriteString("#\n")
	buf.Write(body)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write yaml output: %w", err)
	}
	return nil
}

// YAMLBody renders the report mapping without the comment header.
func YAMLBody(rep *Report) ([]byte, error) {
	sections := reportSections(rep)
	if len(sections) == 0 {
		return []byte("# No broken links found\n{}\n"), nil
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range sections {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, entry := range s.entries {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: entry})
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s.key},
			seq,
		)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("encode yaml report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml report: %w", err)
	}
	return buf.Bytes(), nil
}

// Digest returns the hex BLAKE3 hash of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type section struct {
	key     string
	entries []string
}

// reportSections flattens a report into ordered key/entries pairs shared by
// the YAML and Markdown writers. Pages that collapse onto the same relative
// key (the site root with and without its slash) are merged.
func reportSections(rep *Report) []section {
	var out []section

	if len(rep.NavErrors) > 0 {
		entries := make([]string, 0, len(rep.NavErrors))
		for _, ne := range rep.NavErrors {
			entries = append(entries, FormatEntry(urlutil.Relative(ne.Page, rep.BaseURL), ne.Status))
		}
		out = append(out, section{key: NavSectionKey, entries: sortedUnique(entries)})
	}

	index := make(map[string]int)
	for _, p := range rep.Pages {
		key := urlutil.Relative(p.Page, rep.BaseURL)
		entries := make([]string, 0, len(p.Links))
		for _, l := range p.Links {
			entries = append(entries, FormatEntry(urlutil.Relative(l.URL, rep.BaseURL), l.Status.Display()))
		}
		if i, ok := index[key]; ok {
			out[i].entries = sortedUnique(append(out[i].entries, entries...))
			continue
		}
		index[key] = len(out)
		out = append(out, section{key: key, entries: sortedUnique(entries)})
	}
	return out
}

func sortedUnique(entries []string) []string {
	slices.Sort(entries)
	return slices.Compact(entries)
}
