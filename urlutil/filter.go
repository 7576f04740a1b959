package urlutil

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// skippedPrefixes are href forms that never point at a checkable page.
var skippedPrefixes = []string{"#", "javascript:", "mailto:", "tel:"}

// DefaultExcludedExtensions lists downloadable resources that are not
// treated as pages.
var DefaultExcludedExtensions = []string{".pdf", ".docx"}

// IsHTTPScheme returns true if the URL has an http or https scheme.
// Returns false for empty strings, non-HTTP schemes, or unparseable URLs.
func IsHTTPScheme(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}

// IsSkippedHref reports whether an href value should be ignored before
// resolution: empty values, in-page anchors and javascript:, mailto: or
// tel: pseudo-links.
func IsSkippedHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" {
		return true
	}
	lower := strings.ToLower(href)
	for _, prefix := range skippedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// HasExcludedExtension reports whether the path of rawURL ends with one of
// exts, compared case-insensitively.
func HasExcludedExtension(rawURL string, exts []string) bool {
	if len(exts) == 0 {
		return false
	}
	p := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		p = parsed.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	for _, candidate := range exts {
		if ext == strings.ToLower(candidate) {
			return true
		}
	}
	return false
}

// ResolveReference resolves a possibly-relative ref URL against a base URL.
// If ref is absolute, it is returned as-is. Otherwise it is resolved
// relative to base using net/url.URL.ResolveReference.
func ResolveReference(base string, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", base, err)
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse ref URL %q: %w", ref, err)
	}
	resolved := baseURL.ResolveReference(refURL)
	return resolved.String(), nil
}

// Resolve turns an href found on pageURL into a normalized absolute URL.
func Resolve(href, pageURL string) (string, error) {
	resolved, err := ResolveReference(pageURL, strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return Normalize(resolved)
}
