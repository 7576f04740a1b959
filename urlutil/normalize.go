package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidBaseURL is returned by TrimBase for anything that is not an
// absolute http(s) URL.
var ErrInvalidBaseURL = errors.New("base URL must start with http:// or https://")

// Normalize takes a raw URL string and returns a normalized version.
// Normalization includes:
// - Lowercasing the scheme and host
// - Stripping fragments (#section)
// - Preserving the path exactly, including any trailing slash
// - Preserving query parameters
//
// Static documentation hosts often serve "/guide/" and "/guide" differently,
// so the trailing slash is part of a link's identity.
//
// Returns an error if the input is empty or cannot be parsed as a valid URL.
func Normalize(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("cannot normalize empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize URL %q: %w", rawURL, err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.New("URL must have both scheme and host")
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""

	return parsed.String(), nil
}

// TrimBase validates a site root URL and returns it normalized with every
// trailing slash removed, e.g. "HTTPS://Docs.Example.com/" becomes
// "https://docs.example.com".
func TrimBase(rawURL string) (string, error) {
	if !IsHTTPScheme(rawURL) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBaseURL, rawURL)
	}
	normalized, err := Normalize(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	return strings.TrimRight(normalized, "/"), nil
}

// IsInternal reports whether normalizedURL lives under base. The check is a
// plain prefix test, so a host that merely shares base as a prefix
// ("https://docs.example.com.evil") also counts as internal.
func IsInternal(normalizedURL, base string) bool {
	return base != "" && strings.HasPrefix(normalizedURL, base)
}

// Relative strips base from the front of rawURL once. The site root maps
// to "/". URLs outside base are returned unchanged.
func Relative(rawURL, base string) string {
	if !strings.HasPrefix(rawURL, base) {
		return rawURL
	}
	rel := strings.Replace(rawURL, base, "", 1)
	if rel == "" {
		return "/"
	}
	return rel
}
