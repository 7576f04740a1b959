package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lukemcguire/sitecheck/config"
	"github.com/lukemcguire/sitecheck/crawler"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		assert.Equal(t, "sitecheck", cmd.Use)
	})

	t.Run("has short description", func(t *testing.T) {
		assert.NotEmpty(t, cmd.Short)
	})

	t.Run("has flags", func(t *testing.T) {
		for _, name := range []string{
			"base-url", "engine", "max-concurrent", "processes", "timeout",
			"discovery-timeout", "output", "format", "extractor", "fallback-status",
			"fallback-any-error", "exclude-ext", "rate-limit", "adaptive-rate",
			"retries", "user-agent", "respect-robots", "follow-links",
			"bloom-page-set", "sitemap", "batch-size", "memory-limit",
			"fail-on-broken", "config", "tui", "verbose",
		} {
			assert.NotNil(t, cmd.Flags().Lookup(name), name)
		}
		assert.NotNil(t, cmd.Flags().ShorthandLookup("o"))
		assert.NotNil(t, cmd.Flags().ShorthandLookup("v"))
	})

	t.Run("every setting flag has an override", func(t *testing.T) {
		for name := range flagOverrides {
			assert.NotNil(t, cmd.Flags().Lookup(name), name)
		}
	})
}

// newSite serves a landing page linking to /a and /b; /a links to a missing
// page and /b is itself missing.
func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><nav><a href="/a">A</a><a href="/b">B</a></nav><main></main></body></html>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><article><a href="/missing">Gone</a></article></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// execute runs the root command from an empty directory so no stray config
// or .env file is picked up.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	cfgPath := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("{}\n"), 0o600))

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRunWritesYAMLReport(t *testing.T) {
	for _, engine := range []string{"pool", "cooperative"} {
		t.Run(engine, func(t *testing.T) {
			site := newSite(t)
			reportPath := filepath.Join(t.TempDir(), "report.yaml")

			_, stderr, err := execute(t, "--base-url", site.URL, "--engine", engine, "-o", reportPath)
			require.NoError(t, err)

			data, err := os.ReadFile(reportPath)
			require.NoError(t, err)
			var sections map[string][]string
			require.NoError(t, yaml.Unmarshal(data, &sections))
			assert.Equal(t, map[string][]string{
				"Bad nav links:": {"/b (Status: 404)"},
				"/a":             {"/missing (Status: 404)"},
			}, sections)

			assert.Contains(t, stderr, "report written")
		})
	}
}

func TestRunReportToStdout(t *testing.T) {
	site := newSite(t)

	stdout, _, err := execute(t, "--base-url", site.URL, "--output", "-", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"nav_errors"`)
	assert.Contains(t, stdout, "/missing")
}

func TestRunFailOnBroken(t *testing.T) {
	site := newSite(t)

	_, _, err := execute(t, "--base-url", site.URL, "--output", "-", "--fail-on-broken")
	assert.ErrorIs(t, err, errIssuesFound)
}

func TestRunDiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	reportPath := filepath.Join(t.TempDir(), "report.yaml")

	_, _, err := execute(t, "--base-url", srv.URL, "-o", reportPath)
	require.ErrorIs(t, err, crawler.ErrDiscovery)
	assert.Contains(t, err.Error(), "failed to load base page: ")

	_, statErr := os.Stat(reportPath)
	assert.True(t, os.IsNotExist(statErr), "no report is written when discovery fails")
}

func TestRunRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"unknown engine", []string{"--engine", "threads"}, config.ErrInvalidEngine},
		{"follow on pool", []string{"--engine", "pool", "--follow-links"}, config.ErrFollowNeedsCooperative},
		{"bad timeout", []string{"--timeout", "0"}, config.ErrInvalidTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRunRejectsPositionalArgs(t *testing.T) {
	_, _, err := execute(t, "https://docs.example.com")
	assert.Error(t, err)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("SITECHECK_ENGINE", "cooperative")
	t.Setenv("SITECHECK_TIMEOUT", "7")

	cmd := NewRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--engine", "pool"}))

	t.Chdir(t.TempDir())
	settings, err := loadSettings(cmd.Flags(), "", config.File{Engine: "pool"}, setupLogger(&bytes.Buffer{}, false))
	require.NoError(t, err)
	assert.Equal(t, "pool", settings.Engine, "flag wins over environment")
	assert.Equal(t, 7, settings.Timeout, "environment wins over defaults")
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	setupLogger(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())

	setupLogger(&buf, true).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
