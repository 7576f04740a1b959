// Package main provides the sitecheck CLI, which checks a deployed
// documentation site for broken internal links and navigation pages that
// fail to load.
//
// Usage:
//
//	sitecheck --base-url https://docs.example.com
//	sitecheck --engine cooperative --follow-links --output report.yaml
//
// See --help for all available options.
package main

func main() {
	Execute()
}
