package crawler

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/lukemcguire/sitecheck/urlutil"
)

type sitemapURLSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// sitemapCandidates are tried in order until one parses.
var sitemapCandidates = []string{"/sitemap.xml", "/sitemap_index.xml"}

// sitemapPages returns the page URLs listed by the site's sitemap. An index
// is followed one level deep.
func (c *Crawler) sitemapPages(ctx context.Context) ([]string, error) {
	var lastErr error
	for _, path := range sitemapCandidates {
		pages, err := c.readSitemap(ctx, c.base+path, true)
		if err == nil {
			return pages, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Crawler) readSitemap(ctx context.Context, sitemapURL string, nested bool) ([]string, error) {
	page, err := c.discovery.fetchPage(ctx, sitemapURL, c.cfg.DiscoveryTimeout)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}
	if page.status >= 400 || page.body == nil {
		return nil, fmt.Errorf("fetch sitemap %s: status %d", sitemapURL, page.status)
	}

	var set sitemapURLSet
	if err := xml.Unmarshal(page.body, &set); err == nil && len(set.URLs) > 0 {
		locs := make([]string, 0, len(set.URLs))
		for _, u := range set.URLs {
			locs = append(locs, strings.TrimSpace(u.Loc))
		}
		return locs, nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(page.body, &index); err != nil || len(index.Sitemaps) == 0 {
		return nil, fmt.Errorf("parse sitemap %s: no <url> or <sitemap> entries", sitemapURL)
	}
	if !nested {
		return nil, fmt.Errorf("parse sitemap %s: index nested too deep", sitemapURL)
	}

	var locs []string
	for _, sm := range index.Sitemaps {
		loc, err := urlutil.Normalize(strings.TrimSpace(sm.Loc))
		if err != nil || !urlutil.IsInternal(loc, c.base) {
			c.logger.Debug("skipping off-site sitemap", "url", sm.Loc)
			continue
		}
		child, err := c.readSitemap(ctx, loc, false)
		if err != nil {
			c.logger.Debug("skipping nested sitemap", "url", sm.Loc, "error", err)
			continue
		}
		locs = append(locs, child...)
	}
	return locs, nil
}
