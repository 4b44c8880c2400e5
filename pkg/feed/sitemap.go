package feed

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

// Sitemap defaults used when an entry carries no usable value
const (
	DefaultChangeFreq = "weekly"
	DefaultPriority   = 0.5
)

var validChangeFreqs = map[string]bool{
	"always":  true,
	"hourly":  true,
	"daily":   true,
	"weekly":  true,
	"monthly": true,
	"yearly":  true,
	"never":   true,
}

// SitemapEntry is one crawlable URL
type SitemapEntry struct {
	Loc        string
	LastMod    time.Time
	ChangeFreq string
	Priority   float64
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// GenerateSitemap renders entries in the order given
func (g *Generator) GenerateSitemap(entries []SitemapEntry) ([]byte, error) {
	set := sitemapURLSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  make([]sitemapURL, 0, len(entries)),
	}

	for _, entry := range entries {
		u := sitemapURL{
			Loc:        entry.Loc,
			ChangeFreq: normalizeChangeFreq(entry.Loc, entry.ChangeFreq),
			Priority:   FormatPriority(ClampPriority(entry.Loc, entry.Priority)),
		}
		if !entry.LastMod.IsZero() {
			u.LastMod = entry.LastMod.UTC().Format(time.RFC3339)
		}
		set.URLs = append(set.URLs, u)
	}

	xmlData, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sitemap: %w", err)
	}

	slog.Debug("Generated sitemap", "urls", len(set.URLs))
	return append([]byte(xml.Header), xmlData...), nil
}

// ContentEntries turns content items into sitemap entries
func (g *Generator) ContentEntries(items []Item, kind, changeFreq string, priority float64) []SitemapEntry {
	entries := make([]SitemapEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, SitemapEntry{
			Loc:        g.ItemURL(kind, item),
			LastMod:    item.LastModified(),
			ChangeFreq: changeFreq,
			Priority:   priority,
		})
	}
	return entries
}

// ClampPriority keeps priority within [0.0, 1.0]. NaN becomes DefaultPriority.
func ClampPriority(loc string, p float64) float64 {
	switch {
	case math.IsNaN(p):
		slog.Warn("Invalid sitemap priority, using default", "loc", loc, "priority", p)
		return DefaultPriority
	case p < 0:
		slog.Warn("Sitemap priority below range, clamping", "loc", loc, "priority", p)
		return 0
	case p > 1:
		slog.Warn("Sitemap priority above range, clamping", "loc", loc, "priority", p)
		return 1
	}
	return p
}

// FormatPriority writes the shortest decimal form of p with at least one fraction digit
func FormatPriority(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func normalizeChangeFreq(loc, freq string) string {
	if freq == "" {
		return DefaultChangeFreq
	}
	if !validChangeFreqs[freq] {
		slog.Warn("Invalid sitemap changefreq, using default", "loc", loc, "changefreq", freq)
		return DefaultChangeFreq
	}
	return freq
}
