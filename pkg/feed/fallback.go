package feed

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
)

// Built-in documents served when even the fallback templates cannot render
const (
	staticFallbackRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Insider Risk Index</title>
    <link>https://insiderriskindex.com/</link>
    <description>Insider Risk Index</description>
  </channel>
</rss>
`
	staticFallbackAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Insider Risk Index</title>
  <id>https://insiderriskindex.com/</id>
  <updated>1970-01-01T00:00:00Z</updated>
  <author>
    <name>Insider Risk Index</name>
  </author>
</feed>
`
	staticFallbackJSON = `{
  "version": "https://jsonfeed.org/version/1.1",
  "title": "Insider Risk Index",
  "home_page_url": "https://insiderriskindex.com/",
  "items": []
}
`
	staticFallbackSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url>
    <loc>https://insiderriskindex.com/</loc>
    <changefreq>weekly</changefreq>
    <priority>1.0</priority>
  </url>
</urlset>
`
)

// StaticFallback returns the built-in empty document of a feed type
func StaticFallback(feedType FeedType) []byte {
	switch feedType {
	case Atom:
		return []byte(staticFallbackAtom)
	case JSONFeed:
		return []byte(staticFallbackJSON)
	case Sitemap:
		return []byte(staticFallbackSitemap)
	default:
		return []byte(staticFallbackRSS)
	}
}

func fallbackTemplateName(feedType FeedType) string {
	return "fallback-" + string(feedType)
}

// Fallback renders the empty documents served in place of a feed whose content could not be fetched
type Fallback struct {
	gen       *Generator
	templates *TemplateGenerator
}

// NewFallback loads the fallback templates. Templates in override replace the embedded ones.
func NewFallback(gen *Generator, override fs.FS) *Fallback {
	tg := NewTemplateGenerator(override)
	for _, feedType := range FeedTypes {
		if err := tg.LoadTemplate(fallbackTemplateName(feedType)); err != nil {
			slog.Error("Failed to load fallback template", "type", feedType, "error", err)
		}
	}

	return &Fallback{gen: gen, templates: tg}
}

// Document returns a schema-valid empty document. It never fails.
func (f *Fallback) Document(feedType FeedType, kind string) []byte {
	var buf bytes.Buffer
	err := f.templates.Execute(fallbackTemplateName(feedType), f.templateData(feedType, kind), &buf)
	if err == nil {
		err = checkWellFormed(feedType, buf.Bytes())
	}
	if err != nil {
		slog.Error("Failed to render fallback document, using built-in", "type", feedType, "kind", kind, "error", err)
		return StaticFallback(feedType)
	}
	return buf.Bytes()
}

func (f *Fallback) templateData(feedType FeedType, kind string) *TemplateData {
	site := f.gen.Site
	description := site.Description
	if description == "" {
		description = site.Title
	}

	return &TemplateData{
		Title:       f.gen.FeedTitle(kind),
		Link:        site.BaseURL() + "/",
		Description: description,
		Author:      f.gen.author(),
		Language:    site.Language,
		FeedURL:     f.gen.FeedURL(feedType, kind),
		ID:          stableID(f.gen.FeedURL(feedType, kind)),
		Generator:   GeneratorName,
		Updated:     f.gen.now(),
	}
}

// checkWellFormed rejects rendered documents that would not parse
func checkWellFormed(feedType FeedType, body []byte) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%s document is empty", feedType)
	}

	if feedType == JSONFeed {
		var doc struct {
			Version string            `json:"version"`
			Items   []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(body, &doc); err != nil {
			return fmt.Errorf("json feed is invalid: %w", err)
		}
		if doc.Version == "" || doc.Items == nil {
			return errors.New("json feed is missing version or items")
		}
		return nil
	}

	decoder := xml.NewDecoder(bytes.NewReader(body))
	for {
		if _, err := decoder.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%s document is not well-formed: %w", feedType, err)
		}
	}
}
