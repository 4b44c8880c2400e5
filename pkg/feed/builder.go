package feed

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/lepinkainen/insider-risk-index/pkg/urlutils"
)

// SitemapConfig lists what goes into the sitemap
type SitemapConfig struct {
	Pages      []SitemapEntry // static pages; Loc may be relative to the site URL
	Kinds      []string       // content kinds whose items are listed after the pages
	ChangeFreq string
	Priority   float64
}

// Document is a rendered feed ready to be served
type Document struct {
	FeedType FeedType
	Kind     string
	Body     []byte
	Fallback bool // true when Body is the empty fallback document
}

// ContentType returns the HTTP content type of the document
func (d Document) ContentType() string {
	return d.FeedType.ContentType()
}

// Builder fetches content and renders documents. Build never fails: any
// problem with the content source is logged and answered with a fallback
// document of the requested type.
type Builder struct {
	Generator *Generator
	Source    ContentSource
	Sitemap   SitemapConfig
	fallback  *Fallback
}

// NewBuilder creates a builder. templateOverride may be nil.
func NewBuilder(gen *Generator, source ContentSource, sitemap SitemapConfig, templateOverride fs.FS) *Builder {
	return &Builder{
		Generator: gen,
		Source:    source,
		Sitemap:   sitemap,
		fallback:  NewFallback(gen, templateOverride),
	}
}

// Build renders the feedType document for kind. An empty kind means the default kind.
func (b *Builder) Build(ctx context.Context, feedType FeedType, kind string) (doc Document) {
	if kind == "" {
		kind = b.Generator.Site.DefaultKind
	}
	doc = Document{FeedType: feedType, Kind: kind}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Feed generation panicked, serving fallback", "type", feedType, "kind", kind, "panic", r)
			doc.Body = b.fallback.Document(feedType, kind)
			doc.Fallback = true
		}
	}()

	var (
		body []byte
		err  error
	)
	if feedType == Sitemap {
		body, err = b.buildSitemap(ctx)
	} else {
		body, err = b.buildFeed(ctx, feedType, kind)
	}
	if err == nil {
		err = checkWellFormed(feedType, body)
	}

	if err != nil {
		slog.Error("Failed to build feed, serving fallback", "type", feedType, "kind", kind, "error", err)
		doc.Body = b.fallback.Document(feedType, kind)
		doc.Fallback = true
		return doc
	}

	doc.Body = body
	return doc
}

func (b *Builder) buildFeed(ctx context.Context, feedType FeedType, kind string) ([]byte, error) {
	items, err := b.fetch(ctx, kind)
	if err != nil {
		return nil, err
	}
	return b.Generator.Generate(items, kind, feedType)
}

func (b *Builder) buildSitemap(ctx context.Context) ([]byte, error) {
	entries, err := b.SitemapEntries(ctx)
	if err != nil {
		return nil, err
	}
	return b.Generator.GenerateSitemap(entries)
}

// SitemapEntries resolves the static pages and lists every content URL of the
// sitemap kinds. Unlike Build it returns the first error.
func (b *Builder) SitemapEntries(ctx context.Context) ([]SitemapEntry, error) {
	base := b.Generator.Site.BaseURL()
	entries := make([]SitemapEntry, 0, len(b.Sitemap.Pages))

	for _, page := range b.Sitemap.Pages {
		loc, err := urlutils.ResolveURL(base, page.Loc)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve sitemap page %q: %w", page.Loc, err)
		}
		page.Loc = loc
		entries = append(entries, page)
	}

	for _, kind := range b.Sitemap.Kinds {
		items, err := b.fetch(ctx, kind)
		if err != nil {
			return nil, err
		}
		entries = append(entries, b.Generator.ContentEntries(items, kind, b.Sitemap.ChangeFreq, b.Sitemap.Priority)...)
	}

	return entries, nil
}

// fetch makes the single upstream call for kind and checks what came back.
// Panics, errors, cancellation and malformed items all become UpstreamFetchError.
func (b *Builder) fetch(ctx context.Context, kind string) (items []Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = &UpstreamFetchError{Kind: kind, Err: fmt.Errorf("content source panicked: %v", r)}
		}
	}()

	if b.Source == nil {
		return nil, &UpstreamFetchError{Kind: kind, Err: fmt.Errorf("no content source configured")}
	}

	fetched, err := b.Source.ListContent(ctx, kind)
	if err != nil {
		return nil, &UpstreamFetchError{Kind: kind, Err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &UpstreamFetchError{Kind: kind, Err: ctxErr}
	}

	items = make([]Item, 0, len(fetched))
	for i, item := range fetched {
		if err := validateItem(item); err != nil {
			return nil, &UpstreamFetchError{Kind: kind, Err: fmt.Errorf("item %d: %w", i, err)}
		}
		if item.Kind == "" {
			item.Kind = kind
		}
		items = append(items, item)
	}

	slog.Debug("Fetched content", "kind", kind, "items", len(items))
	return items, nil
}

func validateItem(item Item) error {
	switch {
	case strings.TrimSpace(item.Title) == "":
		return fmt.Errorf("%w: missing title", ErrMalformedItem)
	case strings.TrimSpace(item.Slug) == "":
		return fmt.Errorf("%w: missing slug", ErrMalformedItem)
	case item.PublishedAt.IsZero():
		return fmt.Errorf("%w: %s has no publish date", ErrMalformedItem, item.Slug)
	}
	return nil
}
