package feed

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Item represents a content record that can appear in a feed
type Item struct {
	Kind        string // content collection, e.g. "articles" or "glossary"
	Slug        string
	Title       string
	Description string
	Content     string // rendered HTML body, optional
	Author      string
	Tags        []string
	PublishedAt time.Time
	UpdatedAt   time.Time
}

// LastModified returns UpdatedAt, or PublishedAt when the item was never updated
func (i Item) LastModified() time.Time {
	if i.UpdatedAt.After(i.PublishedAt) {
		return i.UpdatedAt
	}
	return i.PublishedAt
}

// ContentSource lists content records of a kind, newest first.
// It is the only upstream call a Builder makes per document.
type ContentSource interface {
	ListContent(ctx context.Context, kind string) ([]Item, error)
}

// ContentSourceFunc adapts a function to ContentSource
type ContentSourceFunc func(ctx context.Context, kind string) ([]Item, error)

// ListContent calls f
func (f ContentSourceFunc) ListContent(ctx context.Context, kind string) ([]Item, error) {
	return f(ctx, kind)
}

// SiteConfig holds the site-wide values every generated document needs
type SiteConfig struct {
	URL         string
	Title       string
	Description string
	Author      string
	Language    string
	DefaultKind string // kind served from /rss.xml, /atom.xml and /feed.json
}

// BaseURL returns the site URL without a trailing slash
func (s SiteConfig) BaseURL() string {
	return strings.TrimRight(s.URL, "/")
}

// FeedType represents the type of document to generate
type FeedType string

const (
	RSS      FeedType = "rss"
	Atom     FeedType = "atom"
	JSONFeed FeedType = "json"
	Sitemap  FeedType = "sitemap"
)

// FeedTypes lists every supported document type
var FeedTypes = []FeedType{RSS, Atom, JSONFeed, Sitemap}

// ContentType returns the HTTP content type for the document
func (t FeedType) ContentType() string {
	switch t {
	case RSS:
		return "application/rss+xml; charset=utf-8"
	case Atom:
		return "application/atom+xml; charset=utf-8"
	case JSONFeed:
		return "application/feed+json; charset=utf-8"
	case Sitemap:
		return "application/xml; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// Filename returns the conventional file name of the document
func (t FeedType) Filename() string {
	switch t {
	case RSS:
		return "rss.xml"
	case Atom:
		return "atom.xml"
	case JSONFeed:
		return "feed.json"
	case Sitemap:
		return "sitemap.xml"
	default:
		return string(t)
	}
}

// ParseFeedType converts a name such as "rss" into a FeedType
func ParseFeedType(s string) (FeedType, error) {
	for _, t := range FeedTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported feed type: %s", s)
}
