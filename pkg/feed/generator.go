package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// GeneratorName is written into the generator fields of RSS and Atom
const GeneratorName = "insider-risk-index"

// Generator renders content items into feed documents
type Generator struct {
	Site SiteConfig
	now  func() time.Time
}

// NewGenerator creates a new feed generator
func NewGenerator(site SiteConfig) *Generator {
	return &Generator{
		Site: site,
		now:  time.Now,
	}
}

// WithClock replaces the clock used for lastBuildDate and updated
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate renders items of kind in the given feed type. Sitemaps are built with GenerateSitemap.
func (g *Generator) Generate(items []Item, kind string, feedType FeedType) ([]byte, error) {
	var (
		out []byte
		err error
	)

	switch feedType {
	case RSS:
		out, err = g.GenerateRSS(items, kind)
	case Atom:
		out, err = g.GenerateAtom(items, kind)
	case JSONFeed:
		out, err = g.GenerateJSONFeed(items, kind)
	default:
		return nil, fmt.Errorf("unsupported feed type: %s", feedType)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("Generated feed", "type", feedType, "kind", kind, "items", len(items))
	return out, nil
}

// ItemURL returns the public URL of an item
func (g *Generator) ItemURL(kind string, item Item) string {
	if item.Kind != "" {
		kind = item.Kind
	}
	return g.Site.BaseURL() + "/" + url.PathEscape(kind) + "/" + url.PathEscape(item.Slug)
}

// FeedURL returns the self link of a feed document
func (g *Generator) FeedURL(feedType FeedType, kind string) string {
	if feedType == Sitemap || g.isDefaultKind(kind) {
		return g.Site.BaseURL() + "/" + feedType.Filename()
	}
	return g.Site.BaseURL() + "/" + url.PathEscape(kind) + "/" + feedType.Filename()
}

// FeedTitle returns the channel title for kind
func (g *Generator) FeedTitle(kind string) string {
	if g.isDefaultKind(kind) {
		return g.Site.Title
	}
	first, size := utf8.DecodeRuneInString(kind)
	return g.Site.Title + " - " + string(unicode.ToUpper(first)) + kind[size:]
}

func (g *Generator) isDefaultKind(kind string) bool {
	return kind == "" || kind == g.Site.DefaultKind
}

func (g *Generator) author() string {
	if g.Site.Author != "" {
		return g.Site.Author
	}
	return g.Site.Title
}

// stableID derives a urn:uuid from a URL so repeated builds keep entry ids
func stableID(link string) string {
	return "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(link)).String()
}
