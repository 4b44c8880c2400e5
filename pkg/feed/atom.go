package feed

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/gorilla/feeds"
)

// CustomAtomCategory represents a category in Atom feed
type CustomAtomCategory struct {
	XMLName xml.Name `xml:"category"`
	Term    string   `xml:"term,attr"`
	Label   string   `xml:"label,attr,omitempty"`
}

// CustomAtomEntry represents an entry in a custom Atom feed
type CustomAtomEntry struct {
	XMLName    xml.Name             `xml:"entry"`
	Title      string               `xml:"title"`
	Updated    string               `xml:"updated"`
	Id         string               `xml:"id"`
	Categories []CustomAtomCategory `xml:"category"`
	Content    *feeds.AtomContent   `xml:"content,omitempty"`
	Published  string               `xml:"published,omitempty"`
	Links      []feeds.AtomLink     `xml:"link"`
	Summary    *feeds.AtomSummary   `xml:"summary,omitempty"`
	Author     *feeds.AtomAuthor    `xml:"author,omitempty"`
}

// CustomAtomFeed represents a custom Atom feed with category and self link support
type CustomAtomFeed struct {
	XMLName   xml.Name           `xml:"feed"`
	Xmlns     string             `xml:"xmlns,attr"`
	Title     string             `xml:"title"`
	Id        string             `xml:"id"`
	Updated   string             `xml:"updated"`
	Links     []feeds.AtomLink   `xml:"link"`
	Author    *feeds.AtomAuthor  `xml:"author,omitempty"`
	Subtitle  string             `xml:"subtitle,omitempty"`
	Generator string             `xml:"generator,omitempty"`
	Entries   []*CustomAtomEntry `xml:"entry"`
}

// GenerateAtom renders an Atom 1.0 document with one category per item tag
func (g *Generator) GenerateAtom(items []Item, kind string) ([]byte, error) {
	now := g.now().UTC()
	base := &feeds.Feed{
		Title:       g.FeedTitle(kind),
		Link:        &feeds.Link{Href: g.Site.BaseURL() + "/", Rel: "alternate"},
		Description: g.Site.Description,
		Author:      &feeds.Author{Name: g.author()},
		Created:     now,
		Updated:     now,
	}

	for _, item := range items {
		link := g.ItemURL(kind, item)
		feedItem := &feeds.Item{
			Title:       item.Title,
			Link:        &feeds.Link{Href: link},
			Description: item.Description,
			Content:     item.Content,
			Created:     item.PublishedAt,
			Updated:     item.UpdatedAt,
			Id:          stableID(link),
		}
		if item.Author != "" {
			feedItem.Author = &feeds.Author{Name: item.Author}
		}
		base.Items = append(base.Items, feedItem)
	}

	customFeed := g.convertToCustomAtom(base, items, kind)

	xmlData, err := xml.MarshalIndent(customFeed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal custom atom feed: %w", err)
	}

	return append([]byte(xml.Header), xmlData...), nil
}

// convertToCustomAtom converts a standard Feed to a CustomAtomFeed. items must be index aligned with feed.Items.
func (g *Generator) convertToCustomAtom(feed *feeds.Feed, items []Item, kind string) *CustomAtomFeed {
	atom := &feeds.Atom{Feed: feed}
	standardAtomFeed := atom.AtomFeed()

	customFeed := &CustomAtomFeed{
		Xmlns:   "http://www.w3.org/2005/Atom",
		Title:   standardAtomFeed.Title,
		Id:      stableID(g.FeedURL(Atom, kind)),
		Updated: standardAtomFeed.Updated,
		Links: []feeds.AtomLink{
			{Href: feed.Link.Href, Rel: "alternate", Type: "text/html"},
			{Href: g.FeedURL(Atom, kind), Rel: "self", Type: "application/atom+xml"},
		},
		Author:    standardAtomFeed.Author,
		Subtitle:  standardAtomFeed.Subtitle,
		Generator: GeneratorName,
	}

	for i, entry := range standardAtomFeed.Entries {
		customEntry := &CustomAtomEntry{
			Title:     entry.Title,
			Updated:   entry.Updated,
			Id:        entry.Id,
			Content:   entry.Content,
			Published: items[i].PublishedAt.Format(time.RFC3339),
			Links:     entry.Links,
			Summary:   entry.Summary,
			Author:    entry.Author,
		}

		for _, tag := range items[i].Tags {
			customEntry.Categories = append(customEntry.Categories, CustomAtomCategory{
				Term:  tag,
				Label: tag,
			})
		}

		customFeed.Entries = append(customFeed.Entries, customEntry)
	}

	return customFeed
}
