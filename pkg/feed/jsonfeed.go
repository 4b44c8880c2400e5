package feed

import (
	"encoding/json"
	"fmt"
	"time"
)

// JSONFeedVersion is the version URL of the JSON Feed spec we emit
const JSONFeedVersion = "https://jsonfeed.org/version/1.1"

// summaryLength caps the plain-text summary of JSON Feed items
const summaryLength = 300

// JSONFeedDocument is a JSON Feed 1.1 document. Items is always an array.
type JSONFeedDocument struct {
	Version     string           `json:"version"`
	Title       string           `json:"title"`
	HomePageURL string           `json:"home_page_url"`
	FeedURL     string           `json:"feed_url,omitempty"`
	Description string           `json:"description,omitempty"`
	Language    string           `json:"language,omitempty"`
	Authors     []JSONFeedAuthor `json:"authors,omitempty"`
	Items       []JSONFeedItem   `json:"items"`
}

// JSONFeedAuthor is an author object
type JSONFeedAuthor struct {
	Name string `json:"name"`
}

// JSONFeedItem is one entry of a JSON Feed. Either ContentHTML or ContentText is set.
type JSONFeedItem struct {
	ID            string           `json:"id"`
	URL           string           `json:"url"`
	Title         string           `json:"title"`
	ContentHTML   string           `json:"content_html,omitempty"`
	ContentText   string           `json:"content_text,omitempty"`
	Summary       string           `json:"summary,omitempty"`
	DatePublished string           `json:"date_published"`
	DateModified  string           `json:"date_modified,omitempty"`
	Authors       []JSONFeedAuthor `json:"authors,omitempty"`
	Tags          []string         `json:"tags,omitempty"`
}

// BuildJSONFeed projects items into a JSON Feed document
func (g *Generator) BuildJSONFeed(items []Item, kind string) *JSONFeedDocument {
	doc := &JSONFeedDocument{
		Version:     JSONFeedVersion,
		Title:       g.FeedTitle(kind),
		HomePageURL: g.Site.BaseURL() + "/",
		FeedURL:     g.FeedURL(JSONFeed, kind),
		Description: g.Site.Description,
		Language:    g.Site.Language,
		Authors:     []JSONFeedAuthor{{Name: g.author()}},
		Items:       make([]JSONFeedItem, 0, len(items)),
	}

	for _, item := range items {
		link := g.ItemURL(kind, item)
		summary := TruncateString(PlainText(item.Description), summaryLength)

		entry := JSONFeedItem{
			ID:            link,
			URL:           link,
			Title:         item.Title,
			Summary:       summary,
			DatePublished: item.PublishedAt.Format(time.RFC3339),
			Tags:          item.Tags,
		}
		if item.Content != "" {
			entry.ContentHTML = item.Content
		} else {
			entry.ContentText = PlainText(item.Description)
			if entry.ContentText == "" {
				entry.ContentText = item.Title
			}
		}
		if item.UpdatedAt.After(item.PublishedAt) {
			entry.DateModified = item.UpdatedAt.Format(time.RFC3339)
		}
		if item.Author != "" {
			entry.Authors = []JSONFeedAuthor{{Name: item.Author}}
		}

		doc.Items = append(doc.Items, entry)
	}

	return doc
}

// GenerateJSONFeed renders a JSON Feed 1.1 document
func (g *Generator) GenerateJSONFeed(items []Item, kind string) ([]byte, error) {
	data, err := json.MarshalIndent(g.BuildJSONFeed(items, kind), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json feed: %w", err)
	}
	return append(data, '\n'), nil
}
