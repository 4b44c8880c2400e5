package feed

import (
	"encoding/xml"
	"fmt"
	"time"
)

type rssDocument struct {
	XMLName   xml.Name   `xml:"rss"`
	Version   string     `xml:"version,attr"`
	ContentNS string     `xml:"xmlns:content,attr"`
	DCNS      string     `xml:"xmlns:dc,attr"`
	AtomNS    string     `xml:"xmlns:atom,attr"`
	Channel   rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string      `xml:"title"`
	Link          string      `xml:"link"`
	Description   string      `xml:"description"`
	Language      string      `xml:"language,omitempty"`
	Generator     string      `xml:"generator"`
	LastBuildDate string      `xml:"lastBuildDate"`
	SelfLink      rssAtomLink `xml:"atom:link"`
	Items         []rssItem   `xml:"item"`
}

type rssAtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string      `xml:"title"`
	Link        string      `xml:"link"`
	Description string      `xml:"description"`
	Content     *rssContent `xml:"content:encoded,omitempty"`
	Creator     string      `xml:"dc:creator,omitempty"`
	Categories  []string    `xml:"category"`
	GUID        rssGUID     `xml:"guid"`
	PubDate     string      `xml:"pubDate"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink string `xml:"isPermaLink,attr"`
}

type rssContent struct {
	Value string `xml:",cdata"`
}

// RFC822 is the RSS date layout (RFC 822 with a four digit year)
const RFC822 = time.RFC1123Z

// GenerateRSS renders an RSS 2.0 document
func (g *Generator) GenerateRSS(items []Item, kind string) ([]byte, error) {
	doc := rssDocument{
		Version:   "2.0",
		ContentNS: "http://purl.org/rss/1.0/modules/content/",
		DCNS:      "http://purl.org/dc/elements/1.1/",
		AtomNS:    "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:         g.FeedTitle(kind),
			Link:          g.Site.BaseURL() + "/",
			Description:   g.Site.Description,
			Language:      g.Site.Language,
			Generator:     GeneratorName,
			LastBuildDate: g.now().UTC().Format(RFC822),
			SelfLink: rssAtomLink{
				Href: g.FeedURL(RSS, kind),
				Rel:  "self",
				Type: "application/rss+xml",
			},
		},
	}

	for _, item := range items {
		link := g.ItemURL(kind, item)
		entry := rssItem{
			Title:       item.Title,
			Link:        link,
			Description: item.Description,
			Creator:     item.Author,
			Categories:  item.Tags,
			GUID:        rssGUID{Value: link, IsPermaLink: "true"},
			PubDate:     item.PublishedAt.UTC().Format(RFC822),
		}
		if item.Content != "" {
			entry.Content = &rssContent{Value: XMLSafe(item.Content)}
		}
		doc.Channel.Items = append(doc.Channel.Items, entry)
	}

	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rss feed: %w", err)
	}

	return append([]byte(xml.Header), xmlData...), nil
}
