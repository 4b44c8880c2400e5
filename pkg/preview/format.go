// Package preview browses content items in a terminal UI before they are published.
package preview

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lepinkainen/insider-risk-index/pkg/feed"
)

const (
	maxTitleLength   = 70
	maxContentLength = 1000
	wrapWidth        = 70
	rule             = "═══════════════════════════════════════════════════════════════════════\n"
)

var itemPattern = regexp.MustCompile(`(?m)^([ \t]*)<item>(?s:.*?)</item>`)

// wrapText wraps text to the specified width, breaking at word boundaries when possible
func wrapText(text string, width int) string {
	if width <= 0 {
		width = wrapWidth
	}

	var result strings.Builder
	lineLen := 0

	for _, word := range strings.Fields(text) {
		wordLen := len([]rune(word))

		if lineLen > 0 && lineLen+1+wordLen > width {
			result.WriteString("\n")
			lineLen = 0
		}
		if lineLen > 0 {
			result.WriteString(" ")
			lineLen++
		}

		result.WriteString(word)
		lineLen += wordLen
	}

	return result.String()
}

// FormatCompactListItem formats one item as a list row
// Example: " 1. 2024-03-15  [articles] Insider Threat Basics"
func FormatCompactListItem(index int, item feed.Item) string {
	title := feed.TruncateString(item.Title, maxTitleLength)
	return fmt.Sprintf("%2d. %s  [%s] %s", index+1, item.PublishedAt.UTC().Format(time.DateOnly), item.Kind, title)
}

// FormatDetailedItem formats an item with all its metadata. now is used for
// the relative publish time.
func FormatDetailedItem(gen *feed.Generator, item feed.Item, now time.Time) string {
	var b strings.Builder

	b.WriteString(rule)
	fmt.Fprintf(&b, "Title: %s\n", item.Title)
	fmt.Fprintf(&b, "Link: %s\n", gen.ItemURL(item.Kind, item))

	if item.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", item.Author)
	}

	fmt.Fprintf(&b, "Published: %s (%s)\n", item.PublishedAt.UTC().Format(time.DateOnly), formatTimeAgo(item.PublishedAt, now))
	if item.UpdatedAt.After(item.PublishedAt) {
		fmt.Fprintf(&b, "Updated: %s\n", item.UpdatedAt.UTC().Format(time.DateOnly))
	}

	if len(item.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(item.Tags, ", "))
	}

	if description := feed.PlainText(item.Description); description != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", wrapText(description, wrapWidth))
	}

	if content := feed.PlainText(item.Content); content != "" {
		content = feed.TruncateString(content, maxContentLength)
		fmt.Fprintf(&b, "\nContent:\n%s\n", wrapText(content, wrapWidth))
	}

	b.WriteString(rule)

	return b.String()
}

// FormatXMLItem renders item through the RSS generator and returns its <item> element
func FormatXMLItem(gen *feed.Generator, item feed.Item) string {
	out, err := gen.GenerateRSS([]feed.Item{item}, item.Kind)
	if err != nil {
		return fmt.Sprintf("Error generating feed: %s", err)
	}

	match := itemPattern.FindSubmatch(out)
	if match == nil {
		return "No item found in generated feed"
	}

	indent := string(match[1])
	lines := strings.Split(string(match[0]), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, indent)
	}

	return strings.Join(lines, "\n") + "\n"
}

// formatTimeAgo formats t relative to now as a human-readable "X ago" string
func formatTimeAgo(t, now time.Time) string {
	duration := now.Sub(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return plural(int(duration.Minutes()), "minute")
	case duration < 24*time.Hour:
		return plural(int(duration.Hours()), "hour")
	case duration < 30*24*time.Hour:
		return plural(int(duration.Hours()/24), "day")
	default:
		return plural(int(duration.Hours()/(24*30)), "month")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
