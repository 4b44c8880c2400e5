package feed

import (
	"encoding/json"
	"html"
	"text/template"
	"time"
)

// TemplateFuncs returns a map of template helper functions
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"xmlEscape":  xmlEscape,
		"jsonString": jsonString,
		"rfc3339":    formatTime,
		"rfc822":     formatRFC822,
		"truncate":   TruncateString,
	}
}

// xmlEscape escapes XML special characters while avoiding double-encoding
func xmlEscape(s string) string {
	// First unescape any existing HTML entities to avoid double-encoding
	s = html.UnescapeString(s)
	// Then apply proper HTML escaping
	return html.EscapeString(s)
}

// jsonString quotes s as a JSON string literal
func jsonString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

// formatTime formats time in RFC3339 format for Atom feeds
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// formatRFC822 formats time for RSS date fields
func formatRFC822(t time.Time) string {
	return t.UTC().Format(RFC822)
}
