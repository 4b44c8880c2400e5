// Package urlutils resolves site-relative links into absolute URLs.
package urlutils

import (
	"fmt"
	"net/url"
	"strings"
)

// IsValidURL checks if a URL is an absolute http(s) URL with a host
func IsValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ResolveURL resolves a relative URL against the site URL.
// If the URL is already absolute, it returns it unchanged.
// The site URL is treated as a directory even without a trailing slash.
func ResolveURL(siteURL, relativeURL string) (string, error) {
	rel, err := url.Parse(strings.TrimSpace(relativeURL))
	if err != nil {
		return "", fmt.Errorf("failed to parse url %q: %w", relativeURL, err)
	}

	if rel.IsAbs() {
		return rel.String(), nil
	}

	if !IsValidURL(siteURL) {
		return "", fmt.Errorf("site url %q is not absolute", siteURL)
	}
	base, err := url.Parse(siteURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse site url %q: %w", siteURL, err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	return base.ResolveReference(rel).String(), nil
}

// Host returns the host of an absolute URL, including any port
func Host(rawURL string) (string, error) {
	if !IsValidURL(rawURL) {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse url %q: %w", rawURL, err)
	}
	return u.Host, nil
}
