// Package config loads structured data files such as the static sitemap page list.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/insider-risk-index/configs"
	httputil "github.com/lepinkainen/insider-risk-index/pkg/http"
	"github.com/lepinkainen/insider-risk-index/pkg/feed"
)

// ErrNotLoaded is returned when no source yielded data and fallback is disabled
var ErrNotLoaded = errors.New("configuration not loaded from any source")

// LoaderConfig represents configuration loading options
type LoaderConfig struct {
	RemoteURL         string
	LocalPath         string
	Timeout           time.Duration
	MaxRetries        int
	FallbackToDefault bool
}

// DefaultLoaderConfig returns default loader configuration
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		Timeout:           10 * time.Second,
		MaxRetries:        3,
		FallbackToDefault: true,
	}
}

// DetectFormat returns "json" or "yaml" from the file extension, or from the content when the extension says nothing
func DetectFormat(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return "json"
	}
	return "yaml"
}

// LoadFromURLWithFallback loads target from the remote URL, then the local file.
// It reports whether any source was loaded. When neither works and
// FallbackToDefault is set, target is left untouched and no error is returned.
func LoadFromURLWithFallback(ctx context.Context, config *LoaderConfig, target any) (bool, error) {
	if config.RemoteURL != "" {
		err := loadFromURL(ctx, config, target)
		if err == nil {
			return true, nil
		}
		slog.Warn("Failed to load remote configuration", "url", config.RemoteURL, "error", err)
	}

	if config.LocalPath != "" {
		err := loadFromFile(config.LocalPath, target)
		if err == nil {
			return true, nil
		}
		slog.Warn("Failed to load local configuration", "path", config.LocalPath, "error", err)
	}

	if !config.FallbackToDefault {
		return false, ErrNotLoaded
	}

	return false, nil
}

// loadFromURL loads configuration from a remote URL using shared HTTP utilities
func loadFromURL(ctx context.Context, config *LoaderConfig, target any) error {
	httpConfig := httputil.DefaultConfig()
	httpConfig.Timeout = config.Timeout
	httpConfig.MaxRetries = config.MaxRetries
	httpConfig.RetryBackoff = 200 * time.Millisecond

	client := httputil.NewClient(httpConfig)
	resp, err := client.GetWithContext(ctx, config.RemoteURL)
	if err != nil {
		return fmt.Errorf("failed to fetch config from URL: %w", err)
	}

	if err := httputil.EnsureStatusOK(resp); err != nil {
		_, _ = httputil.ReadResponseBody(resp)
		return fmt.Errorf("HTTP error fetching config: %w", err)
	}

	data, err := httputil.ReadResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read config response: %w", err)
	}

	return decode(DetectFormat(resp.Request.URL.Path, data), data, target)
}

// loadFromFile loads configuration from a local file
func loadFromFile(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(DetectFormat(path, data), data, target)
}

func decode(format string, data []byte, target any) error {
	switch format {
	case "json":
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("failed to decode json configuration: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("failed to decode yaml configuration: %w", err)
		}
	}
	return nil
}

// pageEntry is a sitemap page as written in a pages file. Priority is a
// pointer so an omitted value can be told apart from an explicit 0.0.
type pageEntry struct {
	Loc        string    `yaml:"loc" json:"loc"`
	LastMod    time.Time `yaml:"lastmod" json:"lastmod"`
	ChangeFreq string    `yaml:"changefreq" json:"changefreq"`
	Priority   *float64  `yaml:"priority" json:"priority"`
}

func toSitemapEntries(pages []pageEntry) []feed.SitemapEntry {
	entries := make([]feed.SitemapEntry, 0, len(pages))
	for _, page := range pages {
		priority := feed.DefaultPriority
		if page.Priority != nil {
			priority = *page.Priority
		}
		entries = append(entries, feed.SitemapEntry{
			Loc:        page.Loc,
			LastMod:    page.LastMod,
			ChangeFreq: page.ChangeFreq,
			Priority:   priority,
		})
	}
	return entries
}

// LoadPages loads the static sitemap pages. The embedded configs/pages.yaml
// is used when neither the remote URL nor the local file can be loaded.
// Pages without a priority get feed.DefaultPriority.
func LoadPages(ctx context.Context, config *LoaderConfig) ([]feed.SitemapEntry, error) {
	var pages []pageEntry

	loaded, err := LoadFromURLWithFallback(ctx, config, &pages)
	if err != nil {
		return nil, err
	}
	if loaded {
		return toSitemapEntries(pages), nil
	}

	data, err := configs.EmbeddedConfigs.ReadFile(configs.PagesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded pages: %w", err)
	}
	if err := decode("yaml", data, &pages); err != nil {
		return nil, err
	}

	slog.Debug("Using embedded sitemap pages", "count", len(pages))
	return toSitemapEntries(pages), nil
}
