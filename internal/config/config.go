// Package config loads the insider-risk-index settings with viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/insider-risk-index/pkg/feed"
	"github.com/lepinkainen/insider-risk-index/pkg/filesystem"
	"github.com/lepinkainen/insider-risk-index/pkg/urlutils"
)

// EnvPrefix prefixes environment overrides, e.g. IRI_SITE_URL
const EnvPrefix = "IRI"

// Content source names
const (
	SourceSQLite   = "sqlite"
	SourceMarkdown = "markdown"
)

// Config holds the central application configuration
type Config struct {
	Site struct {
		URL         string `mapstructure:"url"`
		Title       string `mapstructure:"title"`
		Description string `mapstructure:"description"`
		Author      string `mapstructure:"author"`
		Language    string `mapstructure:"language"`
		DefaultKind string `mapstructure:"default_kind"` // served from /rss.xml, /atom.xml and /feed.json
	} `mapstructure:"site"`

	Content struct {
		Source       string   `mapstructure:"source"`  // sqlite or markdown
		DBPath       string   `mapstructure:"db_path"` // sqlite content store
		Dir          string   `mapstructure:"dir"`     // markdown content root, one subdirectory per kind
		Kinds        []string `mapstructure:"kinds"`
		SitemapKinds []string `mapstructure:"sitemap_kinds"`
	} `mapstructure:"content"`

	Sitemap struct {
		PagesFile  string  `mapstructure:"pages_file"` // overrides the embedded static page list
		PagesURL   string  `mapstructure:"pages_url"`
		ChangeFreq string  `mapstructure:"changefreq"` // for content items
		Priority   float64 `mapstructure:"priority"`   // for content items
	} `mapstructure:"sitemap"`

	Server struct {
		Addr         string        `mapstructure:"addr"`
		FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
		TemplateDir  string        `mapstructure:"template_dir"`     // fallback template overrides
		ShareLimit   int           `mapstructure:"share_rate_limit"` // share link creations per client per minute
		TrustProxy   bool          `mapstructure:"trust_proxy"`      // take client addresses from X-Forwarded-For
	} `mapstructure:"server"`

	IndexNow struct {
		Key       string        `mapstructure:"key"`
		Endpoint  string        `mapstructure:"endpoint"`
		TTL       time.Duration `mapstructure:"ttl"` // how long a submitted URL is not resubmitted
		BatchSize int           `mapstructure:"batch_size"`
		CacheDB   string        `mapstructure:"cache_db"`
	} `mapstructure:"indexnow"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.url", "https://insiderriskindex.com")
	v.SetDefault("site.title", "Insider Risk Index")
	v.SetDefault("site.description", "Research, guides and benchmarks for insider risk programs")
	v.SetDefault("site.author", "Insider Risk Index")
	v.SetDefault("site.language", "en")
	v.SetDefault("site.default_kind", "articles")

	v.SetDefault("content.source", SourceSQLite)
	v.SetDefault("content.db_path", "content.db")
	v.SetDefault("content.dir", "content")
	v.SetDefault("content.kinds", []string{"articles", "glossary", "research"})
	v.SetDefault("content.sitemap_kinds", []string{"articles", "glossary", "research"})

	v.SetDefault("sitemap.pages_file", "")
	v.SetDefault("sitemap.pages_url", "")
	v.SetDefault("sitemap.changefreq", feed.DefaultChangeFreq)
	v.SetDefault("sitemap.priority", 0.7)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.fetch_timeout", 5*time.Second)
	v.SetDefault("server.template_dir", "templates")
	v.SetDefault("server.share_rate_limit", 30)
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("indexnow.key", "")
	v.SetDefault("indexnow.endpoint", "https://api.indexnow.org/indexnow")
	v.SetDefault("indexnow.ttl", 7*24*time.Hour)
	v.SetDefault("indexnow.batch_size", 10000)
	v.SetDefault("indexnow.cache_db", "indexnow.db")
}

// LoadConfig loads the configuration from a file. A missing file is not an
// error; defaults and IRI_* environment variables still apply.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}
	path = filesystem.ResolvePath(path)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that would otherwise only fail at request time
func (c *Config) Validate() error {
	if !urlutils.IsValidURL(c.Site.URL) {
		return fmt.Errorf("site.url must be an absolute http(s) URL, got %q", c.Site.URL)
	}
	if c.Site.Title == "" {
		return errors.New("site.title is required")
	}

	switch c.Content.Source {
	case SourceSQLite, SourceMarkdown:
	default:
		return fmt.Errorf("content.source must be %q or %q, got %q", SourceSQLite, SourceMarkdown, c.Content.Source)
	}

	if c.Site.DefaultKind != "" && !slices.Contains(c.Content.Kinds, c.Site.DefaultKind) {
		return fmt.Errorf("site.default_kind %q is not listed in content.kinds", c.Site.DefaultKind)
	}
	for _, kind := range c.Content.Kinds {
		if kind == "" || strings.ContainsAny(kind, "/.") {
			return fmt.Errorf("invalid content kind %q", kind)
		}
	}

	if c.Server.ShareLimit < 0 {
		return fmt.Errorf("server.share_rate_limit must not be negative, got %d", c.Server.ShareLimit)
	}
	if c.Server.FetchTimeout <= 0 {
		return fmt.Errorf("server.fetch_timeout must be positive, got %s", c.Server.FetchTimeout)
	}

	return nil
}

// SiteConfig returns the site settings used by the feed generator
func (c *Config) SiteConfig() feed.SiteConfig {
	return feed.SiteConfig{
		URL:         c.Site.URL,
		Title:       c.Site.Title,
		Description: c.Site.Description,
		Author:      c.Site.Author,
		Language:    c.Site.Language,
		DefaultKind: c.Site.DefaultKind,
	}
}

// SitemapConfig combines the static pages with the configured content kinds
func (c *Config) SitemapConfig(pages []feed.SitemapEntry) feed.SitemapConfig {
	return feed.SitemapConfig{
		Pages:      pages,
		Kinds:      c.Content.SitemapKinds,
		ChangeFreq: c.Sitemap.ChangeFreq,
		Priority:   c.Sitemap.Priority,
	}
}

// HasKind reports whether kind is a configured content kind
func (c *Config) HasKind(kind string) bool {
	return slices.Contains(c.Content.Kinds, kind)
}
