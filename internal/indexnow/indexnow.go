// Package indexnow notifies search engines about changed URLs through the
// IndexNow protocol. Submitted URLs are remembered in a sqlite cache so a
// URL is only resent after its TTL expires.
package indexnow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/lepinkainen/insider-risk-index/pkg/database"
	httputil "github.com/lepinkainen/insider-risk-index/pkg/http"
	"github.com/lepinkainen/insider-risk-index/pkg/urlutils"
)

// CacheTable is the cache table that records submitted URLs
const CacheTable = "indexnow_submissions"

// MaxBatchSize is the largest urlList the protocol accepts
const MaxBatchSize = 10000

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9-]{8,128}$`)

// ErrInvalidKey is returned for keys the protocol would reject
var ErrInvalidKey = errors.New("indexnow key must be 8-128 characters of a-z, A-Z, 0-9 or -")

// Config holds the submission settings
type Config struct {
	Key       string
	Endpoint  string
	SiteURL   string
	TTL       time.Duration
	BatchSize int
}

// Request is the JSON body posted to the endpoint
type Request struct {
	Host        string   `json:"host"`
	Key         string   `json:"key"`
	KeyLocation string   `json:"keyLocation"`
	URLList     []string `json:"urlList"`
}

// Result summarises one Submit call
type Result struct {
	Submitted int
	Skipped   int // already submitted within the TTL
	Rejected  int // not on the site's host
}

// Client submits URLs for one site
type Client struct {
	config Config
	host   string
	http   *httputil.Client
	cache  *database.Cache
}

// ValidKey reports whether key is acceptable as an IndexNow key
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// NewClient validates config. cache may be nil, in which case every URL is
// submitted on every call.
func NewClient(config Config, httpClient *httputil.Client, cache *database.Cache) (*Client, error) {
	if !ValidKey(config.Key) {
		return nil, ErrInvalidKey
	}
	if !urlutils.IsValidURL(config.Endpoint) {
		return nil, fmt.Errorf("invalid indexnow endpoint %q", config.Endpoint)
	}
	host, err := urlutils.Host(config.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse site URL: %w", err)
	}
	if config.BatchSize <= 0 || config.BatchSize > MaxBatchSize {
		config.BatchSize = MaxBatchSize
	}
	if httpClient == nil {
		httpClient = httputil.NewClient(nil)
	}

	return &Client{
		config: config,
		host:   host,
		http:   httpClient,
		cache:  cache,
	}, nil
}

// KeyLocation is the URL where the key file is served
func (c *Client) KeyLocation() string {
	return strings.TrimRight(c.config.SiteURL, "/") + "/" + c.config.Key + ".txt"
}

// Submit posts every URL on the site's host that was not submitted within the
// TTL. URLs are recorded only after the endpoint accepted their batch.
func (c *Client) Submit(ctx context.Context, urls []string) (Result, error) {
	var result Result

	pending := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true

		host, err := urlutils.Host(u)
		if err != nil || !strings.EqualFold(host, c.host) {
			slog.Warn("Skipping URL outside site host", "url", u, "host", c.host)
			result.Rejected++
			continue
		}

		if c.cache != nil {
			submitted, err := c.cache.Has(ctx, u)
			if err != nil {
				return result, fmt.Errorf("failed to check submission cache: %w", err)
			}
			if submitted {
				result.Skipped++
				continue
			}
		}
		pending = append(pending, u)
	}

	for start := 0; start < len(pending); start += c.config.BatchSize {
		end := min(start+c.config.BatchSize, len(pending))
		batch := pending[start:end]

		if err := c.post(ctx, batch); err != nil {
			return result, err
		}

		if c.cache != nil {
			stamp := time.Now().UTC().Format(time.RFC3339)
			values := make(map[string]string, len(batch))
			for _, u := range batch {
				values[u] = stamp
			}
			if err := c.cache.SetMany(ctx, values, c.config.TTL); err != nil {
				return result, fmt.Errorf("failed to record submitted URLs: %w", err)
			}
		}
		result.Submitted += len(batch)
	}

	slog.Info("IndexNow submission finished",
		"submitted", result.Submitted, "skipped", result.Skipped, "rejected", result.Rejected)
	return result, nil
}

func (c *Client) post(ctx context.Context, urls []string) error {
	payload := Request{
		Host:        c.host,
		Key:         c.config.Key,
		KeyLocation: c.KeyLocation(),
		URLList:     urls,
	}

	slog.Debug("Submitting URLs to IndexNow", "endpoint", c.config.Endpoint, "count", len(urls))
	resp, err := c.http.PostJSON(ctx, c.config.Endpoint, payload)
	if err != nil {
		return fmt.Errorf("failed to submit URLs: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Error("Failed to close response body", "error", closeErr)
		}
	}()

	if err := httputil.CheckStatusCode(resp, http.StatusOK, http.StatusAccepted); err != nil {
		return fmt.Errorf("indexnow rejected submission: %w", err)
	}
	return nil
}

// OpenCache opens the submission cache in the sqlite database at path.
// Closing the cache closes the database.
func OpenCache(ctx context.Context, path string) (*database.Cache, error) {
	db, err := database.Open(ctx, database.DefaultConfig(path))
	if err != nil {
		return nil, err
	}

	cache, err := database.NewCache(db, CacheTable)
	if err == nil {
		err = cache.Initialize(ctx)
	}
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize submission cache: %w", err)
	}
	return cache, nil
}
