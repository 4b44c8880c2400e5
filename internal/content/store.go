package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lepinkainen/insider-risk-index/pkg/database"
	"github.com/lepinkainen/insider-risk-index/pkg/feed"
)

func init() {
	RegisterSource(&SourceInfo{
		Name:        "sqlite",
		Description: "Content records stored in a sqlite database",
		Factory: func(ctx context.Context, config SourceConfig) (Source, error) {
			return OpenStore(ctx, config.DBPath)
		},
	})
}

var storeSchema = []string{
	`CREATE TABLE IF NOT EXISTS content (
		kind TEXT NOT NULL,
		slug TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',   -- JSON array, order preserved
		published_at INTEGER NOT NULL,     -- unix nanoseconds
		updated_at INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (kind, slug)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_content_kind_published ON content(kind, published_at DESC)`,
}

// Store keeps content records in sqlite
type Store struct {
	db *database.Database
}

// OpenStore opens the database at path and prepares the schema
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := database.Open(ctx, database.DefaultConfig(path))
	if err != nil {
		return nil, err
	}

	store, err := NewStore(ctx, db)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
		return nil, err
	}
	return store, nil
}

// NewStore prepares the schema on an open database
func NewStore(ctx context.Context, db *database.Database) (*Store, error) {
	if err := db.Migrate(ctx, storeSchema...); err != nil {
		return nil, fmt.Errorf("failed to initialize content schema: %w", err)
	}
	slog.Debug("Content schema initialized", "path", db.Path())
	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database still answers
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Upsert inserts or replaces items, keyed by kind and slug
func (s *Store) Upsert(ctx context.Context, items ...feed.Item) error {
	for i, item := range items {
		if strings.TrimSpace(item.Kind) == "" || strings.TrimSpace(item.Slug) == "" || strings.TrimSpace(item.Title) == "" {
			return fmt.Errorf("%w: item %d needs kind, slug and title", feed.ErrMalformedItem, i)
		}
		if item.PublishedAt.IsZero() {
			return fmt.Errorf("%w: %s/%s has no publish date", feed.ErrMalformedItem, item.Kind, item.Slug)
		}
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO content (kind, slug, title, description, body, author, tags, published_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(kind, slug) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				body = excluded.body,
				author = excluded.author,
				tags = excluded.tags,
				published_at = excluded.published_at,
				updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("failed to prepare content upsert: %w", err)
		}
		defer func() {
			if closeErr := stmt.Close(); closeErr != nil {
				slog.Error("Failed to close statement", "error", closeErr)
			}
		}()

		for _, item := range items {
			tags, err := json.Marshal(nonNilTags(item.Tags))
			if err != nil {
				return fmt.Errorf("failed to encode tags for %s/%s: %w", item.Kind, item.Slug, err)
			}
			if _, err := stmt.ExecContext(ctx,
				item.Kind, item.Slug, item.Title, item.Description, item.Content, item.Author,
				string(tags), item.PublishedAt.UnixNano(), unixNano(item.UpdatedAt),
			); err != nil {
				return fmt.Errorf("failed to upsert %s/%s: %w", item.Kind, item.Slug, err)
			}
			slog.Debug("Stored content item", "kind", item.Kind, "slug", item.Slug)
		}
		return nil
	})
}

// Delete removes one item
func (s *Store) Delete(ctx context.Context, kind, slug string) error {
	if _, err := s.db.DB().ExecContext(ctx, `DELETE FROM content WHERE kind = ? AND slug = ?`, kind, slug); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", kind, slug, err)
	}
	return nil
}

// ListContent returns the items of kind, newest first
func (s *Store) ListContent(ctx context.Context, kind string) ([]feed.Item, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT kind, slug, title, description, body, author, tags, published_at, updated_at
		FROM content
		WHERE kind = ?
		ORDER BY published_at DESC, slug ASC`, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s content: %w", kind, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Error("Failed to close rows", "error", closeErr)
		}
	}()

	items := []feed.Item{}
	for rows.Next() {
		var (
			item                 feed.Item
			tags                 string
			published, updatedAt int64
		)
		if err := rows.Scan(&item.Kind, &item.Slug, &item.Title, &item.Description, &item.Content,
			&item.Author, &tags, &published, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags of %s/%s: %w", item.Kind, item.Slug, err)
		}
		if len(item.Tags) == 0 {
			item.Tags = nil
		}
		item.PublishedAt = time.Unix(0, published).UTC()
		if updatedAt != 0 {
			item.UpdatedAt = time.Unix(0, updatedAt).UTC()
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s content: %w", kind, err)
	}

	return items, nil
}

// Kinds returns the kinds that have at least one item
func (s *Store) Kinds(ctx context.Context) ([]string, error) {
	rows, err := s.db.DB().QueryContext(ctx, `SELECT DISTINCT kind FROM content ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to query content kinds: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Error("Failed to close rows", "error", closeErr)
		}
	}()

	var kinds []string
	for rows.Next() {
		var kind string
		if err := rows.Scan(&kind); err != nil {
			return nil, fmt.Errorf("failed to scan content kind: %w", err)
		}
		kinds = append(kinds, kind)
	}
	return kinds, rows.Err()
}

// Import copies every item of kinds from src into the store
func (s *Store) Import(ctx context.Context, src feed.ContentSource, kinds []string) (int, error) {
	total := 0
	for _, kind := range kinds {
		items, err := src.ListContent(ctx, kind)
		if err != nil {
			return total, fmt.Errorf("failed to list %s content: %w", kind, err)
		}
		for i := range items {
			if items[i].Kind == "" {
				items[i].Kind = kind
			}
		}
		if err := s.Upsert(ctx, items...); err != nil {
			return total, err
		}
		total += len(items)
		slog.Info("Imported content", "kind", kind, "items", len(items))
	}
	return total, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
