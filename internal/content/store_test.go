package content

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/lepinkainen/insider-risk-index/pkg/database"
	"github.com/lepinkainen/insider-risk-index/pkg/feed"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(context.Background(), database.MemoryPath)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func storeItems() []feed.Item {
	return []feed.Item{
		{
			Kind:        "articles",
			Slug:        "older",
			Title:       "Older Article",
			Description: "First post",
			Content:     "<p>Body</p>",
			Author:      "Research Team",
			Tags:        []string{"dlp", "ueba"},
			PublishedAt: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			Kind:        "articles",
			Slug:        "newer",
			Title:       "Newer Article",
			PublishedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("EET", 2*3600)),
			UpdatedAt:   time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
		},
		{
			Kind:        "glossary",
			Slug:        "dlp",
			Title:       "Data Loss Prevention",
			PublishedAt: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.Upsert(ctx, storeItems()...); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := store.ListContent(ctx, "articles")
	if err != nil {
		t.Fatalf("ListContent() error = %v", err)
	}

	want := []feed.Item{
		{
			Kind:        "articles",
			Slug:        "newer",
			Title:       "Newer Article",
			PublishedAt: time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
		},
		storeItems()[0],
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListContent() mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	item := storeItems()[2]
	if err := store.Upsert(ctx, item); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	item.Title = "DLP"
	if err := store.Upsert(ctx, item); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := store.ListContent(ctx, "glossary")
	if err != nil {
		t.Fatalf("ListContent() error = %v", err)
	}
	if len(got) != 1 || got[0].Title != "DLP" {
		t.Errorf("expected one replaced item, got %+v", got)
	}
}

func TestStoreUpsertRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		item feed.Item
	}{
		{"no kind", feed.Item{Slug: "a", Title: "A", PublishedAt: time.Now()}},
		{"no slug", feed.Item{Kind: "articles", Title: "A", PublishedAt: time.Now()}},
		{"no title", feed.Item{Kind: "articles", Slug: "a", PublishedAt: time.Now()}},
		{"no date", feed.Item{Kind: "articles", Slug: "a", Title: "A"}},
	}

	store := openTestStore(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Upsert(context.Background(), tt.item)
			if !errors.Is(err, feed.ErrMalformedItem) {
				t.Errorf("Upsert() error = %v, want ErrMalformedItem", err)
			}
		})
	}

	items, err := store.ListContent(context.Background(), "articles")
	if err != nil {
		t.Fatalf("ListContent() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("malformed items were stored: %+v", items)
	}
}

func TestStoreEmptyKind(t *testing.T) {
	store := openTestStore(t)

	items, err := store.ListContent(context.Background(), "research")
	if err != nil {
		t.Fatalf("ListContent() error = %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", items)
	}
}

func TestStoreDeleteAndKinds(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.Upsert(ctx, storeItems()...); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	kinds, err := store.Kinds(ctx)
	if err != nil {
		t.Fatalf("Kinds() error = %v", err)
	}
	if diff := cmp.Diff([]string{"articles", "glossary"}, kinds); diff != "" {
		t.Errorf("Kinds() mismatch (-want +got):\n%s", diff)
	}

	if err := store.Delete(ctx, "glossary", "dlp"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	kinds, err = store.Kinds(ctx)
	if err != nil {
		t.Fatalf("Kinds() error = %v", err)
	}
	if diff := cmp.Diff([]string{"articles"}, kinds); diff != "" {
		t.Errorf("Kinds() after delete mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreImport(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	src := feed.ContentSourceFunc(func(_ context.Context, kind string) ([]feed.Item, error) {
		if kind != "glossary" {
			return nil, nil
		}
		return []feed.Item{{Slug: "ueba", Title: "UEBA", PublishedAt: time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)}}, nil
	})

	n, err := store.Import(ctx, src, []string{"articles", "glossary"})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Import() = %d, want 1", n)
	}

	items, err := store.ListContent(ctx, "glossary")
	if err != nil {
		t.Fatalf("ListContent() error = %v", err)
	}
	if len(items) != 1 || items[0].Kind != "glossary" || items[0].Slug != "ueba" {
		t.Errorf("imported items = %+v", items)
	}
}

func TestStorePersistsOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "content.db")

	store, err := OpenStore(ctx, path)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if err := store.Upsert(ctx, storeItems()[2]); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenStore(ctx, path)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer reopened.Close()

	items, err := reopened.ListContent(ctx, "glossary")
	if err != nil {
		t.Fatalf("ListContent() error = %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected persisted item, got %d", len(items))
	}
}

func TestStorePing(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, database.MemoryPath)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}

	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := store.Ping(ctx); err == nil {
		t.Error("Ping() on a closed store should fail")
	}
}
