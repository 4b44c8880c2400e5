package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/insider-risk-index/pkg/feed"
)

func init() {
	RegisterSource(&SourceInfo{
		Name:        "markdown",
		Description: "Markdown files with YAML front matter, one directory per kind",
		Factory: func(_ context.Context, config SourceConfig) (Source, error) {
			info, err := os.Stat(config.Dir)
			if err != nil {
				return nil, fmt.Errorf("failed to open content directory: %w", err)
			}
			if !info.IsDir() {
				return nil, fmt.Errorf("content path %s is not a directory", config.Dir)
			}
			return NewMarkdownSource(os.DirFS(config.Dir)), nil
		},
	})
}

// descriptionLength caps descriptions derived from the body
const descriptionLength = 200

// ErrNoFrontMatter is returned for markdown files that do not start with a --- block
var ErrNoFrontMatter = errors.New("missing front matter")

// frontMatter is the YAML header of a content file
type frontMatter struct {
	Title       string    `yaml:"title"`
	Slug        string    `yaml:"slug"`
	Description string    `yaml:"description"`
	Author      string    `yaml:"author"`
	Tags        []string  `yaml:"tags"`
	Date        time.Time `yaml:"date"`
	Updated     time.Time `yaml:"updated"`
	Draft       bool      `yaml:"draft"`
}

// MarkdownSource reads <kind>/*.md files. Each file is parsed on every
// call, so edits show up without a restart.
type MarkdownSource struct {
	fsys fs.FS
	md   goldmark.Markdown
}

// NewMarkdownSource creates a source over fsys
func NewMarkdownSource(fsys fs.FS) *MarkdownSource {
	return &MarkdownSource{
		fsys: fsys,
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Close implements Source
func (m *MarkdownSource) Close() error { return nil }

// ListContent parses every published file of kind, newest first
func (m *MarkdownSource) ListContent(ctx context.Context, kind string) ([]feed.Item, error) {
	if !fs.ValidPath(kind) || strings.Contains(kind, "/") {
		return nil, fmt.Errorf("invalid content kind %q", kind)
	}

	entries, err := fs.ReadDir(m.fsys, kind)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("No content directory for kind", "kind", kind)
		return []feed.Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s directory: %w", kind, err)
	}

	items := make([]feed.Item, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || path.Ext(entry.Name()) != ".md" {
			continue
		}

		item, draft, err := m.LoadFile(kind, entry.Name())
		if err != nil {
			return nil, err
		}
		if draft {
			slog.Debug("Skipping draft", "kind", kind, "file", entry.Name())
			continue
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].PublishedAt.Equal(items[j].PublishedAt) {
			return items[i].PublishedAt.After(items[j].PublishedAt)
		}
		return items[i].Slug < items[j].Slug
	})

	return items, nil
}

// LoadFile parses one markdown file. Drafts are reported without being rendered.
func (m *MarkdownSource) LoadFile(kind, name string) (item feed.Item, draft bool, err error) {
	filePath := path.Join(kind, name)

	data, err := fs.ReadFile(m.fsys, filePath)
	if err != nil {
		return feed.Item{}, false, fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	header, body, err := splitFrontMatter(data)
	if err != nil {
		return feed.Item{}, false, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}

	var meta frontMatter
	if err := yaml.Unmarshal(header, &meta); err != nil {
		return feed.Item{}, false, fmt.Errorf("failed to parse front matter of %s: %w", filePath, err)
	}
	if meta.Draft {
		return feed.Item{}, true, nil
	}

	var html bytes.Buffer
	if err := m.md.Convert(body, &html); err != nil {
		return feed.Item{}, false, fmt.Errorf("failed to render %s: %w", filePath, err)
	}

	item = feed.Item{
		Kind:        kind,
		Slug:        meta.Slug,
		Title:       strings.TrimSpace(meta.Title),
		Description: strings.TrimSpace(meta.Description),
		Content:     html.String(),
		Author:      meta.Author,
		Tags:        meta.Tags,
		PublishedAt: meta.Date.UTC(),
		UpdatedAt:   meta.Updated.UTC(),
	}
	if item.Slug == "" {
		item.Slug = strings.TrimSuffix(name, path.Ext(name))
	}
	if item.Description == "" {
		item.Description = feed.TruncateString(feed.PlainText(item.Content), descriptionLength)
	}

	if item.Title == "" {
		return feed.Item{}, false, fmt.Errorf("%w: %s has no title", feed.ErrMalformedItem, filePath)
	}
	if item.PublishedAt.IsZero() {
		return feed.Item{}, false, fmt.Errorf("%w: %s has no date", feed.ErrMalformedItem, filePath)
	}

	return item, false, nil
}

// splitFrontMatter separates the leading --- delimited YAML block from the body
func splitFrontMatter(data []byte) (header, body []byte, err error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))

	if !bytes.HasPrefix(data, []byte("---\n")) {
		return nil, nil, ErrNoFrontMatter
	}
	rest := data[len("---\n"):]

	// closing delimiter on its own line, possibly at end of file
	if bytes.HasPrefix(rest, []byte("---\n")) || bytes.Equal(rest, []byte("---")) {
		return nil, bytes.TrimPrefix(bytes.TrimPrefix(rest, []byte("---")), []byte("\n")), nil
	}
	end := bytes.Index(rest, []byte("\n---\n"))
	if end < 0 {
		if bytes.HasSuffix(rest, []byte("\n---")) {
			return rest[:len(rest)-len("\n---")], nil, nil
		}
		return nil, nil, fmt.Errorf("%w: unterminated block", ErrNoFrontMatter)
	}

	return rest[:end], rest[end+len("\n---\n"):], nil
}
