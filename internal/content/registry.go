// Package content provides the content sources feeds are built from.
package content

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/lepinkainen/insider-risk-index/pkg/feed"
)

// Source is a closable content source
type Source interface {
	feed.ContentSource
	io.Closer
}

// SourceConfig carries the settings any source may need
type SourceConfig struct {
	DBPath string
	Dir    string
}

// Factory creates a new instance of a source.
type Factory func(ctx context.Context, config SourceConfig) (Source, error)

// SourceInfo contains metadata about a source.
type SourceInfo struct {
	Name        string
	Description string
	Factory     Factory
}

// Registry manages registered content sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*SourceInfo
}

// NewRegistry creates a new source registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]*SourceInfo),
	}
}

// Register adds a source to the registry.
func (r *Registry) Register(info *SourceInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[info.Name]; exists {
		return fmt.Errorf("source %s is already registered", info.Name)
	}

	r.sources[info.Name] = info
	return nil
}

// Get retrieves a source by name.
func (r *Registry) Get(name string) (*SourceInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.sources[name]
	if !exists {
		return nil, fmt.Errorf("source %s not found", name)
	}

	return info, nil
}

// List returns all registered source names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Open creates a new instance of the named source.
func (r *Registry) Open(ctx context.Context, name string, config SourceConfig) (Source, error) {
	info, err := r.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w (available: %s)", err, strings.Join(r.List(), ", "))
	}

	source, err := info.Factory(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s source: %w", name, err)
	}
	return source, nil
}

// DefaultRegistry holds the built-in sources
var DefaultRegistry = NewRegistry()

// RegisterSource registers a source with the default registry.
func RegisterSource(info *SourceInfo) {
	if err := DefaultRegistry.Register(info); err != nil {
		slog.Warn("Failed to register source", "source", info.Name, "error", err)
	} else {
		slog.Debug("Registered source", "source", info.Name, "description", info.Description)
	}
}

// Open opens a source from the default registry.
func Open(ctx context.Context, name string, config SourceConfig) (Source, error) {
	return DefaultRegistry.Open(ctx, name, config)
}
