package config

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/lepinkainen/insider-risk-index/pkg/feed"
)

type testConfig struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Debug   bool   `json:"debug" yaml:"debug"`
}

func TestDefaultLoaderConfig(t *testing.T) {
	config := DefaultLoaderConfig()

	if config.Timeout != 10*time.Second {
		t.Errorf("DefaultLoaderConfig().Timeout = %v, want %v", config.Timeout, 10*time.Second)
	}
	if config.MaxRetries != 3 {
		t.Errorf("DefaultLoaderConfig().MaxRetries = %d, want 3", config.MaxRetries)
	}
	if !config.FallbackToDefault {
		t.Errorf("DefaultLoaderConfig().FallbackToDefault should be true")
	}
	if config.RemoteURL != "" || config.LocalPath != "" {
		t.Errorf("DefaultLoaderConfig() should not set any source")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		data     string
		expected string
	}{
		{"JSON file extension", "config.json", `name: x`, "json"},
		{"YAML file extension", "config.yaml", `{"name": "x"}`, "yaml"},
		{"YML file extension", "config.YML", `name: x`, "yaml"},
		{"JSON object content", "config", `{"name": "x"}`, "json"},
		{"JSON array content", "/pages", ` [{"loc": "/"}]`, "json"},
		{"YAML flow mapping that is not JSON", "config", `{name: x}`, "yaml"},
		{"YAML content", "config", "name: x\n", "yaml"},
		{"empty", "config", "", "yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.path, []byte(tt.data)); got != tt.expected {
				t.Errorf("DetectFormat(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	want := testConfig{Name: "iri", Version: "1.0", Debug: true}

	files := map[string]string{
		"config.json": `{"name":"iri","version":"1.0","debug":true}`,
		"config.yaml": "name: iri\nversion: \"1.0\"\ndebug: true\n",
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("failed to write file: %v", err)
			}

			var got testConfig
			if err := loadFromFile(path, &got); err != nil {
				t.Fatalf("loadFromFile() error = %v", err)
			}
			if got != want {
				t.Errorf("loadFromFile() = %+v, want %+v", got, want)
			}
		})
	}

	var got testConfig
	if err := loadFromFile(filepath.Join(dir, "missing.yaml"), &got); err == nil {
		t.Error("loadFromFile() expected error for missing file")
	}

	broken := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(broken, []byte(`{"name":`), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := loadFromFile(broken, &got); err == nil {
		t.Error("loadFromFile() expected error for invalid json")
	}
}

func TestLoadFromURLWithFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/config.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"remote","version":"2.0"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	local := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(local, []byte("name: local\n"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	tests := []struct {
		name       string
		config     LoaderConfig
		wantName   string
		wantLoaded bool
		wantErr    error
	}{
		{
			name:       "remote wins",
			config:     LoaderConfig{RemoteURL: server.URL + "/config.json", LocalPath: local, Timeout: time.Second},
			wantName:   "remote",
			wantLoaded: true,
		},
		{
			name:       "remote 404 falls back to local",
			config:     LoaderConfig{RemoteURL: server.URL + "/missing.json", LocalPath: local, Timeout: time.Second},
			wantName:   "local",
			wantLoaded: true,
		},
		{
			name:   "nothing loads with fallback",
			config: LoaderConfig{LocalPath: filepath.Join(t.TempDir(), "nope.yaml"), FallbackToDefault: true},
		},
		{
			name:    "nothing loads without fallback",
			config:  LoaderConfig{LocalPath: filepath.Join(t.TempDir(), "nope.yaml")},
			wantErr: ErrNotLoaded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got testConfig
			loaded, err := LoadFromURLWithFallback(context.Background(), &tt.config, &got)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("LoadFromURLWithFallback() error = %v, want %v", err, tt.wantErr)
			}
			if loaded != tt.wantLoaded {
				t.Errorf("loaded = %v, want %v", loaded, tt.wantLoaded)
			}
			if got.Name != tt.wantName {
				t.Errorf("name = %q, want %q", got.Name, tt.wantName)
			}
		})
	}
}

func TestLoadPagesEmbedded(t *testing.T) {
	pages, err := LoadPages(context.Background(), DefaultLoaderConfig())
	if err != nil {
		t.Fatalf("LoadPages() error = %v", err)
	}
	if len(pages) == 0 {
		t.Fatal("embedded page list is empty")
	}

	first := pages[0]
	if first.Loc != "/" || first.ChangeFreq != "daily" || first.Priority != 1.0 {
		t.Errorf("first embedded page = %+v, want the home page", first)
	}
	for _, page := range pages {
		if page.Priority < 0 || page.Priority > 1 {
			t.Errorf("embedded page %s has priority %v outside [0, 1]", page.Loc, page.Priority)
		}
	}
}

func TestLoadPagesLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.yaml")
	content := "- loc: /\n  priority: 1.0\n- loc: /pricing\n  changefreq: monthly\n  priority: 0.4\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	config := DefaultLoaderConfig()
	config.LocalPath = path

	pages, err := LoadPages(context.Background(), config)
	if err != nil {
		t.Fatalf("LoadPages() error = %v", err)
	}

	want := []feed.SitemapEntry{
		{Loc: "/", Priority: 1.0},
		{Loc: "/pricing", ChangeFreq: "monthly", Priority: 0.4},
	}
	if diff := cmp.Diff(want, pages); diff != "" {
		t.Errorf("LoadPages() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPagesDefaultPriority(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "pages.yaml", "- loc: /about\n  changefreq: yearly\n- loc: /privacy\n  priority: 0.0\n"},
		{"json", "pages.json", `[{"loc":"/about","changefreq":"yearly"},{"loc":"/privacy","priority":0}]`},
	}

	want := []feed.SitemapEntry{
		{Loc: "/about", ChangeFreq: "yearly", Priority: feed.DefaultPriority},
		{Loc: "/privacy", Priority: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("failed to write file: %v", err)
			}

			config := DefaultLoaderConfig()
			config.LocalPath = path

			pages, err := LoadPages(context.Background(), config)
			if err != nil {
				t.Fatalf("LoadPages() error = %v", err)
			}
			if diff := cmp.Diff(want, pages); diff != "" {
				t.Errorf("LoadPages() mismatch (-want +got):\n%s", diff)
			}

			out, err := feed.NewGenerator(feed.SiteConfig{URL: "https://example.com", Title: "Example"}).GenerateSitemap(pages)
			if err != nil {
				t.Fatalf("GenerateSitemap() error = %v", err)
			}
			if !strings.Contains(string(out), "<priority>0.5</priority>") {
				t.Errorf("page without priority should get the default:\n%s", out)
			}
		})
	}
}
