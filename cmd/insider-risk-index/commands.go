package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/lepinkainen/insider-risk-index/internal/config"
	"github.com/lepinkainen/insider-risk-index/internal/content"
	"github.com/lepinkainen/insider-risk-index/internal/indexnow"
	"github.com/lepinkainen/insider-risk-index/internal/server"
	pkgconfig "github.com/lepinkainen/insider-risk-index/pkg/config"
	"github.com/lepinkainen/insider-risk-index/pkg/feed"
	"github.com/lepinkainen/insider-risk-index/pkg/filesystem"
	"github.com/lepinkainen/insider-risk-index/pkg/preview"
	"github.com/lepinkainen/insider-risk-index/pkg/sharecodec"
	"golang.org/x/sync/errgroup"
)

// generateWorkers bounds how many documents are rendered at once
const generateWorkers = 4

// app wires the configured content source into a feed builder
type app struct {
	cfg     *config.Config
	source  content.Source
	builder *feed.Builder
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	source, err := content.Open(ctx, cfg.Content.Source, content.SourceConfig{
		DBPath: filesystem.ResolvePath(cfg.Content.DBPath),
		Dir:    filesystem.ResolvePath(cfg.Content.Dir),
	})
	if err != nil {
		return nil, err
	}

	pages, err := loadPages(ctx, cfg)
	if err != nil {
		closeSource(source)
		return nil, err
	}

	gen := feed.NewGenerator(cfg.SiteConfig())
	builder := feed.NewBuilder(gen, source, cfg.SitemapConfig(pages), templateOverride(cfg.Server.TemplateDir))

	slog.Debug("Application initialized", "source", cfg.Content.Source, "pages", len(pages), "kinds", cfg.Content.Kinds)
	return &app{cfg: cfg, source: source, builder: builder}, nil
}

func (a *app) Close() {
	closeSource(a.source)
}

// build renders one document with the configured fetch timeout
func (a *app) build(ctx context.Context, feedType feed.FeedType, kind string) feed.Document {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Server.FetchTimeout)
	defer cancel()
	return a.builder.Build(ctx, feedType, kind)
}

func closeSource(source content.Source) {
	if err := source.Close(); err != nil {
		slog.Error("Failed to close content source", "error", err)
	}
}

func loadPages(ctx context.Context, cfg *config.Config) ([]feed.SitemapEntry, error) {
	loader := pkgconfig.DefaultLoaderConfig()
	loader.RemoteURL = cfg.Sitemap.PagesURL
	if cfg.Sitemap.PagesFile != "" {
		loader.LocalPath = filesystem.ResolvePath(cfg.Sitemap.PagesFile)
	}
	return pkgconfig.LoadPages(ctx, loader)
}

// templateOverride returns the fallback template directory when it exists
func templateOverride(dir string) fs.FS {
	if dir == "" {
		return nil
	}
	dir = filesystem.ResolvePath(dir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		slog.Debug("No fallback template overrides", "dir", dir)
		return nil
	}
	return os.DirFS(dir)
}

func runServe(configPath, addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	srvConfig := server.Config{
		Addr:         addr,
		FetchTimeout: a.cfg.Server.FetchTimeout,
		SiteURL:      a.cfg.Site.URL,
		Kinds:        a.cfg.Content.Kinds,
		IndexNowKey:  a.cfg.IndexNow.Key,

		ShareRateLimit: a.cfg.Server.ShareLimit,
		TrustProxy:     a.cfg.Server.TrustProxy,
	}
	if pinger, ok := a.source.(interface{ Ping(context.Context) error }); ok {
		srvConfig.HealthCheck = pinger.Ping
	}

	return server.New(a.builder, srvConfig).Run(ctx)
}

func runGenerate(configPath, outdir string, kinds, types []string) error {
	ctx := context.Background()

	feedTypes, err := parseFeedTypes(types)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	kinds = uniqueSorted(kinds)
	for _, kind := range kinds {
		if !a.cfg.HasKind(kind) {
			return fmt.Errorf("unknown content kind %q", kind)
		}
	}

	type job struct {
		path     string
		feedType feed.FeedType
		kind     string
	}
	var jobs []job
	for _, feedType := range feedTypes {
		jobs = append(jobs, job{filepath.Join(outdir, feedType.Filename()), feedType, ""})
	}
	for _, kind := range kinds {
		for _, feedType := range feedTypes {
			if feedType == feed.Sitemap {
				continue
			}
			jobs = append(jobs, job{filepath.Join(outdir, kind, feedType.Filename()), feedType, kind})
		}
	}

	// Builds get ctx, not gctx, so a failed job cannot turn the others into
	// fallback documents written over good files.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(generateWorkers)
	for _, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			doc := a.build(ctx, j.feedType, j.kind)
			if doc.Fallback {
				slog.Warn("Writing fallback document", "path", j.path, "type", doc.FeedType, "kind", doc.Kind)
			}
			if err := filesystem.WriteFileAtomic(j.path, doc.Body); err != nil {
				return err
			}
			slog.Info("Wrote feed", "path", j.path, "bytes", len(doc.Body))
			return nil
		})
	}
	return g.Wait()
}

// parseFeedTypes resolves --types names. No names means every type.
func parseFeedTypes(names []string) ([]feed.FeedType, error) {
	if len(names) == 0 {
		return feed.FeedTypes, nil
	}

	var types []feed.FeedType
	for _, name := range names {
		feedType, err := feed.ParseFeedType(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if !slices.Contains(types, feedType) {
			types = append(types, feedType)
		}
	}
	return types, nil
}

func uniqueSorted(values []string) []string {
	values = slices.Clone(values)
	slices.Sort(values)
	return slices.Compact(values)
}

func runShareEncode(configPath, file string, stdin io.Reader, out io.Writer) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	var input io.Reader = stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", file, err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil {
				slog.Error("Failed to close file", "error", closeErr)
			}
		}()
		input = f
	}

	var data sharecodec.ShareableAssessmentData
	if err := json.NewDecoder(input).Decode(&data); err != nil {
		return fmt.Errorf("failed to parse assessment results: %w", err)
	}

	token, err := sharecodec.Encode(&data)
	if err != nil {
		return err
	}
	link, err := sharecodec.ShareURL(cfg.Site.URL, &data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "token: %s\nurl:   %s\n", token, link)
	return err
}

func runShareDecode(token string, out io.Writer) error {
	if strings.Contains(token, "://") {
		fromURL, err := sharecodec.TokenFromURL(token)
		if err != nil {
			return err
		}
		token = fromURL
	}

	data, err := sharecodec.Decode(token)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func runIndexNow(configPath string, dryRun, reset bool, out io.Writer) error {
	ctx := context.Background()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.FetchTimeout)
	entries, err := a.builder.SitemapEntries(fetchCtx)
	cancel()
	if err != nil {
		return err
	}

	urls := make([]string, 0, len(entries))
	for _, entry := range entries {
		urls = append(urls, entry.Loc)
	}

	if dryRun {
		for _, u := range urls {
			if _, err := fmt.Fprintln(out, u); err != nil {
				return err
			}
		}
		return nil
	}

	cache, err := indexnow.OpenCache(ctx, filesystem.ResolvePath(a.cfg.IndexNow.CacheDB))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := cache.Close(); closeErr != nil {
			slog.Error("Failed to close submission cache", "error", closeErr)
		}
	}()

	if reset {
		if err := cache.Clear(ctx); err != nil {
			return err
		}
		slog.Info("Cleared submission cache")
	}
	if removed, err := cache.CleanupExpired(ctx); err != nil {
		slog.Warn("Failed to clean up submission cache", "error", err)
	} else if removed > 0 {
		slog.Debug("Removed expired submissions", "count", removed)
	}

	client, err := indexnow.NewClient(indexnow.Config{
		Key:       a.cfg.IndexNow.Key,
		Endpoint:  a.cfg.IndexNow.Endpoint,
		SiteURL:   a.cfg.Site.URL,
		TTL:       a.cfg.IndexNow.TTL,
		BatchSize: a.cfg.IndexNow.BatchSize,
	}, nil, cache)
	if err != nil {
		return err
	}

	result, err := client.Submit(ctx, urls)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(out, "submitted %d, skipped %d, rejected %d\n", result.Submitted, result.Skipped, result.Rejected); err != nil {
		return err
	}

	stats, err := cache.Stats(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "cache: %d recently submitted, %d expired\n", stats.Valid, stats.Expired)
	return err
}

func runSeed(configPath, dir string, out io.Writer) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to open content directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	store, err := content.OpenStore(ctx, filesystem.ResolvePath(cfg.Content.DBPath))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close content store", "error", closeErr)
		}
	}()

	count, err := store.Import(ctx, content.NewMarkdownSource(os.DirFS(dir)), cfg.Content.Kinds)
	if err != nil {
		return err
	}

	kinds, err := store.Kinds(ctx)
	if err != nil {
		return err
	}
	for _, kind := range kinds {
		if !cfg.HasKind(kind) {
			slog.Warn("Store holds a kind missing from content.kinds", "kind", kind)
		}
	}

	slog.Info("Seeded content store", "items", count, "path", cfg.Content.DBPath)
	_, err = fmt.Fprintf(out, "seeded %d items, store kinds: %s\n", count, strings.Join(kinds, ", "))
	return err
}

func runPreview(configPath, kind string, index int, out io.Writer) error {
	ctx := context.Background()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if kind == "" {
		kind = a.cfg.Site.DefaultKind
	}
	if !a.cfg.HasKind(kind) {
		return fmt.Errorf("unknown content kind %q", kind)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.FetchTimeout)
	items, err := a.source.ListContent(fetchCtx, kind)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to list %s content: %w", kind, err)
	}
	for i := range items {
		if items[i].Kind == "" {
			items[i].Kind = kind
		}
	}

	if index >= 0 {
		if index >= len(items) {
			return fmt.Errorf("index %d out of range, %d items", index, len(items))
		}
		_, err := fmt.Fprint(out, preview.FormatXMLItem(a.builder.Generator, items[index]))
		return err
	}

	return preview.Run(items, kind, a.builder.Generator)
}
