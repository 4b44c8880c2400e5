// Package main provides the CLI entry point for insider-risk-index.
package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"
)

// CLI structure
var CLI struct {
	Config string `help:"Configuration file path" default:"config.yaml"`
	Debug  bool   `help:"Enable debug logging" default:"false"`

	Serve struct {
		Addr string `help:"Listen address, overrides server.addr"`
	} `cmd:"serve" help:"Serve feeds, sitemap and share links over HTTP."`

	Generate struct {
		Outdir string   `help:"Output directory" short:"o" default:"public"`
		Kinds  []string `help:"Also write per-kind feeds under <outdir>/<kind>/"`
		Types  []string `help:"Document types to write: rss, atom, json, sitemap (default all)"`
	} `cmd:"generate" help:"Write rss.xml, atom.xml, feed.json and sitemap.xml."`

	Share struct {
		Encode struct {
			File string `help:"JSON file with assessment results, - for stdin" short:"f" default:"-"`
		} `cmd:"encode" help:"Encode assessment results into a share link."`

		Decode struct {
			Token string `arg:"" help:"Share token or full share link"`
		} `cmd:"decode" help:"Decode a share token back into assessment results."`
	} `cmd:"share" help:"Encode and decode shareable assessment links."`

	IndexNow struct {
		DryRun bool `help:"List the URLs that would be submitted without sending them"`
		Reset  bool `help:"Forget previous submissions and resubmit every URL"`
	} `cmd:"indexnow" help:"Submit sitemap URLs to IndexNow."`

	Seed struct {
		Dir string `help:"Markdown content directory" default:"content"`
	} `cmd:"seed" help:"Import a markdown content directory into the sqlite store."`

	Preview struct {
		Kind  string `help:"Content kind to preview, defaults to site.default_kind"`
		Index int    `help:"Output RSS XML for specific item index (0-based) to stdout" default:"-1"`
	} `cmd:"preview" help:"Browse content items interactively."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("insider-risk-index"),
		kong.Description("Feeds, sitemap and shareable assessment links for the Insider Risk Index."),
		kong.Configuration(kongyaml.Loader, "config.yaml", "~/.insider-risk-index/config.yaml"),
	)

	switch {
	case CLI.Debug:
		slog.SetLogLoggerLevel(slog.LevelDebug)
	case ctx.Command() == "serve":
		slog.SetLogLoggerLevel(slog.LevelInfo)
	default:
		slog.SetLogLoggerLevel(slog.LevelWarn)
	}

	var err error
	switch ctx.Command() {
	case "serve":
		err = runServe(CLI.Config, CLI.Serve.Addr)
	case "generate":
		err = runGenerate(CLI.Config, CLI.Generate.Outdir, CLI.Generate.Kinds, CLI.Generate.Types)
	case "share encode":
		err = runShareEncode(CLI.Config, CLI.Share.Encode.File, os.Stdin, os.Stdout)
	case "share decode <token>":
		err = runShareDecode(CLI.Share.Decode.Token, os.Stdout)
	case "indexnow":
		err = runIndexNow(CLI.Config, CLI.IndexNow.DryRun, CLI.IndexNow.Reset, os.Stdout)
	case "seed":
		err = runSeed(CLI.Config, CLI.Seed.Dir, os.Stdout)
	case "preview":
		err = runPreview(CLI.Config, CLI.Preview.Kind, CLI.Preview.Index, os.Stdout)
	default:
		panic(ctx.Command())
	}

	if err != nil {
		slog.Error("Command failed", "command", ctx.Command(), "error", err)
		os.Exit(1)
	}
}
