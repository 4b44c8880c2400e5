// Package configs provides embedded configuration files for insider-risk-index.
package configs

import "embed"

// PagesFile is the embedded list of static sitemap pages
const PagesFile = "pages.yaml"

// EmbeddedConfigs exposes embedded configuration files for read-only access.
//
//go:embed *.yaml
var EmbeddedConfigs embed.FS
