package feed

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sort"
	"text/template"
	"time"

	"github.com/lepinkainen/insider-risk-index/templates"
)

// TemplateGenerator renders documents from named templates. A template is
// read from the override filesystem when present there, otherwise from the
// templates embedded in the binary.
type TemplateGenerator struct {
	templates  map[string]*template.Template
	funcMap    template.FuncMap
	overrideFS fs.FS
	embeddedFS fs.FS
}

// TemplateData represents the data structure passed to document templates
type TemplateData struct {
	Title       string
	Link        string
	Description string
	Author      string
	Language    string
	FeedURL     string
	ID          string
	Generator   string
	Updated     time.Time
}

// NewTemplateGenerator creates a template generator. override may be nil.
func NewTemplateGenerator(override fs.FS) *TemplateGenerator {
	return &TemplateGenerator{
		templates:  make(map[string]*template.Template),
		funcMap:    TemplateFuncs(),
		overrideFS: override,
		embeddedFS: templates.EmbeddedTemplates,
	}
}

// LoadTemplate loads <name>.tmpl, preferring the override filesystem
func (tg *TemplateGenerator) LoadTemplate(name string) error {
	filename := name + ".tmpl"

	content, source, err := tg.readTemplate(filename)
	if err != nil {
		return fmt.Errorf("failed to read template %s: %w", filename, err)
	}

	tmpl, err := template.New(name).Funcs(tg.funcMap).Parse(string(content))
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", filename, err)
	}

	tg.templates[name] = tmpl
	slog.Debug("Template loaded successfully", "name", name, "source", source)
	return nil
}

func (tg *TemplateGenerator) readTemplate(filename string) ([]byte, string, error) {
	if tg.overrideFS != nil {
		if content, err := fs.ReadFile(tg.overrideFS, filename); err == nil {
			return content, "override", nil
		}
	}
	content, err := fs.ReadFile(tg.embeddedFS, filename)
	return content, "embedded", err
}

// Execute renders the named template
func (tg *TemplateGenerator) Execute(name string, data *TemplateData, writer io.Writer) error {
	tmpl, exists := tg.templates[name]
	if !exists {
		return fmt.Errorf("template %s not found", name)
	}

	if err := tmpl.Execute(writer, data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return nil
}

// AvailableTemplates returns the loaded template names, sorted
func (tg *TemplateGenerator) AvailableTemplates() []string {
	names := make([]string, 0, len(tg.templates))
	for name := range tg.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
