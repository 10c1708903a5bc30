// Package views renders the embedded HTML templates. Each page template is
// parsed against a clone of the shared layout so page-level blocks cannot
// bleed into each other.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"strings"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Standalone pages render without the signed-in layout chrome.
var standalonePages = map[string]bool{
	"login":         true,
	"invite_accept": true,
}

type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	layout, err := template.New("layout").ParseFS(templateFS, "templates/layout.tmpl")
	if err != nil {
		return nil, fmt.Errorf("views: parse layout: %w", err)
	}

	entries, err := fs.Glob(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template)
	for _, entry := range entries {
		name := strings.TrimSuffix(path.Base(entry), ".tmpl")
		if name == "layout" {
			continue
		}
		var t *template.Template
		if standalonePages[name] {
			t, err = template.New(name).ParseFS(templateFS, entry)
		} else {
			t, err = template.Must(layout.Clone()).ParseFS(templateFS, entry)
		}
		if err != nil {
			return nil, fmt.Errorf("views: parse %s: %w", entry, err)
		}
		pages[name] = t
	}

	return &Renderer{pages: pages, logger: logger}, nil
}

// Render writes the named page. Output is buffered so a template error never
// reaches the client as a half-written body.
func (r *Renderer) Render(w io.Writer, page string, data any) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("views: unknown page %q", page)
	}

	root := "layout"
	if standalonePages[page] {
		root = page
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, root, data); err != nil {
		r.logger.Error("template execution failed", "page", page, "error", err)
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}
