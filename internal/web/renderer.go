package web

import (
	"fmt"
	"html/template"
	"io"
	"path/filepath"

	"github.com/labstack/echo/v4"
)

// TemplateRenderer is a html/template renderer for Echo. Each page is parsed
// together with layout.html.
type TemplateRenderer struct {
	Templates map[string]*template.Template
}

// NewTemplateRenderer parses layout.html plus every named page from dir.
func NewTemplateRenderer(dir string, pages ...string) (*TemplateRenderer, error) {
	r := &TemplateRenderer{Templates: make(map[string]*template.Template, len(pages))}
	layout := filepath.Join(dir, "layout.html")
	for _, page := range pages {
		tmpl, err := template.New(page).ParseFiles(layout, filepath.Join(dir, page))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		r.Templates[page] = tmpl
	}
	return r, nil
}

// Render renders a template document
func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	tmpl, ok := t.Templates[name]
	if !ok {
		return fmt.Errorf("template %q not registered", name)
	}
	return tmpl.ExecuteTemplate(w, "layout.html", data)
}
