package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/erazemk/sowa/internal/backend"
	"github.com/erazemk/sowa/internal/inquiry"
	"github.com/erazemk/sowa/internal/model"
	"github.com/erazemk/sowa/internal/session"
	webembed "github.com/erazemk/sowa/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map. Image references are resolved
// against assetOrigin.
func FuncMap(assetOrigin string) template.FuncMap {
	return template.FuncMap{
		"asset": func(ref string) string {
			return backend.ResolveAsset(assetOrigin, ref)
		},
		"date": func(ts model.Timestamp) string {
			return inquiry.FormatDate(ts.Time)
		},
		"ageName": func(a model.Age) string {
			switch a {
			case model.Age20:
				return "20대"
			case model.Age30:
				return "30대"
			case model.Age40:
				return "40대"
			default:
				return "-"
			}
		},
		"interiorName": func(t model.InteriorType) string {
			switch t {
			case model.InteriorResidential:
				return "주거"
			case model.InteriorCommercial:
				return "상업"
			default:
				return "-"
			}
		},
		"orDash": func(s string) string {
			if s == "" {
				return "-"
			}
			return s
		},
		"add": func(a, b int) int { return a + b },
	}
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates(assetOrigin string) (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}
	formBytes, err := fs.ReadFile(tfs, "inquiry_form.html")
	if err != nil {
		return nil, fmt.Errorf("reading inquiry form template: %w", err)
	}

	pages := []string{
		"home.html",
		"portfolio.html",
		"inquiry.html",
		"admin_login.html",
		"admin.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap(assetOrigin))
		for _, part := range []struct {
			name string
			text []byte
		}{
			{"layout", layoutBytes},
			{"inquiry form", formBytes},
			{page, pageBytes},
		} {
			if tmpl, err = tmpl.Parse(string(part.text)); err != nil {
				return nil, fmt.Errorf("parsing %s for %s: %w", part.name, page, err)
			}
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a template with the given status code.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title    string
	Nav      string
	Settings *model.SiteSettings
	Flashes  []session.Flash
	Error    string
	Success  string
}

// SiteTitle is the brand shown in the header.
func (p PageData) SiteTitle() string {
	if p.Settings != nil && p.Settings.SiteTitle != "" {
		return p.Settings.SiteTitle
	}
	return "SOWA"
}
