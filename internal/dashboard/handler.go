// Package dashboard renders the portal pages with the resolved theme already
// applied, and serves the browser script that keeps it live.
package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/neuralliquid/portal/internal/settings"
	"github.com/neuralliquid/portal/internal/theme"
	"go.uber.org/zap"
)

// pageData is the template context of an experience page.
type pageData struct {
	Title     string
	ClassList string
	Selection theme.Selection
	Variants  []theme.Variant
	Dark      bool
	Corporate bool
}

var titles = map[theme.Experience]string{
	theme.ExperienceStandard:  "NeuralLiquid",
	theme.ExperienceCorporate: "NeuralLiquid Corporate",
}

// Handler serves the experience pages and /static/.
type Handler struct {
	page   *template.Template
	static http.Handler
	logger *zap.Logger
}

// NewHandler parses the embedded page template.
func NewHandler(logger *zap.Logger) (*Handler, error) {
	page, err := template.ParseFS(assets, "templates/page.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	static, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}
	return &Handler{
		page:   page,
		static: http.StripPrefix("/static/", http.FileServer(http.FS(static))),
		logger: logger,
	}, nil
}

// ServeHTTP routes "/", "/corporate" and "/static/". Everything else is 404.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/static/"):
		h.static.ServeHTTP(w, r)
	case r.URL.Path == "/" || r.URL.Path == "/corporate":
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		h.render(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request) {
	rv := theme.MustFromContext(r.Context())
	sel := rv.Selection()
	markers, ok := settings.AppliedMarkers(r.Context())
	if !ok {
		markers = rv.Markers()
	}
	data := pageData{
		Title:     titles[sel.Experience],
		ClassList: markers.ClassList(),
		Selection: sel,
		Variants:  theme.VariantsFor(sel.Experience),
		Dark:      sel.ColorMode == theme.ColorModeDark,
		Corporate: sel.Experience == theme.ExperienceCorporate,
	}

	var buf bytes.Buffer
	if err := h.page.Execute(&buf, data); err != nil {
		h.logger.Error("render page", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}
