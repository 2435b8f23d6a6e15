// Package settings serves the portal's theme preferences: the provider
// middleware that resolves a theme for every request, and the JSON API that
// mutates it.
package settings

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/neuralliquid/portal/internal/server"
	"github.com/neuralliquid/portal/internal/theme"
	"go.uber.org/zap"
)

// StateResponse describes the resolved theme of the caller's session.
type StateResponse struct {
	theme.Selection
	Markers         []theme.Marker `json:"markers"`
	ClassList       string         `json:"class_list"`
	VariantSource   theme.Source   `json:"variant_source"`
	ColorModeSource theme.Source   `json:"color_mode_source"`
}

// CatalogEntry lists one experience and its variants.
type CatalogEntry struct {
	Experience     theme.Experience `json:"experience"`
	Variants       []theme.Variant  `json:"variants"`
	DefaultVariant theme.Variant    `json:"default_variant"`
	DarkVariant    theme.Variant    `json:"dark_variant"`
}

// ExperienceRequest is the body of PUT /theme/experience.
type ExperienceRequest struct {
	Experience string `json:"experience"`
}

// VariantRequest is the body of PUT /theme/variant.
type VariantRequest struct {
	Variant string `json:"variant"`
}

// ColorModeRequest is the body of PUT /theme/color-mode.
type ColorModeRequest struct {
	ColorMode string `json:"color_mode"`
}

// Handler provides the theme API. Every route must sit behind
// Provider.Middleware.
type Handler struct {
	provider *Provider
	logger   *zap.Logger
}

// NewHandler creates a theme API handler.
func NewHandler(provider *Provider, logger *zap.Logger) *Handler {
	return &Handler{provider: provider, logger: logger}
}

// RegisterRoutes registers the theme routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/theme", h.handleGet)
	mux.HandleFunc("DELETE /api/v1/theme", h.handleForget)
	mux.HandleFunc("GET /api/v1/theme/catalog", h.handleCatalog)
	mux.HandleFunc("PUT /api/v1/theme/experience", h.handleSetExperience)
	mux.HandleFunc("PUT /api/v1/theme/variant", h.handleSetVariant)
	mux.HandleFunc("PUT /api/v1/theme/color-mode", h.handleSetColorMode)
	mux.HandleFunc("POST /api/v1/theme/toggle", h.handleToggle)
	mux.HandleFunc("POST /api/v1/theme/smart-toggle", h.handleSmartToggle)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateOf(r.Context(), theme.MustFromContext(r.Context())))
}

func (h *Handler) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	exps := theme.Experiences()
	catalog := make([]CatalogEntry, 0, len(exps))
	for _, e := range exps {
		catalog = append(catalog, CatalogEntry{
			Experience:     e,
			Variants:       theme.VariantsFor(e),
			DefaultVariant: theme.DefaultVariant(e),
			DarkVariant:    theme.DarkVariant(e),
		})
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (h *Handler) handleSetExperience(w http.ResponseWriter, r *http.Request) {
	var req ExperienceRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := theme.ParseExperience(req.Experience)
	if err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	h.mutate(w, r, "set_experience", func(rv *theme.Resolver) error { return rv.SetExperience(e) })
}

func (h *Handler) handleSetVariant(w http.ResponseWriter, r *http.Request) {
	var req VariantRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := theme.ParseVariant(req.Variant)
	if err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	h.mutate(w, r, "set_variant", func(rv *theme.Resolver) error { return rv.SetVariant(v) })
}

func (h *Handler) handleSetColorMode(w http.ResponseWriter, r *http.Request) {
	var req ColorModeRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := theme.ParseColorMode(req.ColorMode)
	if err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	h.mutate(w, r, "set_color_mode", func(rv *theme.Resolver) error { return rv.SetColorMode(m) })
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "toggle", func(rv *theme.Resolver) error {
		rv.ToggleColorMode()
		return nil
	})
}

func (h *Handler) handleSmartToggle(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "smart_toggle", func(rv *theme.Resolver) error {
		rv.SmartToggle()
		return nil
	})
}

func (h *Handler) handleForget(w http.ResponseWriter, r *http.Request) {
	sid := SessionID(r.Context())
	if err := h.provider.Forget(r.Context(), w, sid); err != nil {
		// Cookies are already expired; the server copy ages out on its own.
		h.logger.Warn("failed to delete session preferences", zap.String("session", sid), zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// mutate applies fn to the request's resolver and writes the new state.
// Cookies are set by the resolver before the body is written.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op string, fn func(*theme.Resolver) error) {
	rv := theme.MustFromContext(r.Context())
	if err := fn(rv); err != nil {
		// Foreign variants leave the selection untouched.
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	themeMutationsTotal.WithLabelValues(op).Inc()
	h.logger.Debug("theme changed",
		zap.String("operation", op),
		zap.String("session", SessionID(r.Context())),
		zap.Stringer("selection", rv.Selection()),
	)
	writeJSON(w, http.StatusOK, stateOf(r.Context(), rv))
}

func stateOf(ctx context.Context, rv *theme.Resolver) StateResponse {
	markers, ok := AppliedMarkers(ctx)
	if !ok {
		markers = rv.Markers()
	}
	return StateResponse{
		Selection:       rv.Selection(),
		Markers:         markers.Sorted(),
		ClassList:       markers.ClassList(),
		VariantSource:   rv.VariantSource(),
		ColorModeSource: rv.ColorModeSource(),
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		server.BadRequest(w, "invalid request body", r.URL.Path)
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
