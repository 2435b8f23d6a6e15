package settings_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/neuralliquid/portal/internal/config"
	"github.com/neuralliquid/portal/internal/event"
	"github.com/neuralliquid/portal/internal/prefstore"
	"github.com/neuralliquid/portal/internal/server"
	"github.com/neuralliquid/portal/internal/settings"
	"github.com/neuralliquid/portal/internal/theme"
	"go.uber.org/zap"
)

func testThemeConfig() config.Theme {
	return config.Theme{
		DefaultExperience: "standard",
		DefaultColorMode:  "light",
		QueryParam:        "theme",
		PreferenceCookie:  "nl-theme",
		ExperienceCookie:  "nl-experience",
		SessionCookie:     "nl-session",
		MaxAge:            theme.DefaultTTL,
	}
}

type handlerEnv struct {
	handler  http.Handler
	provider *settings.Provider
	sessions *prefstore.Memory
	bus      *event.Bus
}

func setupHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	logger := zap.NewNop()
	sessions := prefstore.NewMemory()
	bus := event.NewBus(logger)
	provider, err := settings.NewProvider(testThemeConfig(), sessions, bus, logger, "/healthz")
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	mux := http.NewServeMux()
	settings.NewHandler(provider, logger).RegisterRoutes(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		// Skipped by the provider, so this panics.
		theme.MustFromContext(r.Context())
	})
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		theme.MustFromContext(r.Context())
		markers, _ := settings.AppliedMarkers(r.Context())
		_, _ = w.Write([]byte(markers.ClassList()))
	})

	h := server.Chain(mux, server.RecoveryMiddleware(logger), provider.Middleware)
	return &handlerEnv{handler: h, provider: provider, sessions: sessions, bus: bus}
}

func (e *handlerEnv) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return e.doFrom(t, "", method, path, body, cookies...)
}

// doFrom sends an API call the way a page of experience exp does.
func (e *handlerEnv) doFrom(t *testing.T, exp theme.Experience, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if exp != "" {
		r.Header.Set(settings.ExperienceHeader, string(exp))
	}
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) settings.StateResponse {
	t.Helper()
	var got settings.StateResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return got
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHandleGet_Defaults(t *testing.T) {
	env := setupHandlerEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/theme", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	got := decodeState(t, w)
	want := theme.Selection{Experience: theme.ExperienceStandard, Variant: theme.VariantStandard, ColorMode: theme.ColorModeLight}
	if got.Selection != want {
		t.Errorf("selection = %+v, want %+v", got.Selection, want)
	}
	if got.ClassList != "variant-standard" {
		t.Errorf("class_list = %q, want %q", got.ClassList, "variant-standard")
	}
	if got.ColorModeSource != theme.SourceDefault {
		t.Errorf("color_mode_source = %v, want default", got.ColorModeSource)
	}
	if findCookie(w, "nl-session") == nil {
		t.Error("expected a session cookie to be issued")
	}
	if findCookie(w, "nl-theme") != nil {
		t.Error("resolution alone must not persist a preference")
	}
}

func TestHandleGet_QueryBeatsCookie(t *testing.T) {
	env := setupHandlerEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/theme?theme=neuralliquid-dark", "",
		&http.Cookie{Name: "nl-theme", Value: "standard-light"})
	got := decodeState(t, w)
	if got.Variant != theme.VariantNeuralLiquid || got.ColorMode != theme.ColorModeDark {
		t.Errorf("selection = %+v, want neuralliquid/dark", got.Selection)
	}
	if got.VariantSource != theme.SourceQuery {
		t.Errorf("variant_source = %v, want query", got.VariantSource)
	}
}

func TestHandleGet_ClientHint(t *testing.T) {
	env := setupHandlerEnv(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/theme", nil)
	r.Header.Set(settings.ClientHintHeader, `"dark"`)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)

	got := decodeState(t, w)
	if got.ColorMode != theme.ColorModeDark || got.ColorModeSource != theme.SourceSystem {
		t.Errorf("color mode = %s from %v, want dark from system", got.ColorMode, got.ColorModeSource)
	}
	if ch := w.Header().Get("Accept-CH"); ch != settings.ClientHintHeader {
		t.Errorf("Accept-CH = %q, want %q", ch, settings.ClientHintHeader)
	}
}

func TestHandleCatalog(t *testing.T) {
	env := setupHandlerEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/theme/catalog", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got []settings.CatalogEntry
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("catalog has %d entries, want 2", len(got))
	}
	if got[1].Experience != theme.ExperienceCorporate || got[1].DarkVariant != theme.VariantVeritasVault {
		t.Errorf("corporate entry = %+v", got[1])
	}
}

func TestHandleMutations(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		want       theme.Selection
	}{
		{
			name: "set experience repairs variant", method: http.MethodPut,
			path: "/api/v1/theme/experience", body: `{"experience":"corporate"}`,
			wantStatus: http.StatusOK,
			want:       theme.Selection{Experience: theme.ExperienceCorporate, Variant: theme.VariantCorporate, ColorMode: theme.ColorModeLight},
		},
		{
			name: "set variant", method: http.MethodPut,
			path: "/api/v1/theme/variant", body: `{"variant":"neuralliquid"}`,
			wantStatus: http.StatusOK,
			want:       theme.Selection{Experience: theme.ExperienceStandard, Variant: theme.VariantNeuralLiquid, ColorMode: theme.ColorModeLight},
		},
		{
			name: "set color mode", method: http.MethodPut,
			path: "/api/v1/theme/color-mode", body: `{"color_mode":"dark"}`,
			wantStatus: http.StatusOK,
			want:       theme.Selection{Experience: theme.ExperienceStandard, Variant: theme.VariantStandard, ColorMode: theme.ColorModeDark},
		},
		{
			name: "toggle", method: http.MethodPost, path: "/api/v1/theme/toggle",
			wantStatus: http.StatusOK,
			want:       theme.Selection{Experience: theme.ExperienceStandard, Variant: theme.VariantStandard, ColorMode: theme.ColorModeDark},
		},
		{
			name: "smart toggle", method: http.MethodPost, path: "/api/v1/theme/smart-toggle",
			wantStatus: http.StatusOK,
			want:       theme.Selection{Experience: theme.ExperienceStandard, Variant: theme.VariantNeuralLiquid, ColorMode: theme.ColorModeDark},
		},
		{
			name: "foreign variant rejected", method: http.MethodPut,
			path: "/api/v1/theme/variant", body: `{"variant":"veritasvault"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown variant", method: http.MethodPut,
			path: "/api/v1/theme/variant", body: `{"variant":"solarized"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown experience", method: http.MethodPut,
			path: "/api/v1/theme/experience", body: `{"experience":"retail"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown color mode", method: http.MethodPut,
			path: "/api/v1/theme/color-mode", body: `{"color_mode":"sepia"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "malformed body", method: http.MethodPut,
			path: "/api/v1/theme/color-mode", body: `{not json`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := setupHandlerEnv(t)
			w := env.do(t, tc.method, tc.path, tc.body)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tc.wantStatus, w.Body.String())
			}
			if tc.wantStatus != http.StatusOK {
				if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
					t.Errorf("Content-Type = %q, want application/problem+json", ct)
				}
				if findCookie(w, "nl-theme") != nil {
					t.Error("rejected mutation must not persist")
				}
				return
			}
			got := decodeState(t, w)
			if got.Selection != tc.want {
				t.Errorf("selection = %+v, want %+v", got.Selection, tc.want)
			}
			c := findCookie(w, "nl-theme")
			if c == nil {
				t.Fatal("expected preference cookie")
			}
			if c.Value != theme.EncodePreference(tc.want.Variant, tc.want.ColorMode) {
				t.Errorf("cookie = %q, want %q", c.Value, theme.EncodePreference(tc.want.Variant, tc.want.ColorMode))
			}
			if c.MaxAge != int(theme.DefaultTTL.Seconds()) {
				t.Errorf("cookie MaxAge = %d, want %d", c.MaxAge, int(theme.DefaultTTL.Seconds()))
			}
			if e := findCookie(w, "nl-experience"); e == nil || e.Value != string(tc.want.Experience) {
				t.Errorf("experience cookie = %v, want %s", e, tc.want.Experience)
			}
		})
	}
}

func TestMutation_PersistsToSessionStore(t *testing.T) {
	env := setupHandlerEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/theme/smart-toggle", "")
	sid := findCookie(w, "nl-session")
	if sid == nil {
		t.Fatal("expected session cookie")
	}

	got, err := env.sessions.Get(context.Background(), sid.Value, "nl-theme")
	if err != nil {
		t.Fatalf("session store Get: %v", err)
	}
	if got != "neuralliquid-dark" {
		t.Errorf("stored preference = %q, want %q", got, "neuralliquid-dark")
	}

	// A later request without preference cookies recovers from the session.
	w = env.do(t, http.MethodGet, "/api/v1/theme", "", sid)
	state := decodeState(t, w)
	if state.Variant != theme.VariantNeuralLiquid || state.VariantSource != theme.SourcePreference {
		t.Errorf("state = %+v, want neuralliquid from preference", state)
	}
}

func TestMutation_PublishesChange(t *testing.T) {
	env := setupHandlerEnv(t)

	var got []*settings.ChangeEvent
	env.bus.Subscribe(settings.TopicThemeChanged, func(_ context.Context, e event.Event) {
		got = append(got, e.Payload.(*settings.ChangeEvent))
	})

	env.do(t, http.MethodGet, "/api/v1/theme", "")
	if len(got) != 0 {
		t.Fatalf("resolution published %d events, want 0", len(got))
	}

	w := env.do(t, http.MethodPut, "/api/v1/theme/color-mode", `{"color_mode":"dark"}`)
	if len(got) != 1 {
		t.Fatalf("published %d events, want 1", len(got))
	}
	if sid := findCookie(w, "nl-session"); sid == nil || got[0].SessionID != sid.Value {
		t.Errorf("event session = %q, want the request session", got[0].SessionID)
	}
	if got[0].Selection.ColorMode != theme.ColorModeDark {
		t.Errorf("event color mode = %s, want dark", got[0].Selection.ColorMode)
	}

	// Setting the same mode again is not a change.
	env.do(t, http.MethodPut, "/api/v1/theme/color-mode", `{"color_mode":"dark"}`,
		&http.Cookie{Name: "nl-theme", Value: "standard-dark"})
	if len(got) != 1 {
		t.Errorf("published %d events after a no-op, want 1", len(got))
	}
}

func TestHandleForget(t *testing.T) {
	env := setupHandlerEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/theme/toggle", "")
	sid := findCookie(w, "nl-session")

	w = env.do(t, http.MethodDelete, "/api/v1/theme", "", sid)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if c := findCookie(w, "nl-theme"); c == nil || c.MaxAge >= 0 {
		t.Errorf("preference cookie not expired: %+v", c)
	}
	if _, err := env.sessions.Get(context.Background(), sid.Value, "nl-theme"); err != prefstore.ErrNotFound {
		t.Errorf("session store Get after forget: err = %v, want ErrNotFound", err)
	}
}

func TestCorporateRoute_ResolvesCorporate(t *testing.T) {
	env := setupHandlerEnv(t)

	w := env.do(t, http.MethodGet, "/corporate?theme=veritasvault-dark", "")
	if got := w.Body.String(); got != "dark experience-corporate variant-veritasvault" {
		t.Errorf("class list = %q", got)
	}

	// A standard variant in the URL is repaired on the corporate route.
	w = env.do(t, http.MethodGet, "/corporate?theme=neuralliquid-dark", "")
	if got := w.Body.String(); !strings.Contains(got, "variant-corporate") {
		t.Errorf("class list = %q, want variant-corporate", got)
	}
}

func TestCorporatePage_APICallsKeepCorporate(t *testing.T) {
	env := setupHandlerEnv(t)

	page := env.do(t, http.MethodGet, "/corporate", "")
	sid := findCookie(page, "nl-session")
	if sid == nil {
		t.Fatal("expected session cookie from the page")
	}

	w := env.doFrom(t, theme.ExperienceCorporate, http.MethodPut, "/api/v1/theme/variant", `{"variant":"veritasvault"}`, sid)
	if w.Code != http.StatusOK {
		t.Fatalf("set variant status = %d, body %s", w.Code, w.Body.String())
	}
	if got := decodeState(t, w).Selection; got.Experience != theme.ExperienceCorporate || got.Variant != theme.VariantVeritasVault {
		t.Errorf("selection = %+v, want corporate/veritasvault", got)
	}

	w = env.doFrom(t, theme.ExperienceCorporate, http.MethodPost, "/api/v1/theme/smart-toggle", "", sid)
	got := decodeState(t, w)
	want := theme.Selection{Experience: theme.ExperienceCorporate, Variant: theme.VariantVeritasVault, ColorMode: theme.ColorModeDark}
	if got.Selection != want {
		t.Fatalf("smart toggle selection = %+v, want %+v", got.Selection, want)
	}
	if got.ClassList != "dark experience-corporate variant-veritasvault" {
		t.Errorf("class_list = %q", got.ClassList)
	}
	if c := findCookie(w, "nl-experience"); c == nil || c.Value != "corporate" {
		t.Errorf("experience cookie = %v, want corporate", c)
	}

	// Reloading the page from the session store keeps the dark corporate variant.
	page = env.do(t, http.MethodGet, "/corporate", "", sid)
	if got := page.Body.String(); got != "dark experience-corporate variant-veritasvault" {
		t.Errorf("reloaded class list = %q", got)
	}

	// Without a declared experience the stored one applies.
	w = env.do(t, http.MethodGet, "/api/v1/theme", "", sid)
	if got := decodeState(t, w).Selection; got != want {
		t.Errorf("stored experience selection = %+v, want %+v", got, want)
	}
}

func TestMutation_ResponseMarkersMatchSelection(t *testing.T) {
	env := setupHandlerEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/theme/smart-toggle", "",
		&http.Cookie{Name: "nl-theme", Value: "standard-light"})
	got := decodeState(t, w)
	if got.ClassList != theme.MarkersFor(got.Selection).ClassList() {
		t.Errorf("class_list = %q, want markers of %v", got.ClassList, got.Selection)
	}
	if strings.Contains(got.ClassList, "variant-standard") {
		t.Errorf("stale marker left after smart toggle: %q", got.ClassList)
	}
}

func TestMissingProvider_FailsFast(t *testing.T) {
	env := setupHandlerEnv(t)

	w := env.do(t, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
