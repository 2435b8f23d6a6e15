package settings

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neuralliquid/portal/internal/config"
	"github.com/neuralliquid/portal/internal/event"
	"github.com/neuralliquid/portal/internal/prefstore"
	"github.com/neuralliquid/portal/internal/theme"
	"go.uber.org/zap"
)

// ClientHintHeader carries the browser's prefers-color-scheme media feature.
const ClientHintHeader = "Sec-CH-Prefers-Color-Scheme"

// ExperienceHeader carries the experience of the page an API call was made
// from. The "experience" query parameter is accepted as well.
const ExperienceHeader = "X-Portal-Experience"

// Provider builds a theme.Resolver for every request and publishes its
// changes on the event bus. It is the only place resolvers are created.
type Provider struct {
	cfg      config.Theme
	defaults theme.Selection
	sessions prefstore.SessionStore
	bus      *event.Bus
	logger   *zap.Logger
	skip     map[string]bool
}

// NewProvider validates the theme config and returns a Provider. Requests to
// skipPaths (and anything under /static/) get no resolver.
func NewProvider(cfg config.Theme, sessions prefstore.SessionStore, bus *event.Bus, logger *zap.Logger, skipPaths ...string) (*Provider, error) {
	defaults, err := cfg.Defaults()
	if err != nil {
		return nil, err
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = "nl-session"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = theme.DefaultTTL
	}
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &Provider{
		cfg:      cfg,
		defaults: defaults,
		sessions: sessions,
		bus:      bus,
		logger:   logger,
		skip:     skip,
	}, nil
}

type (
	sessionKey struct{}
	classesKey struct{}
)

// SessionID returns the theme session attached by the provider middleware.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// AppliedMarkers returns the markers applied to the request's marker sink
// by the provider middleware.
func AppliedMarkers(ctx context.Context) (theme.MarkerSet, bool) {
	cs, ok := ctx.Value(classesKey{}).(*theme.ClassSet)
	if !ok {
		return nil, false
	}
	return cs.Markers(), true
}

// Defaults returns the configured fallback selection.
func (p *Provider) Defaults() theme.Selection { return p.defaults }

// Middleware resolves the theme for each request and stores the resolver in
// the request context.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.skip[r.URL.Path] || strings.HasPrefix(r.URL.Path, "/static/") {
			next.ServeHTTP(w, r)
			return
		}

		sid := p.session(w, r)
		jar := &cookieJar{r: r, w: w, secure: p.cfg.SecureCookies}
		st := prefstore.Mirror(jar, prefstore.Bind(r.Context(), p.sessions, sid))

		exp, ok := ExperienceFromPath(r.URL.Path)
		if !ok {
			exp, ok = RequestedExperience(r)
		}
		if !ok {
			exp = p.storedExperience(st)
		}

		h := w.Header()
		h.Add("Accept-CH", ClientHintHeader)
		h.Add("Vary", ClientHintHeader)
		h.Add("Vary", ExperienceHeader)
		h.Add("Vary", "Cookie")

		classes := &theme.ClassSet{}
		rv := p.resolve(r.Context(), sid, exp, theme.Sources{
			Query:  r.URL.Query().Get(p.cfg.QueryParam),
			Store:  st,
			System: ClientHint(r),
		}, theme.WithMarkerSink(classes))

		ctx := context.WithValue(r.Context(), sessionKey{}, sid)
		ctx = context.WithValue(ctx, classesKey{}, classes)
		ctx = theme.NewContext(ctx, rv)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ForSession builds a resolver for a session outside an HTTP request (a
// websocket connection). Only the server-side store is consulted. An empty
// experience means the stored experience or the default.
func (p *Provider) ForSession(ctx context.Context, sid string, exp theme.Experience, system theme.SystemSource) *theme.Resolver {
	st := prefstore.Bind(ctx, p.sessions, sid)
	if !exp.Valid() {
		exp = p.storedExperience(st)
	}
	return p.resolve(ctx, sid, exp, theme.Sources{Store: st, System: system})
}

// SessionFromRequest reads the session cookie without issuing one.
func (p *Provider) SessionFromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(p.cfg.SessionCookie)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

// Forget drops a session's server-side preferences and expires the
// preference cookies.
func (p *Provider) Forget(ctx context.Context, w http.ResponseWriter, sid string) error {
	for _, name := range []string{p.cfg.Keys().Preference, p.cfg.Keys().Experience} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Secure:   p.cfg.SecureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return p.sessions.Delete(ctx, sid)
}

func (p *Provider) resolve(ctx context.Context, sid string, exp theme.Experience, src theme.Sources, opts ...theme.Option) *theme.Resolver {
	defaults := p.defaults
	if exp != defaults.Experience {
		defaults.Experience = exp
		defaults.Variant = theme.DefaultVariant(exp)
	}

	opts = append([]theme.Option{
		theme.WithLogger(p.logger.With(zap.String("session", sid))),
		theme.WithKeys(p.cfg.Keys()),
		theme.WithTTL(p.cfg.MaxAge),
	}, opts...)
	r := theme.NewResolver(defaults, opts...)
	res := r.Hydrate(src)
	observeResolution(res)

	// Subscribed after hydration so only mutations are published.
	r.Subscribe(func(sel theme.Selection) {
		p.bus.Publish(ctx, event.Event{
			Topic:  TopicThemeChanged,
			Source: "settings",
			Payload: &ChangeEvent{
				SessionID: sid,
				Selection: sel,
				Markers:   theme.MarkersFor(sel).Sorted(),
			},
		})
	})
	return r
}

func (p *Provider) storedExperience(st theme.Store) theme.Experience {
	if exp, ok := theme.StoredExperience(st, p.cfg.Keys()); ok {
		return exp
	}
	return p.defaults.Experience
}

// session returns the request's session id, issuing a new cookie when the
// request has none or an invalid one.
func (p *Provider) session(w http.ResponseWriter, r *http.Request) string {
	if sid, ok := p.SessionFromRequest(r); ok {
		return sid
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     p.cfg.SessionCookie,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(p.cfg.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   p.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

// ExperienceFromPath maps a page route to its experience. API routes carry no
// experience.
func ExperienceFromPath(path string) (theme.Experience, bool) {
	switch {
	case strings.HasPrefix(path, "/api/"):
		return "", false
	case path == "/corporate" || strings.HasPrefix(path, "/corporate/"):
		return theme.ExperienceCorporate, true
	default:
		return theme.ExperienceStandard, true
	}
}

// RequestedExperience reads the experience an API caller declared through
// ExperienceHeader or the "experience" query parameter.
func RequestedExperience(r *http.Request) (theme.Experience, bool) {
	raw := r.Header.Get(ExperienceHeader)
	if raw == "" {
		raw = r.URL.Query().Get("experience")
	}
	exp, err := theme.ParseExperience(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return exp, true
}

// ClientHint reads the Sec-CH-Prefers-Color-Scheme request header. It returns
// nil when the browser did not send a usable value.
func ClientHint(r *http.Request) theme.SystemSource {
	switch strings.Trim(strings.TrimSpace(r.Header.Get(ClientHintHeader)), `"`) {
	case "dark":
		return theme.PrefersDark(true)
	case "light":
		return theme.PrefersDark(false)
	default:
		return nil
	}
}

// cookieJar is a theme.Store over the request's cookies. Values written
// during the request are visible to later reads of the same request.
type cookieJar struct {
	r       *http.Request
	w       http.ResponseWriter
	secure  bool
	written map[string]string
}

func (j *cookieJar) Get(key string) (string, error) {
	if v, ok := j.written[key]; ok {
		return v, nil
	}
	c, err := j.r.Cookie(key)
	if err != nil {
		return "", prefstore.ErrNotFound
	}
	return c.Value, nil
}

func (j *cookieJar) Set(key, value string, ttl time.Duration) error {
	http.SetCookie(j.w, &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
	if j.written == nil {
		j.written = make(map[string]string)
	}
	j.written[key] = value
	return nil
}
