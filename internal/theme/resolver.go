package theme

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Resolver holds one theme selection and keeps its store, marker sink and
// subscribers in step with it. A Resolver belongs to a single request or
// connection and is not safe for concurrent use.
//
// A new Resolver only knows the caller's defaults. It performs no persistence
// and applies no markers until Hydrate has observed the real sources.
type Resolver struct {
	defaults   Selection
	sel        Selection
	variantSrc Source
	modeSrc    Source

	store    Store
	keys     Keys
	ttl      time.Duration
	sink     MarkerSink
	applied  MarkerSet
	hydrated bool

	subs   []subscriber
	nextID uint64
	logger *zap.Logger
}

type subscriber struct {
	id uint64
	fn func(Selection)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for swallowed storage failures.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithMarkerSink sets where marker diffs are applied.
func WithMarkerSink(s MarkerSink) Option {
	return func(r *Resolver) { r.sink = s }
}

// WithKeys overrides the persistence key names.
func WithKeys(k Keys) Option {
	return func(r *Resolver) { r.keys = k }
}

// WithTTL overrides the persistence lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewResolver returns a Resolver holding defaults, repaired to satisfy the
// variant membership rule.
func NewResolver(defaults Selection, opts ...Option) *Resolver {
	r := &Resolver{
		ttl:     DefaultTTL,
		applied: make(MarkerSet),
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	r.defaults = defaults.Repair()
	r.sel = r.defaults
	return r
}

// Hydrate resolves the selection against src, keeping the current
// experience, and from then on persists mutations to src.Store and applies
// markers. Hydrate itself writes nothing to the store.
func (r *Resolver) Hydrate(src Sources) Resolution {
	src.Keys = r.keys
	defaults := r.defaults
	defaults.Experience = r.sel.Experience

	res := Resolve(src, defaults)
	if res.StoreErr != nil {
		r.logger.Debug("preference store read failed", zap.Error(res.StoreErr))
	}

	prev := r.sel
	r.sel = res.Selection
	r.variantSrc, r.modeSrc = res.VariantSource, res.ColorModeSource
	r.store = src.Store
	r.hydrated = true

	r.applyMarkers()
	if prev != r.sel {
		r.notify()
	}
	return res
}

// Hydrated reports whether Hydrate has run.
func (r *Resolver) Hydrated() bool { return r.hydrated }

// Selection returns the current selection.
func (r *Resolver) Selection() Selection { return r.sel }

// Markers returns the marker set for the current selection.
func (r *Resolver) Markers() MarkerSet { return MarkersFor(r.sel) }

// VariantSource reports where the current variant came from.
func (r *Resolver) VariantSource() Source { return r.variantSrc }

// ColorModeSource reports where the current color mode came from.
func (r *Resolver) ColorModeSource() Source { return r.modeSrc }

// SetExperience switches the experience. A variant that is not legal for e is
// replaced by e's default variant.
func (r *Resolver) SetExperience(e Experience) error {
	if !e.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidExperience, e)
	}
	next := r.sel
	next.Experience = e
	if !e.Allows(next.Variant) {
		next.Variant = DefaultVariant(e)
		r.variantSrc = SourceDefault
	}
	r.commit(next)
	return nil
}

// SetVariant switches the variant. A variant owned by another experience is
// rejected and the selection is left unchanged.
func (r *Resolver) SetVariant(v Variant) error {
	if !v.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidVariant, v)
	}
	if !r.sel.Experience.Allows(v) {
		return fmt.Errorf("%w: %s is not a %s variant", ErrVariantNotInExperience, v, r.sel.Experience)
	}
	next := r.sel
	next.Variant = v
	r.variantSrc = SourceExplicit
	r.commit(next)
	return nil
}

// SetColorMode sets the color mode explicitly.
func (r *Resolver) SetColorMode(m ColorMode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidColorMode, m)
	}
	next := r.sel
	next.ColorMode = m
	r.modeSrc = SourceExplicit
	r.commit(next)
	return nil
}

// ToggleColorMode flips between light and dark.
func (r *Resolver) ToggleColorMode() {
	next := r.sel
	next.ColorMode = r.sel.ColorMode.Opposite()
	r.modeSrc = SourceExplicit
	r.commit(next)
}

// SmartToggle flips the color mode and moves the variant with it: leaving
// light selects the experience's dark-styled variant, leaving dark selects its
// default variant.
func (r *Resolver) SmartToggle() {
	next := r.sel
	if r.sel.ColorMode == ColorModeDark {
		next.ColorMode = ColorModeLight
		next.Variant = DefaultVariant(next.Experience)
	} else {
		next.ColorMode = ColorModeDark
		next.Variant = DarkVariant(next.Experience)
	}
	r.variantSrc, r.modeSrc = SourceExplicit, SourceExplicit
	r.commit(next)
}

// ApplySystemPreference re-runs the color mode step alone after the platform
// preference changed. It only acts while the color mode still comes from the
// system or the default, and it never persists. It reports whether the
// preference was taken.
func (r *Resolver) ApplySystemPreference(dark bool) bool {
	if r.modeSrc != SourceSystem && r.modeSrc != SourceDefault {
		return false
	}
	next := r.sel
	next.ColorMode = ColorModeLight
	if dark {
		next.ColorMode = ColorModeDark
	}
	r.modeSrc = SourceSystem

	prev := r.sel
	r.sel = next
	if r.hydrated {
		r.applyMarkers()
	}
	if prev != r.sel {
		r.notify()
	}
	return true
}

// Subscribe registers fn to be called synchronously after every change.
// The returned function removes the subscription.
func (r *Resolver) Subscribe(fn func(Selection)) (unsubscribe func()) {
	id := r.nextID
	r.nextID++
	r.subs = append(r.subs, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// commit installs next and runs the mutation side effects.
func (r *Resolver) commit(next Selection) {
	prev := r.sel
	r.sel = next
	if r.hydrated {
		r.persist()
		r.applyMarkers()
	}
	if prev != r.sel {
		r.notify()
	}
}

func (r *Resolver) persist() {
	if r.store == nil {
		return
	}
	if err := safeSet(r.store, r.keys.preference(), EncodePreference(r.sel.Variant, r.sel.ColorMode), r.ttl); err != nil {
		r.logger.Debug("persist theme preference failed", zap.Error(err))
	}
	if err := safeSet(r.store, r.keys.experience(), string(r.sel.Experience), r.ttl); err != nil {
		r.logger.Debug("persist experience failed", zap.Error(err))
	}
}

func (r *Resolver) applyMarkers() {
	next := MarkersFor(r.sel)
	add, remove := Diff(r.applied, next)
	r.applied = next
	if r.sink != nil && (len(add) > 0 || len(remove) > 0) {
		r.sink.ApplyMarkers(add, remove)
	}
}

func (r *Resolver) notify() {
	subs := make([]subscriber, len(r.subs))
	copy(subs, r.subs)
	for _, s := range subs {
		s.fn(r.sel)
	}
}
