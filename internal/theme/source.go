package theme

import (
	"fmt"
	"time"
)

// Default persistence keys and lifetime.
const (
	DefaultPreferenceKey = "theme"
	DefaultExperienceKey = "experience"
	DefaultTTL           = 30 * 24 * time.Hour
)

// Store is a durable key/value preference store (a cookie jar, a session
// table). Implementations may fail; the resolver treats every failure as an
// absent value on read and ignores it on write.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string, ttl time.Duration) error
}

// SystemSource reports the platform's dark mode preference. known is false
// when the platform did not say.
type SystemSource interface {
	PrefersDark() (dark, known bool)
}

// SystemFunc adapts a function to SystemSource.
type SystemFunc func() (dark, known bool)

// PrefersDark implements SystemSource.
func (f SystemFunc) PrefersDark() (dark, known bool) { return f() }

// PrefersDark returns a SystemSource with a fixed answer.
func PrefersDark(dark bool) SystemSource {
	return SystemFunc(func() (bool, bool) { return dark, true })
}

// Keys names the two persisted values.
type Keys struct {
	Preference string
	Experience string
}

func (k Keys) preference() string {
	if k.Preference == "" {
		return DefaultPreferenceKey
	}
	return k.Preference
}

func (k Keys) experience() string {
	if k.Experience == "" {
		return DefaultExperienceKey
	}
	return k.Experience
}

// Sources are the inputs observed once at resolution time. Any of them may be
// absent: Query empty, Store or System nil.
type Sources struct {
	// Query is the raw "<variant>-<colorMode>" URL parameter value.
	Query  string
	Store  Store
	System SystemSource
	Keys   Keys
}

// Source identifies where a resolved field came from.
type Source int

// Sources in ascending priority. SourceExplicit marks a value set by a
// mutation after resolution.
const (
	SourceDefault Source = iota
	SourceSystem
	SourcePreference
	SourceQuery
	SourceExplicit
)

func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceSystem:
		return "system"
	case SourcePreference:
		return "preference"
	case SourceQuery:
		return "query"
	case SourceExplicit:
		return "explicit"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// MarshalText renders the source name in JSON payloads.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a source name written by MarshalText.
func (s *Source) UnmarshalText(text []byte) error {
	v, err := ParseSource(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSource returns the Source named name.
func ParseSource(name string) (Source, error) {
	for src := SourceDefault; src <= SourceExplicit; src++ {
		if src.String() == name {
			return src, nil
		}
	}
	return SourceDefault, fmt.Errorf("%w: %q", ErrInvalidSource, name)
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Selection       Selection
	VariantSource   Source
	ColorModeSource Source
	// StoreErr is the swallowed error from reading the store, if any.
	StoreErr error
}

// Resolve picks a selection from src in priority order: URL parameter,
// persisted preference, system preference, then defaults. The experience is
// always taken from defaults. Malformed values are skipped. The returned
// selection always satisfies the variant membership rule.
func Resolve(src Sources, defaults Selection) Resolution {
	res := Resolution{Selection: defaults}

	if v, m, ok := DecodePreference(src.Query); ok {
		res.Selection.Variant, res.Selection.ColorMode = v, m
		res.VariantSource, res.ColorModeSource = SourceQuery, SourceQuery
	} else if src.Store != nil {
		raw, err := safeGet(src.Store, src.Keys.preference())
		if err != nil {
			res.StoreErr = err
		} else if v, m, ok := DecodePreference(raw); ok {
			res.Selection.Variant, res.Selection.ColorMode = v, m
			res.VariantSource, res.ColorModeSource = SourcePreference, SourcePreference
		}
	}

	if res.ColorModeSource == SourceDefault && src.System != nil {
		if dark, known := safePrefersDark(src.System); known {
			res.Selection.ColorMode = ColorModeLight
			if dark {
				res.Selection.ColorMode = ColorModeDark
			}
			res.ColorModeSource = SourceSystem
		}
	}

	repaired := res.Selection.Repair()
	if repaired.Variant != res.Selection.Variant {
		res.VariantSource = SourceDefault
	}
	res.Selection = repaired
	return res
}

// StoredExperience reads the persisted experience from st. A failing or
// panicking store and an unknown value all report false.
func StoredExperience(st Store, keys Keys) (Experience, bool) {
	if st == nil {
		return "", false
	}
	raw, err := safeGet(st, keys.experience())
	if err != nil {
		return "", false
	}
	e, err := ParseExperience(raw)
	if err != nil {
		return "", false
	}
	return e, true
}

func safeGet(st Store, key string) (value string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value, err = "", fmt.Errorf("store get %q panicked: %v", key, rec)
		}
	}()
	return st.Get(key)
}

func safeSet(st Store, key, value string, ttl time.Duration) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("store set %q panicked: %v", key, rec)
		}
	}()
	return st.Set(key, value, ttl)
}

func safePrefersDark(sys SystemSource) (dark, known bool) {
	defer func() {
		if rec := recover(); rec != nil {
			dark, known = false, false
		}
	}()
	return sys.PrefersDark()
}
