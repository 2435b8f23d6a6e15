// Package theme resolves and maintains the portal's theme selection: the
// (experience, variant, color mode) tuple every rendered page is styled by.
package theme

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the Parse functions and Resolver.SetVariant.
var (
	ErrInvalidExperience      = errors.New("invalid experience")
	ErrInvalidVariant         = errors.New("invalid variant")
	ErrInvalidColorMode       = errors.New("invalid color mode")
	ErrVariantNotInExperience = errors.New("variant not available in experience")
	ErrInvalidSource          = errors.New("invalid source")
)

// Experience is a product line. It decides which variants are legal.
type Experience string

// Experiences.
const (
	ExperienceStandard  Experience = "standard"
	ExperienceCorporate Experience = "corporate"
)

// DefaultExperience is the experience that carries no marker.
const DefaultExperience = ExperienceStandard

// Variant is a named visual skin scoped to one experience.
type Variant string

// Variants. Each experience owns exactly two: a light-styled default and a
// dark-styled companion.
const (
	VariantStandard     Variant = "standard"
	VariantNeuralLiquid Variant = "neuralliquid"
	VariantCorporate    Variant = "corporate"
	VariantVeritasVault Variant = "veritasvault"
)

// ColorMode is the light/dark display mode.
type ColorMode string

// Color modes.
const (
	ColorModeLight ColorMode = "light"
	ColorModeDark  ColorMode = "dark"
)

// variantTable lists the legal variants per experience. Index 0 is the
// experience default (light-styled), index 1 the dark-styled variant.
var variantTable = map[Experience][2]Variant{
	ExperienceStandard:  {VariantStandard, VariantNeuralLiquid},
	ExperienceCorporate: {VariantCorporate, VariantVeritasVault},
}

// Experiences returns all experiences in display order.
func Experiences() []Experience {
	return []Experience{ExperienceStandard, ExperienceCorporate}
}

// Valid reports whether e is a known experience.
func (e Experience) Valid() bool {
	_, ok := variantTable[e]
	return ok
}

// Valid reports whether v belongs to some experience.
func (v Variant) Valid() bool {
	_, ok := ExperienceOf(v)
	return ok
}

// Valid reports whether m is light or dark.
func (m ColorMode) Valid() bool {
	return m == ColorModeLight || m == ColorModeDark
}

// Opposite returns the other color mode. Unknown modes flip to dark.
func (m ColorMode) Opposite() ColorMode {
	if m == ColorModeDark {
		return ColorModeLight
	}
	return ColorModeDark
}

// ParseExperience validates s as an experience.
func ParseExperience(s string) (Experience, error) {
	e := Experience(s)
	if !e.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidExperience, s)
	}
	return e, nil
}

// ParseVariant validates s as a variant.
func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidVariant, s)
	}
	return v, nil
}

// ParseColorMode validates s as a color mode.
func ParseColorMode(s string) (ColorMode, error) {
	m := ColorMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidColorMode, s)
	}
	return m, nil
}

// VariantsFor returns the legal variants of e, default first.
// Unknown experiences have no variants.
func VariantsFor(e Experience) []Variant {
	row, ok := variantTable[e]
	if !ok {
		return nil
	}
	return []Variant{row[0], row[1]}
}

// DefaultVariant returns the light-styled default variant of e.
func DefaultVariant(e Experience) Variant {
	return variantTable[e][0]
}

// DarkVariant returns the dark-styled variant of e.
func DarkVariant(e Experience) Variant {
	return variantTable[e][1]
}

// ExperienceOf returns the experience that owns v.
func ExperienceOf(v Variant) (Experience, bool) {
	for e, row := range variantTable {
		if row[0] == v || row[1] == v {
			return e, true
		}
	}
	return "", false
}

// Allows reports whether v is legal for e.
func (e Experience) Allows(v Variant) bool {
	row, ok := variantTable[e]
	return ok && (row[0] == v || row[1] == v)
}

// Selection is the resolved theme tuple.
type Selection struct {
	Experience Experience `json:"experience"`
	Variant    Variant    `json:"variant"`
	ColorMode  ColorMode  `json:"color_mode"`
}

// Valid reports whether every field is known and the variant belongs to the
// experience.
func (s Selection) Valid() bool {
	return s.Experience.Valid() && s.ColorMode.Valid() && s.Experience.Allows(s.Variant)
}

// Repair returns s with unknown fields replaced: an unknown experience becomes
// DefaultExperience, an unknown color mode becomes light, and a variant outside
// the experience becomes the experience default.
func (s Selection) Repair() Selection {
	if !s.Experience.Valid() {
		s.Experience = DefaultExperience
	}
	if !s.ColorMode.Valid() {
		s.ColorMode = ColorModeLight
	}
	if !s.Experience.Allows(s.Variant) {
		s.Variant = DefaultVariant(s.Experience)
	}
	return s
}

// String renders the selection as experience/variant-mode.
func (s Selection) String() string {
	return string(s.Experience) + "/" + EncodePreference(s.Variant, s.ColorMode)
}
