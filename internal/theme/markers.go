package theme

import (
	"sort"
	"strings"
)

// Marker is a class name downstream styling keys off.
type Marker string

// MarkerDark is present whenever the color mode is dark.
const MarkerDark Marker = "dark"

// ExperienceMarker returns the marker for a non-default experience.
func ExperienceMarker(e Experience) Marker {
	return Marker("experience-" + string(e))
}

// VariantMarker returns the marker for a variant.
func VariantMarker(v Variant) Marker {
	return Marker("variant-" + string(v))
}

// MarkerSet is an unordered set of markers.
type MarkerSet map[Marker]struct{}

// MarkersFor computes the complete marker set for s.
func MarkersFor(s Selection) MarkerSet {
	set := make(MarkerSet, 3)
	if s.Experience != DefaultExperience && s.Experience.Valid() {
		set[ExperienceMarker(s.Experience)] = struct{}{}
	}
	if s.Variant.Valid() {
		set[VariantMarker(s.Variant)] = struct{}{}
	}
	if s.ColorMode == ColorModeDark {
		set[MarkerDark] = struct{}{}
	}
	return set
}

// Has reports whether m is in the set.
func (s MarkerSet) Has(m Marker) bool {
	_, ok := s[m]
	return ok
}

// Sorted returns the markers in lexical order.
func (s MarkerSet) Sorted() []Marker {
	out := make([]Marker, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ClassList renders the set as a space separated class attribute value.
func (s MarkerSet) ClassList() string {
	sorted := s.Sorted()
	parts := make([]string, len(sorted))
	for i, m := range sorted {
		parts[i] = string(m)
	}
	return strings.Join(parts, " ")
}

// Diff returns the markers to add and to remove to turn prev into next.
// Both slices are sorted.
func Diff(prev, next MarkerSet) (add, remove []Marker) {
	for m := range next {
		if !prev.Has(m) {
			add = append(add, m)
		}
	}
	for m := range prev {
		if !next.Has(m) {
			remove = append(remove, m)
		}
	}
	sort.Slice(add, func(i, j int) bool { return add[i] < add[j] })
	sort.Slice(remove, func(i, j int) bool { return remove[i] < remove[j] })
	return add, remove
}

// MarkerSink receives marker diffs. Implementations own the rendered surface
// (an HTML class attribute, a websocket client, a terminal preview).
type MarkerSink interface {
	ApplyMarkers(add, remove []Marker)
}

// ClassSet is a MarkerSink holding the applied markers in memory.
type ClassSet struct {
	applied MarkerSet
}

// ApplyMarkers implements MarkerSink.
func (c *ClassSet) ApplyMarkers(add, remove []Marker) {
	if c.applied == nil {
		c.applied = make(MarkerSet)
	}
	for _, m := range remove {
		delete(c.applied, m)
	}
	for _, m := range add {
		c.applied[m] = struct{}{}
	}
}

// Markers returns a copy of the applied markers.
func (c *ClassSet) Markers() MarkerSet {
	out := make(MarkerSet, len(c.applied))
	for m := range c.applied {
		out[m] = struct{}{}
	}
	return out
}
