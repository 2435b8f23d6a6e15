package theme

import "strings"

// EncodePreference renders a variant and color mode in the persisted
// "<variant>-<colorMode>" form, e.g. "veritasvault-dark".
func EncodePreference(v Variant, m ColorMode) string {
	return string(v) + "-" + string(m)
}

// DecodePreference parses the "<variant>-<colorMode>" form. The value is split
// on its last '-' and both halves must be known; anything else is rejected as
// a whole.
func DecodePreference(s string) (Variant, ColorMode, bool) {
	i := strings.LastIndexByte(s, '-')
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	v, m := Variant(s[:i]), ColorMode(s[i+1:])
	if !v.Valid() || !m.Valid() {
		return "", "", false
	}
	return v, m, true
}
