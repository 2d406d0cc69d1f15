package values

import (
	"fmt"
	"strings"
)

// Locale identifies the jurisdiction a check is executed under. Locales are
// hierarchical: "US_CA" falls back to "US" for compliance rule resolution.
// The locale belongs to the check, not the subject; mixed-locale subjects
// record both locales in audit.
type Locale string

const (
	LocaleUS Locale = "US"
	LocaleEU Locale = "EU"
	LocaleUK Locale = "UK"
	LocaleCA Locale = "CA"
	LocaleAU Locale = "AU"
)

// NewLocale normalizes and validates a locale token such as "us_ca".
func NewLocale(s string) (Locale, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	if norm == "" {
		return "", fmt.Errorf("locale is required")
	}
	for _, r := range norm {
		if (r < 'A' || r > 'Z') && r != '_' {
			return "", fmt.Errorf("invalid locale %q", s)
		}
	}
	return Locale(norm), nil
}

// Parent returns the enclosing jurisdiction, or "" at the root.
// US_CA → US, US → "".
func (l Locale) Parent() Locale {
	if idx := strings.LastIndex(string(l), "_"); idx > 0 {
		return Locale(string(l)[:idx])
	}
	return ""
}

// Contains reports whether other is l itself or a sub-jurisdiction of l.
func (l Locale) Contains(other Locale) bool {
	for cur := other; cur != ""; cur = cur.Parent() {
		if cur == l {
			return true
		}
	}
	return false
}

func (l Locale) String() string {
	return string(l)
}
