// Package airports holds the airport directory and display-name helpers.
package airports

import (
	"regexp"
	"strings"
)

// Airport is one entry of the directory.
type Airport struct {
	IATA    string   `json:"iata"`
	Name    string   `json:"name"`
	City    string   `json:"city,omitempty"`
	Country string   `json:"country,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
}

var (
	codePattern    = regexp.MustCompile(`^[A-Za-z]{3}$`)
	upperCode      = regexp.MustCompile(`^[A-Z]{3}$`)
	displayPattern = regexp.MustCompile(`^.+\s\([A-Z]{3}\)$`)
	parenthesised  = regexp.MustCompile(`\(([^)]+)\)`)
)

// ValidCode reports whether code is three letters, in any case.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// NormalizeCode trims and upper-cases an airport code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DisplayName renders "Name (CODE)".
func DisplayName(a Airport) string {
	return a.Name + " (" + NormalizeCode(a.IATA) + ")"
}

// IsValidDisplay reports whether s has the "Name (XXX)" shape with an
// upper-case code.
func IsValidDisplay(s string) bool {
	return displayPattern.MatchString(s)
}

// CodeFromDisplay extracts the parenthesised part of a display name. A
// three-letter upper-case code is returned lower-cased; anything else is
// returned as written, and "" when there is no parenthesised part.
func CodeFromDisplay(s string) string {
	m := parenthesised.FindStringSubmatch(s)
	if m == nil || m[1] == "" {
		return ""
	}
	if upperCode.MatchString(m[1]) {
		return strings.ToLower(m[1])
	}
	return m[1]
}

// matches reports whether the lower-cased query occurs in any searchable field.
func (a Airport) matches(query string) bool {
	if strings.Contains(strings.ToLower(DisplayName(a)), query) ||
		strings.Contains(strings.ToLower(a.City), query) {
		return true
	}
	for _, alias := range a.Aliases {
		if strings.Contains(strings.ToLower(alias), query) {
			return true
		}
	}
	return false
}
