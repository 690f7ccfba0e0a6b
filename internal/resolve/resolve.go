// Package resolve maps user-entered country names to canonical dataset identifiers.
package resolve

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyName is returned when the input is blank.
var ErrEmptyName = errors.New("country name is empty")

// ambiguousName never resolves on its own.
const ambiguousName = "Congo"

var congoOptions = []string{"Congo (Brazzaville)", "Congo (Kinshasa)"}

// Lookup reports whether a canonical identifier exists.
type Lookup interface {
	Has(country string) bool
}

// AmbiguousNameError is returned for names that match several countries.
type AmbiguousNameError struct {
	Input   string
	Options []string
}

func (e *AmbiguousNameError) Error() string {
	quoted := make([]string, len(e.Options))
	for i, o := range e.Options {
		quoted[i] = "[" + o + "]"
	}
	return fmt.Sprintf("%q is ambiguous: type either %s", e.Input, strings.Join(quoted, " or "))
}

// UnknownCountryError is returned when no dataset country matches the input.
type UnknownCountryError struct {
	Input string
}

func (e *UnknownCountryError) Error() string {
	return fmt.Sprintf("country %q not found, check the spelling and try again", e.Input)
}

// aliases is keyed by the lower-cased spelling.
var aliases = buildAliases(map[string][]string{
	"US": {
		"United States", "United States of America", "USA", "U.S.A", "U.S.A.", "US", "U.S.",
	},
	"Cote d'Ivoire": {"Ivory Coast"},
	"Korea, South":  {"South Korea", "Korea"},
	"United Kingdom": {
		"UK", "U.K.", "England", "Scotland", "Wales", "Northern Ireland", "Great Britain",
	},
	"Netherlands": {"Holland"},
	ambiguousName: {"Congo"},
})

func buildAliases(groups map[string][]string) map[string]string {
	out := map[string]string{}
	for canonical, spellings := range groups {
		for _, s := range spellings {
			out[aliasKey(s)] = canonical
		}
	}
	return out
}

func aliasKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Resolve canonicalizes raw against the alias table and checks that the
// result exists in ref.
func Resolve(raw string, ref Lookup) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrEmptyName
	}
	if canonical, ok := aliases[aliasKey(name)]; ok {
		name = canonical
	}
	if name == ambiguousName {
		return "", &AmbiguousNameError{Input: raw, Options: append([]string(nil), congoOptions...)}
	}
	if ref == nil || !ref.Has(name) {
		return "", &UnknownCountryError{Input: raw}
	}
	return name, nil
}

// Aliases returns a copy of the alias table, keyed by lower-cased spelling.
func Aliases() map[string]string {
	out := make(map[string]string, len(aliases))
	for k, v := range aliases {
		out[k] = v
	}
	return out
}
