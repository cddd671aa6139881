// Package config loads lifekline.yaml, the defaults file for lifekline
// commands. CLI flags always override file values.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// reference matches ${VAR}, ${VAR:-fallback} and ${VAR:?message}.
var reference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}`)

// LookupFunc resolves a variable name, reporting whether it is set.
type LookupFunc func(name string) (string, bool)

// MissingVarError reports a ${VAR:?message} reference whose variable is
// unset or empty.
type MissingVarError struct {
	Name    string
	Message string
}

func (e *MissingVarError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s is required", e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// ExpandEnv expands variable references against the process environment.
// Unset variables without a fallback expand to "".
func ExpandEnv(input string) string {
	out, _ := expand(input, os.LookupEnv, false)
	return out
}

// Expand expands references using lookup. A ${VAR:?message} reference to
// an unset or empty variable yields a *MissingVarError. Bare $VAR is left
// untouched.
func Expand(input string, lookup LookupFunc) (string, error) {
	return expand(input, lookup, true)
}

func expand(input string, lookup LookupFunc, strict bool) (string, error) {
	matches := reference.FindAllStringSubmatchIndex(input, -1)
	if len(matches) == 0 {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	last := 0
	for _, m := range matches {
		b.WriteString(input[last:m[0]])
		last = m[1]

		name := input[m[2]:m[3]]
		var op, arg string
		if m[4] >= 0 {
			op, arg = input[m[4]:m[5]], input[m[6]:m[7]]
		}

		value, ok := lookup(name)
		if ok && value != "" {
			b.WriteString(value)
			continue
		}
		switch op {
		case ":-":
			b.WriteString(arg)
		case ":?":
			if strict {
				return "", &MissingVarError{Name: name, Message: arg}
			}
		}
	}
	b.WriteString(input[last:])
	return b.String(), nil
}
