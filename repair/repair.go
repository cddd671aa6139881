package repair

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Repair normalizes common model mistakes so the text can be parsed as JSON:
//   - a leading byte order mark is removed;
//   - typographic double quotes used as string delimiters become '"';
//     inside a string opened by '"', one closes the string when it is
//     followed only by whitespace before ',', ':', '}', ']' or the end;
//   - typographic single quotes outside strings become ASCII apostrophes;
//   - commas followed only by whitespace or commas before '}' or ']' are dropped;
//   - raw control characters inside string literals are escaped.
//
// Outside string literals everything else passes through unchanged.
// Other typographic quotes inside a string opened by '"' are content and are kept.
// Repair is idempotent: Repair(Repair(s)) == Repair(s).
func Repair(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")

	var b strings.Builder
	b.Grow(len(text) + len(text)/16)

	var (
		inString bool
		smart    bool // current string was opened by a typographic quote
		escaped  bool
	)

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		raw := text[i : i+size]

		switch {
		case inString && escaped:
			b.WriteString(raw)
			escaped = false
		case inString && r == '\\':
			b.WriteByte('\\')
			escaped = true
		case inString && (r == '"' || isSmartDouble(r) && (smart || endsValue(text[i+size:]))):
			b.WriteByte('"')
			inString = false
		case inString:
			writeStringRune(&b, r, raw)
		case r == '"' || isSmartDouble(r):
			b.WriteByte('"')
			inString = true
			smart = r != '"'
		case isSmartSingle(r):
			b.WriteByte('\'')
		case r == ',' && closesNext(text[i+size:]):
			// trailing comma
		default:
			b.WriteString(raw)
		}
		i += size
	}

	return b.String()
}

func isSmartDouble(r rune) bool {
	return r == '\u201c' || r == '\u201d'
}

func isSmartSingle(r rune) bool {
	return r == '\u2018' || r == '\u2019'
}

// closesNext reports whether rest starts with whitespace or commas
// followed by a closing bracket.
func closesNext(rest string) bool {
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case ' ', '\t', '\n', '\r', ',':
			continue
		case '}', ']':
			return true
		default:
			return false
		}
	}
	return false
}

// endsValue reports whether rest starts with optional whitespace followed
// by a delimiter that can follow a string, or is empty after whitespace.
func endsValue(rest string) bool {
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case ',', ':', '}', ']':
			return true
		default:
			return false
		}
	}
	return true
}

func writeStringRune(b *strings.Builder, r rune, raw string) {
	switch {
	case r == '\n':
		b.WriteString(`\n`)
	case r == '\r':
		b.WriteString(`\r`)
	case r == '\t':
		b.WriteString(`\t`)
	case r < 0x20:
		fmt.Fprintf(b, `\u%04x`, r)
	default:
		b.WriteString(raw)
	}
}
