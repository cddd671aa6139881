// Package repair recovers a JSON document from free-form model output.
//
// Recovery runs as a chain of pure stages over the extracted candidate:
//
//  1. raw: parse the candidate as-is
//  2. repaired: parse Repair(candidate)
//  3. recovered: parse the largest balanced object of the repaired text,
//     after an optional Fixer (by default the missing-colon heuristic)
//
// A stage runs only if the previous one failed.
package repair

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoCandidate is returned when the text contains no '{' at all.
var ErrNoCandidate = errors.New("no JSON object found in response")

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractCandidate isolates the JSON document embedded in text.
// A fenced code block wins; otherwise the span from the first '{' to the
// last '}' is used. When the object was cut off and no '}' follows the
// first '{', the rest of the text is returned for the stages to diagnose.
func ExtractCandidate(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoCandidate
	}

	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), nil
	}

	end := strings.LastIndexByte(text, '}')
	if end < start {
		return strings.TrimSpace(text[start:]), nil
	}
	return text[start : end+1], nil
}

// LargestObject returns the longest balanced {...} span in text, tracking
// string literals so braces inside strings do not count. If no span closes,
// the first '{' to last '}' range is returned. ok is false when neither exists.
func LargestObject(text string) (span string, ok bool) {
	var (
		depth    int
		start    = -1
		bestFrom = -1
		bestTo   = -1
		inString bool
		escaped  bool
	)

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && i+1-start > bestTo-bestFrom {
				bestFrom, bestTo = start, i+1
			}
		}
	}

	if bestFrom >= 0 {
		return text[bestFrom:bestTo], true
	}

	first := strings.IndexByte(text, '{')
	last := strings.LastIndexByte(text, '}')
	if first >= 0 && last > first {
		return text[first : last+1], true
	}
	return "", false
}
