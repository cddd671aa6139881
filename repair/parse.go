package repair

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// ExcerptRadius bounds the diagnostic excerpt on each side of the failure offset.
const ExcerptRadius = 60

// Stage names, in the order they run.
const (
	StageRaw       = "raw"
	StageRepaired  = "repaired"
	StageRecovered = "recovered"
)

// ParseError describes a failed parse attempt.
type ParseError struct {
	// Stage is the stage that produced the error.
	Stage string
	// Offset is the byte offset of the failure within the parsed text, or -1.
	Offset int64
	// Reason is the decoder's description of the failure.
	Reason string
	// Excerpt is the text within ExcerptRadius bytes of Offset, rounded out
	// to rune boundaries.
	Excerpt string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%s parse failed: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("%s parse failed at offset %d: %s (near %q)", e.Stage, e.Offset, e.Reason, e.Excerpt)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Stage is one pure parse attempt over an extracted candidate.
type Stage func(candidate string) (any, error)

// NamedStage pairs a stage with its name.
type NamedStage struct {
	Name  string
	Parse Stage
}

// Fixer rewrites text before the recovered stage parses it.
// changed reports whether the rewrite altered anything.
type Fixer func(text string) (fixed string, changed bool)

var (
	adjacentAcrossLines = regexp.MustCompile(`"\s*[\n\r]\s*"`)
	adjacentInline      = regexp.MustCompile(`"\s+"`)
)

// MissingColonFixer treats two string literals separated only by whitespace
// as a key whose colon and value were lost, rewriting `"a" "b"` to
// `"a": null, "b"`. It can corrupt legitimately adjacent strings and is
// therefore reported through the parser's fix hook whenever it changes text.
func MissingColonFixer(text string) (string, bool) {
	fixed := adjacentAcrossLines.ReplaceAllString(text, `": null, "`)
	fixed = adjacentInline.ReplaceAllString(fixed, `": null, "`)
	return fixed, fixed != text
}

// FixFunc observes a fixer that changed the text.
type FixFunc func(before, after string)

// Option configures a Parser.
type Option func(*Parser)

// WithFixer replaces the recovered-stage fixer. nil disables it.
func WithFixer(f Fixer) Option {
	return func(p *Parser) {
		p.fixer = f
	}
}

// WithFixFunc installs an observer called whenever the fixer fires.
func WithFixFunc(fn FixFunc) Option {
	return func(p *Parser) {
		p.onFix = fn
	}
}

// Parser runs the staged recovery chain.
type Parser struct {
	fixer Fixer
	onFix FixFunc
}

// NewParser creates a parser using MissingColonFixer unless overridden.
func NewParser(opts ...Option) *Parser {
	p := &Parser{fixer: MissingColonFixer}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stages returns the recovery chain in execution order.
func (p *Parser) Stages() []NamedStage {
	return []NamedStage{
		{Name: StageRaw, Parse: ParseRaw},
		{Name: StageRepaired, Parse: ParseRepaired},
		{Name: StageRecovered, Parse: p.parseRecovered},
	}
}

// Result is a successful parse.
type Result struct {
	Value any
	// Stage is the name of the stage that succeeded.
	Stage string
}

// Parse runs the stages in order and returns the first success.
// If every stage fails, the error of the raw stage is returned since it
// points at the model's original mistake.
func (p *Parser) Parse(candidate string) (*Result, error) {
	var first error
	for _, stage := range p.Stages() {
		v, err := stage.Parse(candidate)
		if err == nil {
			return &Result{Value: v, Stage: stage.Name}, nil
		}
		if first == nil {
			first = err
		}
	}
	return nil, first
}

// ParseRaw parses the candidate unchanged.
func ParseRaw(candidate string) (any, error) {
	return decode(StageRaw, candidate)
}

// ParseRepaired parses Repair(candidate).
func ParseRepaired(candidate string) (any, error) {
	return decode(StageRepaired, Repair(candidate))
}

func (p *Parser) parseRecovered(candidate string) (any, error) {
	span, ok := LargestObject(Repair(candidate))
	if !ok {
		return nil, &ParseError{Stage: StageRecovered, Offset: -1, Reason: "no complete object", Err: ErrNoCandidate}
	}
	if p.fixer != nil {
		if fixed, changed := p.fixer(span); changed {
			if p.onFix != nil {
				p.onFix(span, fixed)
			}
			span = fixed
		}
	}
	return decode(StageRecovered, span)
}

func decode(stage, text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, newParseError(stage, text, err)
	}
	return v, nil
}

func newParseError(stage, text string, err error) *ParseError {
	pe := &ParseError{Stage: stage, Offset: -1, Reason: err.Error(), Err: err}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		pe.Offset = syntaxErr.Offset
		pe.Reason = syntaxErr.Error()
		pe.Excerpt = Excerpt(text, int(syntaxErr.Offset), ExcerptRadius)
	}
	return pe
}

// Excerpt returns text[offset-radius : offset+radius], clamped to the text
// and widened to rune boundaries so it is always valid UTF-8.
func Excerpt(text string, offset, radius int) string {
	if len(text) == 0 {
		return ""
	}
	offset = max(0, min(offset, len(text)))
	from := max(0, offset-radius)
	to := min(len(text), offset+radius)

	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return text[from:to]
}
