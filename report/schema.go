package report

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldChartPoints is the only mandatory document field.
const FieldChartPoints = "chartPoints"

const schemaURL = "https://lifekline.local/schema/report.schema.json"

//go:embed schema/report.schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// SchemaError reports a parsed document that does not have the report shape.
type SchemaError struct {
	// Field is the offending field, e.g. "chartPoints" or "chartPoints[3]".
	// Empty when the document itself has the wrong type.
	Field  string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid report document: %s", e.Reason)
	}
	return fmt.Sprintf("invalid report document: %s: %s", e.Field, e.Reason)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsSchemaError returns true if err is a *SchemaError.
func IsSchemaError(err error) bool {
	var schemaErr *SchemaError
	return errors.As(err, &schemaErr)
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Validate checks a decoded JSON value against the report schema.
func Validate(doc any) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &SchemaError{Reason: err.Error(), Err: err}
	}
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	return &SchemaError{
		Field:  fieldName(leaf),
		Reason: leaf.Message,
		Err:    err,
	}
}

var quotedProperty = regexp.MustCompile(`'([^']+)'`)

// fieldName renders the instance location of a validation failure as a
// field path. Missing required properties are reported at their parent, so
// the property name is recovered from the message.
func fieldName(e *jsonschema.ValidationError) string {
	var parts []string
	for _, tok := range strings.Split(strings.TrimPrefix(e.InstanceLocation, "/"), "/") {
		if tok == "" {
			continue
		}
		if _, err := strconv.Atoi(tok); err == nil && len(parts) > 0 {
			parts[len(parts)-1] += "[" + tok + "]"
			continue
		}
		parts = append(parts, tok)
	}
	if strings.Contains(e.Message, "missing properties") {
		if m := quotedProperty.FindStringSubmatch(e.Message); m != nil {
			parts = append(parts, m[1])
		}
	}
	return strings.Join(parts, ".")
}
