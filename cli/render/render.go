// Package render writes command results as json, yaml or table output.
//
// A TTY defaults to table and anything else to json; --format overrides.
// --no-color only affects table headers.
package render

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/RAGGA-TIME/lifekline/cli/tui"
)

// Format is an output format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses --format. An empty string yields an empty Format so
// the caller can pick a default.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatTable, FormatYAML, "":
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer writes results in one format.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer reads --format and --no-color and writes to the app's
// writer.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	var out io.Writer = os.Stdout
	if c.App != nil && c.App.Writer != nil {
		out = c.App.Writer
	}
	if format == "" {
		format = FormatJSON
		if IsTerminal(out) {
			format = FormatTable
		}
	}
	return NewRendererWithWriter(format, c.Bool("no-color"), out), nil
}

// NewRendererWithWriter returns a renderer over out.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, noColor: noColor, out: out}
}

// Format returns the selected format.
func (r *Renderer) Format() Format {
	return r.format
}

// Render writes data in the selected format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI shows data in the interactive view registered for viewType.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

// Tabular is implemented by results with their own table layout.
// The first row is the header.
type Tabular interface {
	Rows() [][]string
}

var headerStyle = lipgloss.NewStyle().Bold(true)

func (r *Renderer) renderTable(data any) error {
	if t, ok := data.(Tabular); ok {
		return r.writeGrid(t.Rows())
	}
	v := indirect(reflect.ValueOf(data))
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return r.writeGrid(sliceRows(v))
	case reflect.Struct, reflect.Map:
		return r.writeRecord(recordFields(v))
	default:
		_, err := fmt.Fprintf(r.out, "%v\n", data)
		return err
	}
}

// writeGrid writes a header row and data rows.
func (r *Renderer) writeGrid(rows [][]string) error {
	if len(rows) < 2 {
		_, err := fmt.Fprintln(r.out, "(no results)")
		return err
	}
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	header := rows[0]
	if !r.noColor {
		header = make([]string, len(rows[0]))
		for i, h := range rows[0] {
			header[i] = headerStyle.Render(h)
		}
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows[1:] {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

type field struct {
	name  string
	value string
}

// writeRecord writes one "name: value" line per field.
func (r *Renderer) writeRecord(fields []field) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, f := range fields {
		fmt.Fprintf(w, "%s:\t%s\n", f.name, f.value)
	}
	return w.Flush()
}

// recordFields lists the shown fields of a struct, flattening embedded
// structs, or the entries of a map sorted by key.
func recordFields(v reflect.Value) []field {
	var out []field
	if v.Kind() == reflect.Map {
		keys := v.MapKeys()
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
		})
		for _, k := range keys {
			out = append(out, field{fmt.Sprint(k.Interface()), cell(v.MapIndex(k))})
		}
		return out
	}
	t := v.Type()
	for i := range t.NumField() {
		sf := t.Field(i)
		fv := v.Field(i)
		if sf.Anonymous && sf.IsExported() {
			if inner := indirect(fv); inner.Kind() == reflect.Struct {
				out = append(out, recordFields(inner)...)
				continue
			}
		}
		if shown(sf) {
			out = append(out, field{columnName(sf), cell(fv)})
		}
	}
	return out
}

// sliceRows turns a slice of structs or maps into a header and rows.
func sliceRows(v reflect.Value) [][]string {
	if v.Len() == 0 {
		return nil
	}
	if k := indirect(v.Index(0)).Kind(); k != reflect.Struct && k != reflect.Map {
		rows := [][]string{{"value"}}
		for i := range v.Len() {
			rows = append(rows, []string{cell(v.Index(i))})
		}
		return rows
	}
	first := recordFields(indirect(v.Index(0)))
	header := make([]string, len(first))
	for i, f := range first {
		header[i] = f.name
	}
	rows := [][]string{header}
	for i := range v.Len() {
		byName := make(map[string]string)
		for _, f := range recordFields(indirect(v.Index(i))) {
			byName[f.name] = f.value
		}
		row := make([]string, len(header))
		for j, h := range header {
			row[j] = byName[h]
		}
		rows = append(rows, row)
	}
	return rows
}

// shown reports whether a struct field appears in table output.
func shown(f reflect.StructField) bool {
	return f.IsExported() && f.Tag.Get("json") != "-"
}

func columnName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}

var timeType = reflect.TypeFor[time.Time]()

// cell renders one value; containers are summarized.
func cell(v reflect.Value) string {
	if v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		return cell(v.Elem())
	}
	if !v.IsValid() {
		return ""
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		if v.Type() == timeType {
			return v.Interface().(time.Time).Format(time.RFC3339)
		}
		return "{...}"
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	default:
		return fmt.Sprint(v.Interface())
	}
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v
		}
		v = v.Elem()
	}
	return v
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
