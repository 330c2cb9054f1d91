package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/fetchx/internal/constants"
)

// Common string constants used throughout the commands package.
const (
	NotAvailable = "N/A"

	// JSON formatting.
	defaultJSONIndent = 2
)

// Common static errors used throughout the commands package.
var (
	ErrAPIEndpointRequired = errors.New("API endpoint is required (use --api or fetchx config set api URL)")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrNothingToRender     = errors.New("response has no JSON body")
)

// outputFormat returns the configured output format. Without one, terminals get a
// table and pipes get JSON.
func outputFormat() string {
	if format := viper.GetString("output"); format != "" {
		return format
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return constants.FormatTable
	}

	return constants.FormatJSON
}

// StandardJSONRenderer writes data as indented JSON.
func StandardJSONRenderer[T any](w io.Writer, data T) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to JSON: %w", err)
	}

	return nil
}

// StandardYAMLRenderer writes data as YAML.
func StandardYAMLRenderer[T any](w io.Writer, data T) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(defaultJSONIndent)

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to YAML: %w", err)
	}

	return encoder.Close()
}

// render writes a decoded JSON value in the selected output format.
func render(w io.Writer, data any) error {
	switch format := outputFormat(); format {
	case constants.FormatJSON:
		return StandardJSONRenderer(w, data)
	case constants.FormatYAML:
		return StandardYAMLRenderer(w, toYAMLValue(data))
	case constants.FormatTable:
		return renderTable(w, data)
	default:
		return fmt.Errorf("%w: %q", constants.ErrInvalidOutput, format)
	}
}

func renderTable(w io.Writer, data any) error {
	switch typed := data.(type) {
	case nil:
		return ErrNothingToRender
	case []any:
		return renderRowsTable(w, typed)
	case map[string]any:
		return renderPropertyTable(w, typed)
	default:
		_, err := fmt.Fprintln(w, formatCell(typed))

		return err
	}
}

// renderPropertyTable shows one object as Property/Value rows.
func renderPropertyTable(w io.Writer, object map[string]any) error {
	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")

	for _, key := range sortedKeys(object) {
		_ = table.Append(key, formatCell(object[key]))
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// renderRowsTable shows a list of objects with one column per key seen in any row.
func renderRowsTable(w io.Writer, rows []any) error {
	if len(rows) == 0 {
		_, err := io.WriteString(w, "No results found\n")

		return err
	}

	columns := map[string]any{}
	for _, row := range rows {
		if object, ok := row.(map[string]any); ok {
			for key := range object {
				columns[key] = nil
			}
		}
	}

	if len(columns) == 0 {
		table := tablewriter.NewWriter(w)
		table.Header("Value")

		for _, row := range rows {
			_ = table.Append(formatCell(row))
		}

		return table.Render()
	}

	keys := sortedKeys(columns)
	header := make([]any, len(keys))

	for i, key := range keys {
		header[i] = strings.ToUpper(key)
	}

	table := tablewriter.NewWriter(w)
	table.Header(header...)

	for _, row := range rows {
		object, _ := row.(map[string]any)
		cells := make([]string, len(keys))

		for i, key := range keys {
			value, ok := object[key]
			if !ok {
				cells[i] = NotAvailable

				continue
			}

			cells[i] = formatCell(value)
		}

		_ = table.Append(cells)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func formatCell(value any) string {
	var text string

	switch typed := value.(type) {
	case nil:
		text = ""
	case string:
		text = typed
	case json.Number:
		text = typed.String()
	case map[string]any, []any:
		data, _ := json.Marshal(typed)
		text = string(data)
	default:
		text = fmt.Sprint(typed)
	}

	if len(text) > constants.TableCellMaxWidth {
		text = text[:constants.TableCellMaxWidth-3] + "..."
	}

	return text
}

// toYAMLValue turns json.Number leaves into plain numbers so YAML does not quote them.
func toYAMLValue(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i
		}

		if f, err := typed.Float64(); err == nil {
			return f
		}

		return typed.String()
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = toYAMLValue(item)
		}

		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = toYAMLValue(item)
		}

		return out
	default:
		return typed
	}
}

func sortedKeys(object map[string]any) []string {
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// parseKeyValues parses repeated key=value flags. A key given twice keeps both values.
func parseKeyValues(pairs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(pairs))

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: %q", constants.ErrInvalidFilterFlag, pair)
		}

		result[key] = append(result[key], value)
	}

	return result, nil
}

// readData parses the --data flag: inline JSON or @path to a JSON file. The payload
// must be a JSON object.
func readData(data string, stdin io.Reader) (map[string]any, error) {
	if data == "" {
		return nil, constants.ErrInvalidDataFlag
	}

	raw := []byte(data)

	switch {
	case data == "-":
		read, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading data from stdin: %w", err)
		}

		raw = read
	case strings.HasPrefix(data, "@"):
		// The path is supplied by the user running the CLI.
		// #nosec G304
		read, err := os.ReadFile(strings.TrimPrefix(data, "@"))
		if err != nil {
			return nil, fmt.Errorf("reading data file: %w", err)
		}

		raw = read
	}

	var object map[string]any

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	if err := decoder.Decode(&object); err != nil {
		return nil, fmt.Errorf("%w: %w", constants.ErrInvalidDataFlag, err)
	}

	if object == nil {
		return nil, constants.ErrInvalidDataFlag
	}

	return object, nil
}
