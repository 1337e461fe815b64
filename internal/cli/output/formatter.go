// Package output renders mirrorctl results as YAML, JSON or plain text.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	// FormatText prints aligned key/value lines.
	FormatText Format = "text"
	// FormatYAML represents YAML output format.
	FormatYAML Format = "yaml"
	// FormatJSON represents JSON output format.
	FormatJSON Format = "json"
)

// Field is one key/value line of text output.
type Field struct {
	Key   string
	Value any
}

// Record is output that has a text rendering. Values passed to FormatData
// that are not Records are rendered as YAML in text mode.
type Record interface {
	Fields() []Field
}

// FormatData formats data according to the specified format.
func FormatData(data any, format Format) (string, error) {
	switch format {
	case FormatText:
		if r, ok := data.(Record); ok {
			return formatText(r.Fields()), nil
		}
		return formatYAML(data)
	case FormatYAML:
		return formatYAML(data)
	case FormatJSON:
		return formatJSON(data)
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// Print formats data and writes it to w.
func Print(w io.Writer, data any, format Format) error {
	formatted, err := FormatData(data, format)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, formatted)
	return err
}

func formatText(fields []Field) string {
	width := 0
	for _, f := range fields {
		width = max(width, len(f.Key))
	}

	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%-*s  %v\n", width+1, f.Key+":", f.Value)
	}
	return b.String()
}

func formatYAML(data any) (string, error) {
	bytes, err := yaml.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to format as YAML: %w", err)
	}
	return string(bytes), nil
}

func formatJSON(data any) (string, error) {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format as JSON: %w", err)
	}
	return string(bytes) + "\n", nil
}

// ParseFormat parses a format string into a Format value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "text", "":
		return FormatText, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid output format '%s': must be one of %s", s, strings.Join(Formats(), ", "))
	}
}

// Formats lists the accepted format names.
func Formats() []string {
	names := []string{string(FormatText), string(FormatYAML), string(FormatJSON)}
	sort.Strings(names)
	return names
}
