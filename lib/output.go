package lib

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// FormatType selects how CLI listings are rendered
type FormatType string

const (
	Pretty FormatType = "pretty"
	Text   FormatType = "text"
	JSON   FormatType = "json"
	YAML   FormatType = "yaml"
	Table  FormatType = "table"
)

var formatTypes = []FormatType{Table, Pretty, Text, JSON, YAML}

// Formattable is implemented by records printed by the CLI
type Formattable interface {
	String() string
	Pretty() string
	TableHeaders() []string
	TableRow() []string
}

// FormatOutput renders records in the given format. Table output takes its
// headers from the first record and prints an empty table for no records.
func FormatOutput[T Formattable](records []T, format FormatType) (string, error) {
	switch format {
	case Text:
		return joinLines(records, func(r T) string { return r.String() }), nil
	case Pretty:
		return joinLines(records, func(r T) string { return r.Pretty() }), nil
	case JSON:
		out, err := json.MarshalIndent(records, "", "  ")
		return string(out), err
	case YAML:
		out, err := yaml.Marshal(records)
		return string(out), err
	case Table:
		return renderTable(records), nil
	}
	return "", fmt.Errorf("unknown format: %v", format)
}

func joinLines[T Formattable](records []T, line func(T) string) string {
	lines := make([]string, 0, len(records))
	for _, record := range records {
		lines = append(lines, line(record))
	}
	return strings.Join(lines, "\n")
}

func renderTable[T Formattable](records []T) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetBorder(true)
	for i, record := range records {
		if i == 0 {
			table.SetHeader(record.TableHeaders())
		}
		table.Append(record.TableRow())
	}
	table.Render()
	return buf.String()
}

// FormatOutputToFile writes the rendered records to path
func FormatOutputToFile[T Formattable](records []T, format FormatType, path string) error {
	out, err := FormatOutput(records, format)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(out), 0644)
}

// ParseFormatType accepts a format name in any case
func ParseFormatType(name string) (FormatType, error) {
	format := FormatType(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range formatTypes {
		if format == known {
			return format, nil
		}
	}
	return "", fmt.Errorf("unknown format %q, expected one of %v", name, formatTypes)
}
