package lib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outputRecord struct {
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status" yaml:"status"`
}

func (r outputRecord) String() string          { return r.Name }
func (r outputRecord) Pretty() string          { return r.Name + " (" + r.Status + ")" }
func (r outputRecord) TableHeaders() []string { return []string{"Name", "Status"} }
func (r outputRecord) TableRow() []string     { return []string{r.Name, r.Status} }

func TestFormatOutput(t *testing.T) {
	records := []outputRecord{{Name: "a", Status: "queued"}, {Name: "b", Status: "failed"}}

	tests := []struct {
		format FormatType
		want   string
	}{
		{Text, "a\nb"},
		{Pretty, "a (queued)\nb (failed)"},
		{YAML, "- name: a\n  status: queued\n- name: b\n  status: failed\n"},
		{JSON, "[\n  {\n    \"name\": \"a\",\n    \"status\": \"queued\"\n  },\n  {\n    \"name\": \"b\",\n    \"status\": \"failed\"\n  }\n]"},
	}
	for _, tt := range tests {
		got, err := FormatOutput(records, tt.format)
		require.NoError(t, err, tt.format)
		assert.Equal(t, tt.want, got, tt.format)
	}

	table, err := FormatOutput(records, Table)
	require.NoError(t, err)
	assert.Contains(t, table, "NAME")
	assert.Contains(t, table, "failed")

	_, err = FormatOutput(records, FormatType("xml"))
	assert.Error(t, err)
}

func TestFormatOutputEmptyTable(t *testing.T) {
	table, err := FormatOutput([]outputRecord{}, Table)
	require.NoError(t, err)
	assert.NotContains(t, table, "NAME")

	text, err := FormatOutput([]outputRecord{}, Text)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestFormatOutputToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.txt")
	require.NoError(t, FormatOutputToFile([]outputRecord{{Name: "a"}}, Text, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a", string(content))
}

func TestParseFormatType(t *testing.T) {
	format, err := ParseFormatType(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, JSON, format)

	_, err = ParseFormatType("csv")
	assert.Error(t, err)
}
