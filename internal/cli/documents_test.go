package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("TABLEBASE_TEST_COLUMN", "priority")
	t.Setenv("TABLEBASE_TEST_EMPTY", "")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "no placeholders", input: "name: todos", want: "name: todos"},
		{name: "substitution", input: "name: {{ .ENV.TABLEBASE_TEST_COLUMN }}", want: "name: priority"},
		{name: "empty value", input: "description: {{ .ENV.TABLEBASE_TEST_EMPTY }}", want: "description: "},
		{name: "missing variable", input: "name: {{ .ENV.TABLEBASE_TEST_MISSING }}", wantErr: "missing environment variable: TABLEBASE_TEST_MISSING"},
		{name: "bad template", input: "name: {{ .ENV.", wantErr: "template error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnv([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestSplitDocuments(t *testing.T) {
	input := `
---
name: todos
columns:
  - name: title
    type: text
---
---
name: tags
columns:
  - name: label
    type: varchar
    unique: true
`
	docs, err := splitDocuments([]byte(input))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.JSONEq(t, `{"name":"todos","columns":[{"name":"title","type":"text"}]}`, string(docs[0]))
	assert.JSONEq(t, `{"name":"tags","columns":[{"name":"label","type":"varchar","unique":true}]}`, string(docs[1]))

	docs, err = splitDocuments([]byte("---\n---\n"))
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = splitDocuments([]byte("name: todos\n---\nname: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document 2")
}

func TestReadDefinitions(t *testing.T) {
	t.Setenv("TABLEBASE_TEST_TABLE", "notes")
	file := filepath.Join(t.TempDir(), "tables.yaml")
	content := "name: {{ .ENV.TABLEBASE_TEST_TABLE }}\ncolumns:\n\t- name: body\n\t  type: text\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	docs, err := ReadDefinitions(file)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.JSONEq(t, `{"name":"notes","columns":[{"name":"body","type":"text"}]}`, string(docs[0]))

	_, err = ReadDefinitions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestToYAML(t *testing.T) {
	out, err := toYAML([]byte(`{"name":"todos","description":"","columns":[{"name":"done","type":"boolean","default":"false"}]}`))
	require.NoError(t, err)
	text := string(out)
	assert.True(t, strings.HasPrefix(text, "name: todos\n"), text)
	assert.Contains(t, text, `description: ""`)
	assert.Contains(t, text, `default: "false"`)
	assert.NotContains(t, text, "{")

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, "todos", back["name"])
	cols := back["columns"].([]any)
	assert.Equal(t, "false", cols[0].(map[string]any)["default"])
}
