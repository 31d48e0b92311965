package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// ReadDefinitions reads a file of table definitions separated by "---" and returns
// each document as JSON, after expanding {{ .ENV.NAME }} placeholders.
func ReadDefinitions(filename string) ([][]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	data, err = expandEnv(bytes.ReplaceAll(data, []byte("\t"), []byte("  ")))
	if err != nil {
		return nil, err
	}
	return splitDocuments(data)
}

// splitDocuments decodes every non-empty YAML document in data and re-encodes it as
// JSON.
func splitDocuments(data []byte) ([][]byte, error) {
	content := strings.TrimSpace(string(data))
	if strings.Trim(content, "- \n\t") == "" {
		return nil, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var docs [][]byte
	for i := 1; ; i++ {
		var doc map[string]any
		if err := decoder.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if len(doc) == 0 {
			continue
		}
		b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		docs = append(docs, b)
	}
	return docs, nil
}

var missingKeyPattern = regexp.MustCompile(`map has no entry for key "(.*?)"`)

// expandEnv substitutes {{ .ENV.NAME }} with variables from the environment or a .env
// file in the working directory. A missing variable is an error.
func expandEnv(input []byte) ([]byte, error) {
	if !bytes.Contains(input, []byte("{{")) {
		return input, nil
	}
	if cwd, err := os.Getwd(); err == nil {
		_ = godotenv.Load(filepath.Join(cwd, ".env"))
	}
	env := map[string]string{}
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	tmpl, err := template.New("definitions").Option("missingkey=error").Parse(string(input))
	if err != nil {
		return nil, fmt.Errorf("template error: %w", err)
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, struct{ ENV map[string]string }{env}); err != nil {
		if m := missingKeyPattern.FindStringSubmatch(err.Error()); len(m) == 2 {
			return nil, fmt.Errorf("missing environment variable: %s", m[1])
		}
		return nil, fmt.Errorf("template error: %w", err)
	}
	return out.Bytes(), nil
}

// toYAML renders a JSON document as block style YAML, keeping key order.
func toYAML(jsonDoc []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(jsonDoc, &node); err != nil {
		return nil, err
	}
	clearStyle(&node)
	var out bytes.Buffer
	enc := yaml.NewEncoder(&out)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// clearStyle drops the flow and quoting styles JSON input implies. The encoder still
// quotes strings that would otherwise read as another type.
func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}
