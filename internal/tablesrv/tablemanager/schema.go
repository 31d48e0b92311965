package tablemanager

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed tabledefinition.schema.json
var definitionSchemaJSON string

const definitionSchemaURL = "inline://tabledefinition.schema.json"

var (
	definitionSchema     *jsonschema.Schema
	definitionSchemaOnce sync.Once
	definitionSchemaErr  error
)

func compiledDefinitionSchema() (*jsonschema.Schema, error) {
	definitionSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(definitionSchemaURL, strings.NewReader(definitionSchemaJSON)); err != nil {
			definitionSchemaErr = err
			return
		}
		definitionSchema, definitionSchemaErr = compiler.Compile(definitionSchemaURL)
	})
	return definitionSchema, definitionSchemaErr
}

// validateShape checks the request body against the table definition schema and
// returns one message per offending location.
func validateShape(body []byte) ([]string, error) {
	schema, err := compiledDefinitionSchema()
	if err != nil {
		return nil, fmt.Errorf("compiling table definition schema: %w", err)
	}
	var doc any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(body, &doc); err != nil {
		return []string{"request body is not valid JSON"}, nil
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil, nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, err
	}
	var problems []string
	collectLeafErrors(ve, &problems)
	sort.Strings(problems)
	return problems, nil
}

func collectLeafErrors(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := instancePath(ve.InstanceLocation)
		*out = append(*out, loc+": "+ve.Message)
		return
	}
	for _, c := range ve.Causes {
		collectLeafErrors(c, out)
	}
}

// instancePath turns a JSON pointer such as "/columns/1/type" into "columns[1].type".
func instancePath(pointer string) string {
	if pointer == "" {
		return "definition"
	}
	var b strings.Builder
	for _, seg := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		if seg != "" && strings.Trim(seg, "0123456789") == "" {
			b.WriteString("[" + seg + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}
