package sqlscan

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMultipleStatements = errors.New("only a single statement is allowed")
	ErrEmptyStatement     = errors.New("empty statement")
	ErrUnbalanced         = errors.New("unbalanced parentheses")
)

var restrictedFunctionPrefixes = []string{
	"pg_", "dblink", "lo_", "query_to_xml", "table_to_xml", "cursor_to_xml",
	"schema_to_xml", "database_to_xml", "pgstat", "pgrowlocks", "bt_", "brin_", "gin_",
	"hash_page", "hash_bitmap", "hash_metapage", "heap_", "xpath_table",
}

var restrictedFunctions = map[string]bool{
	"set_config":          true,
	"version":             true,
	"inet_server_addr":    true,
	"inet_server_port":    true,
	"current_database":    true,
	"has_table_privilege": true,
	// take the text of a query and run it
	"ts_stat":    true,
	"ts_rewrite": true,
	"crosstab":   true,
	"crosstab2":  true,
	"crosstab3":  true,
	"crosstab4":  true,
	"connectby":  true,
	// read raw pages or tuples of any relation by name
	"get_raw_page":      true,
	"page_header":       true,
	"fsm_page_contents": true,
}

// IsRestrictedFunction reports whether a tenant may not call the named function. It
// covers server administration, file access, large objects, catalog dumps, storage
// inspection and functions that execute a query passed as text.
func IsRestrictedFunction(name string) bool {
	name = strings.ToLower(name)
	if restrictedFunctions[name] {
		return true
	}
	for _, p := range restrictedFunctionPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// SingleStatement drops a trailing semicolon and fails if tokens hold more than one
// statement or none.
func SingleStatement(tokens []Token) ([]Token, error) {
	for len(tokens) > 0 && tokens[len(tokens)-1].Is(";") {
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyStatement
	}
	for _, t := range tokens {
		if t.Is(";") {
			return nil, ErrMultipleStatements
		}
	}
	return tokens, nil
}

// CheckBalanced fails if parentheses and brackets do not pair up.
func CheckBalanced(tokens []Token) error {
	var stack []string
	for _, t := range tokens {
		if t.Kind != Punct {
			continue
		}
		switch t.Text {
		case "(", "[":
			stack = append(stack, t.Text)
		case ")", "]":
			want := "("
			if t.Text == "]" {
				want = "["
			}
			if len(stack) == 0 || stack[len(stack)-1] != want {
				return ErrUnbalanced
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) != 0 {
		return ErrUnbalanced
	}
	return nil
}

// FunctionCalls returns the names of identifiers immediately followed by "(".
func FunctionCalls(tokens []Token) []string {
	var names []string
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i].IsName() && tokens[i+1].Is("(") {
			names = append(names, tokens[i].Value)
		}
	}
	return names
}

var expressionKeywords = map[string]bool{
	"select": true, "insert": true, "update": true, "delete": true, "with": true,
	"from": true, "into": true, "table": true, "create": true, "drop": true,
	"alter": true, "grant": true, "revoke": true, "copy": true, "do": true,
	"execute": true, "call": true, "truncate": true, "returning": true,
}

// CheckExpression validates a scalar expression supplied by a tenant, such as a
// column default. It must be one balanced expression with no statement keywords and
// no restricted functions.
func CheckExpression(expr string) error {
	tokens, err := Scan(expr)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return ErrEmptyStatement
	}
	for _, t := range tokens {
		if t.Is(";") {
			return ErrMultipleStatements
		}
		if t.Kind == Ident && expressionKeywords[t.Value] {
			return fmt.Errorf("keyword %q is not allowed in an expression", t.Value)
		}
		if t.Kind == Param {
			return fmt.Errorf("parameters are not allowed in an expression")
		}
	}
	if err := CheckBalanced(tokens); err != nil {
		return err
	}
	for _, fn := range FunctionCalls(tokens) {
		if IsRestrictedFunction(fn) {
			return fmt.Errorf("function %q is not allowed", fn)
		}
	}
	return nil
}
