package sqlscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func values(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Value
	}
	return out
}

func TestScan(t *testing.T) {
	tokens, err := Scan(`SELECT "Title", count(*) FROM Todos WHERE note = 'it''s; fine' -- trailing; comment
	AND x > 1.5e3 /* nested /* comment */ ; */ AND y = $1;`)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"select", "Title", ",", "count", "(", "*", ")", "from", "todos", "where", "note", "=", "it's; fine",
		"and", "x", ">", "1.5e3", "and", "y", "=", "$1", ";",
	}, values(tokens))
	assert.Equal(t, QuotedIdent, tokens[1].Kind)
	assert.Equal(t, `"Title"`, tokens[1].Text)
	assert.Equal(t, "Todos", tokens[8].Text)
	assert.Equal(t, String, tokens[12].Kind)
	assert.Equal(t, Number, tokens[16].Kind)
	assert.Equal(t, Param, tokens[20].Kind)
}

func TestScanStrings(t *testing.T) {
	tokens, err := Scan(`E'a\'b' $$x;y$$ $tag$ $$ ; $tag$ U&"d" B'101'`)
	require.NoError(t, err)
	assert.Equal(t, []TokenKind{String, String, String, QuotedIdent, String}, kinds(tokens))
	assert.Equal(t, "a'b", tokens[0].Value)
	assert.Equal(t, "x;y", tokens[1].Value)
	assert.Equal(t, " $$ ; ", tokens[2].Value)
}

func TestScanEscapes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind TokenKind
		want string
	}{
		{"unicode identifier", `U&"t\005fx"`, QuotedIdent, "t_x"},
		{"unicode six digit", `U&"\+00006Fk"`, QuotedIdent, "ok"},
		{"unicode doubled escape", `U&'a\\b'`, String, `a\b`},
		{"uescape", `U&'d!0061t!+000061' UESCAPE '!'`, String, "data"},
		{"uescape surrogate pair", `U&"!D83D!DE00" uescape '!'`, QuotedIdent, "\U0001F600"},
		{"backslash hex and octal", `E'\x74\137\u0078'`, String, "t_x"},
		{"backslash control", `E'a\tb\n'`, String, "a\tb\n"},
		{"backslash long unicode", `E'\U0001F600'`, String, "\U0001F600"},
		{"backslash surrogate pair", `E'\uD83D\uDE00'`, String, "\U0001F600"},
		{"bare x", `E'\xg'`, String, "xg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Scan(tt.src)
			require.NoError(t, err)
			require.Len(t, tokens, 1)
			assert.Equal(t, tt.kind, tokens[0].Kind)
			assert.Equal(t, tt.want, tokens[0].Value)
			assert.Equal(t, len(tt.src), tokens[0].End)
		})
	}
}

func TestScanInvalidEscapes(t *testing.T) {
	for _, src := range []string{
		`U&"\00"`,
		`U&"\zzzz"`,
		`U&"\D83D"`,
		`U&"x" UESCAPE '+'`,
		`U&"x" UESCAPE 'ab'`,
		`U&"x" UESCAPE`,
		`E'\u12'`,
		`E'\uD83Dx'`,
	} {
		_, err := Scan(src)
		assert.ErrorIs(t, err, ErrInvalidEscape, src)
	}
}

func TestScanPositions(t *testing.T) {
	src := `select * from todos`
	tokens, err := Scan(src)
	require.NoError(t, err)
	last := tokens[len(tokens)-1]
	assert.Equal(t, "todos", src[last.Pos:last.End])
}

func TestScanOperators(t *testing.T) {
	tokens, err := Scan(`a::int>=b--c`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "::", "int", ">=", "b"}, values(tokens))
}

func TestScanUnterminated(t *testing.T) {
	for _, src := range []string{`'abc`, `"abc`, `/* abc`, `$q$ abc`} {
		_, err := Scan(src)
		assert.ErrorIs(t, err, ErrUnterminated, src)
	}
}

func TestSingleStatement(t *testing.T) {
	tokens, _ := Scan("select 1;;")
	stmt, err := SingleStatement(tokens)
	require.NoError(t, err)
	assert.Len(t, stmt, 2)

	tokens, _ = Scan("select 1; drop table x")
	_, err = SingleStatement(tokens)
	assert.ErrorIs(t, err, ErrMultipleStatements)

	tokens, _ = Scan(" ; -- nothing")
	_, err = SingleStatement(tokens)
	assert.ErrorIs(t, err, ErrEmptyStatement)
}

func TestCheckExpression(t *testing.T) {
	valid := []string{"false", "now()", "gen_random_uuid()", "'pending'", "0", "'{}'::jsonb", "current_setting('tablesrv.curr_userid', true)", "(1 + 2) * 3"}
	for _, expr := range valid {
		assert.NoError(t, CheckExpression(expr), expr)
	}
	invalid := []string{
		"",
		"now()); DROP TABLE x; --",
		"1; select 1",
		"(select 1)",
		"pg_read_file('/etc/passwd')",
		"set_config('a', 'b', false)",
		"(1 + 2",
		"$1",
		"'unterminated",
	}
	for _, expr := range invalid {
		assert.Error(t, CheckExpression(expr), expr)
	}
}

func TestIsRestrictedFunction(t *testing.T) {
	assert.True(t, IsRestrictedFunction("PG_SLEEP"))
	assert.True(t, IsRestrictedFunction("dblink_exec"))
	assert.True(t, IsRestrictedFunction("lo_import"))
	assert.True(t, IsRestrictedFunction("query_to_xml"))
	assert.True(t, IsRestrictedFunction("ts_stat"))
	assert.True(t, IsRestrictedFunction("TS_REWRITE"))
	assert.True(t, IsRestrictedFunction("crosstab"))
	assert.True(t, IsRestrictedFunction("get_raw_page"))
	assert.True(t, IsRestrictedFunction("heap_page_items"))
	assert.False(t, IsRestrictedFunction("to_tsvector"))
	assert.False(t, IsRestrictedFunction("count"))
	assert.False(t, IsRestrictedFunction("now"))
}
