// Package sqlscan tokenizes PostgreSQL statements. It understands comments, quoted
// identifiers, escape and dollar-quoted strings well enough to find identifiers and
// statement boundaries; it does not parse grammar.
package sqlscan

import (
	"errors"
	"fmt"
	"strings"
)

type TokenKind int

const (
	Ident       TokenKind = iota // unquoted identifier or keyword
	QuotedIdent                  // "double quoted"
	String                       // 'literal', E'literal', $tag$literal$tag$
	Number
	Param // $1
	Punct // ( ) , ; . [ ]
	Operator
)

func (k TokenKind) String() string {
	switch k {
	case Ident:
		return "identifier"
	case QuotedIdent:
		return "quoted identifier"
	case String:
		return "string"
	case Number:
		return "number"
	case Param:
		return "parameter"
	case Punct:
		return "punctuation"
	case Operator:
		return "operator"
	}
	return "unknown"
}

// Token is a lexical token. Value is the identifier as PostgreSQL resolves it:
// lowercased when unquoted, unescaped when quoted. Text is the source text.
type Token struct {
	Kind  TokenKind
	Value string
	Text  string
	Pos   int
	End   int

	unicodeEscapes bool // U& form, decoded once a UESCAPE clause has been seen
}

// Is reports whether t is the unquoted keyword or punctuation s.
func (t Token) Is(s string) bool {
	switch t.Kind {
	case Ident:
		return t.Value == s
	case Punct, Operator:
		return t.Text == s
	}
	return false
}

// IsName reports whether t names an object, quoted or not.
func (t Token) IsName() bool {
	return t.Kind == Ident || t.Kind == QuotedIdent
}

var (
	ErrUnterminated  = errors.New("unterminated token")
	ErrInvalidEscape = errors.New("invalid escape sequence")
)

// Scan splits src into tokens, dropping whitespace and comments. Escapes in E-strings
// and in U& literals and identifiers are decoded into Value.
func Scan(src string) ([]Token, error) {
	s := &scanner{src: src}
	var tokens []Token
	for {
		tok, ok, err := s.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		tokens = append(tokens, tok)
	}
	return decodeUnicodeTokens(tokens)
}

// decodeUnicodeTokens decodes U& tokens, folding a trailing UESCAPE 'c' clause into the
// token it applies to.
func decodeUnicodeTokens(tokens []Token) ([]Token, error) {
	out := tokens[:0]
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !tok.unicodeEscapes {
			out = append(out, tok)
			continue
		}
		esc := byte('\\')
		if i+1 < len(tokens) && tokens[i+1].Kind == Ident && tokens[i+1].Value == "uescape" {
			var lit Token
			if i+2 < len(tokens) {
				lit = tokens[i+2]
			}
			if lit.Kind != String || len(lit.Value) != 1 || !validUnicodeEscapeChar(lit.Value[0]) {
				return nil, fmt.Errorf("%w: UESCAPE at offset %d", ErrInvalidEscape, tokens[i+1].Pos)
			}
			esc = lit.Value[0]
			tok.End = lit.End
			i += 2
		}
		v, err := decodeUnicodeEscapes(tok.Value, esc)
		if err != nil {
			return nil, fmt.Errorf("%w at offset %d", err, tok.Pos)
		}
		tok.Value = v
		tok.unicodeEscapes = false
		out = append(out, tok)
	}
	return out, nil
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) peek(off int) byte {
	if s.pos+off < len(s.src) {
		return s.src[s.pos+off]
	}
	return 0
}

func (s *scanner) next() (Token, bool, error) {
	if err := s.skipSpaceAndComments(); err != nil {
		return Token{}, false, err
	}
	if s.pos >= len(s.src) {
		return Token{}, false, nil
	}
	start := s.pos
	c := s.src[s.pos]

	switch {
	case c == '\'':
		return s.quoted(start, '\'', false)
	case c == '"':
		return s.quoted(start, '"', false)
	case (c == 'e' || c == 'E') && s.peek(1) == '\'':
		s.pos++
		return s.quoted(start, '\'', true)
	case (c == 'b' || c == 'B' || c == 'x' || c == 'X' || c == 'n' || c == 'N') && s.peek(1) == '\'':
		s.pos++
		return s.quoted(start, '\'', false)
	case (c == 'u' || c == 'U') && s.peek(1) == '&' && (s.peek(2) == '\'' || s.peek(2) == '"'):
		s.pos += 2
		tok, ok, err := s.quoted(start, s.src[s.pos], false)
		tok.unicodeEscapes = ok
		return tok, ok, err
	case c == '$':
		return s.dollar(start)
	case isDigit(c) || (c == '.' && isDigit(s.peek(1))):
		return s.number(start), true, nil
	case isIdentStart(c):
		for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
			s.pos++
		}
		text := s.src[start:s.pos]
		return Token{Kind: Ident, Value: strings.ToLower(text), Text: text, Pos: start, End: s.pos}, true, nil
	case strings.IndexByte("(),;[].", c) >= 0:
		s.pos++
		return s.token(Punct, start), true, nil
	case c == ':' && s.peek(1) == ':':
		s.pos += 2
		return s.token(Operator, start), true, nil
	case c == ':':
		s.pos++
		return s.token(Punct, start), true, nil
	}

	for s.pos < len(s.src) && isOperatorChar(s.src[s.pos]) {
		if s.pos > start && (strings.HasPrefix(s.src[s.pos:], "--") || strings.HasPrefix(s.src[s.pos:], "/*")) {
			break
		}
		s.pos++
	}
	if s.pos == start {
		s.pos++
	}
	return s.token(Operator, start), true, nil
}

func (s *scanner) token(kind TokenKind, start int) Token {
	text := s.src[start:s.pos]
	return Token{Kind: kind, Value: text, Text: text, Pos: start, End: s.pos}
}

func (s *scanner) skipSpaceAndComments() error {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			s.pos++
		case c == '-' && s.peek(1) == '-':
			nl := strings.IndexByte(s.src[s.pos:], '\n')
			if nl < 0 {
				s.pos = len(s.src)
			} else {
				s.pos += nl + 1
			}
		case c == '/' && s.peek(1) == '*':
			start := s.pos
			depth := 0
			for {
				if s.pos >= len(s.src) {
					return fmt.Errorf("%w: comment at offset %d", ErrUnterminated, start)
				}
				if strings.HasPrefix(s.src[s.pos:], "/*") {
					depth++
					s.pos += 2
				} else if strings.HasPrefix(s.src[s.pos:], "*/") {
					depth--
					s.pos += 2
					if depth == 0 {
						break
					}
				} else {
					s.pos++
				}
			}
		default:
			return nil
		}
	}
	return nil
}

// quoted scans a literal or identifier delimited by quote, where a doubled quote
// stands for itself. With backslash set, a backslash escapes the next byte.
func (s *scanner) quoted(start int, quote byte, backslash bool) (Token, bool, error) {
	s.pos++ // opening quote
	var b strings.Builder
	for {
		if s.pos >= len(s.src) {
			return Token{}, false, fmt.Errorf("%w: quoted text at offset %d", ErrUnterminated, start)
		}
		c := s.src[s.pos]
		switch {
		case backslash && c == '\\' && s.pos+1 < len(s.src):
			if err := s.backslashEscape(&b); err != nil {
				return Token{}, false, err
			}
		case c == quote && s.peek(1) == quote:
			b.WriteByte(quote)
			s.pos += 2
		case c == quote:
			s.pos++
			kind := String
			if quote == '"' {
				kind = QuotedIdent
			}
			return Token{Kind: kind, Value: b.String(), Text: s.src[start:s.pos], Pos: start, End: s.pos}, true, nil
		default:
			b.WriteByte(c)
			s.pos++
		}
	}
}

func (s *scanner) dollar(start int) (Token, bool, error) {
	if isDigit(s.peek(1)) {
		s.pos++
		for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
			s.pos++
		}
		return s.token(Param, start), true, nil
	}
	end := s.pos + 1
	for end < len(s.src) && isIdentPart(s.src[end]) && s.src[end] != '$' {
		end++
	}
	if end >= len(s.src) || s.src[end] != '$' {
		s.pos++
		return s.token(Operator, start), true, nil
	}
	tag := s.src[start : end+1]
	closing := strings.Index(s.src[end+1:], tag)
	if closing < 0 {
		return Token{}, false, fmt.Errorf("%w: dollar-quoted string at offset %d", ErrUnterminated, start)
	}
	bodyStart := end + 1
	bodyEnd := bodyStart + closing
	s.pos = bodyEnd + len(tag)
	return Token{Kind: String, Value: s.src[bodyStart:bodyEnd], Text: s.src[start:s.pos], Pos: start, End: s.pos}, true, nil
}

func (s *scanner) number(start int) Token {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case isDigit(c) || c == '.' || c == '_':
			s.pos++
		case (c == 'e' || c == 'E') && (isDigit(s.peek(1)) || ((s.peek(1) == '+' || s.peek(1) == '-') && isDigit(s.peek(2)))):
			s.pos += 2
		default:
			return s.token(Number, start)
		}
	}
	return s.token(Number, start)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}

func isOperatorChar(c byte) bool {
	return strings.IndexByte("+-*/<>=~!@#%^&|`?", c) >= 0
}
