package sqlscan

import (
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// backslashEscape decodes the escape at s.pos inside an E-string and advances past
// it.
func (s *scanner) backslashEscape(b *strings.Builder) error {
	start := s.pos
	c := s.src[s.pos+1]
	s.pos += 2
	switch c {
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case '0', '1', '2', '3', '4', '5', '6', '7':
		v := int(c - '0')
		for n := 1; n < 3 && s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '7'; n++ {
			v = v*8 + int(s.src[s.pos]-'0')
			s.pos++
		}
		b.WriteByte(byte(v))
	case 'x':
		v, n := 0, 0
		for ; n < 2 && s.pos < len(s.src) && isHex(s.src[s.pos]); n++ {
			v = v*16 + hexVal(s.src[s.pos])
			s.pos++
		}
		if n == 0 {
			b.WriteByte('x')
		} else {
			b.WriteByte(byte(v))
		}
	case 'u', 'U':
		width := 4
		if c == 'U' {
			width = 8
		}
		r, ok := hexRune(s.src, s.pos, width)
		if !ok {
			return fmt.Errorf("%w at offset %d", ErrInvalidEscape, start)
		}
		s.pos += width
		if utf16.IsSurrogate(r) {
			if !strings.HasPrefix(s.src[s.pos:], `\u`) {
				return fmt.Errorf("%w: unpaired surrogate at offset %d", ErrInvalidEscape, start)
			}
			low, ok := hexRune(s.src, s.pos+2, 4)
			if !ok {
				return fmt.Errorf("%w at offset %d", ErrInvalidEscape, start)
			}
			s.pos += 6
			if r = utf16.DecodeRune(r, low); r == utf8.RuneError {
				return fmt.Errorf("%w: invalid surrogate pair at offset %d", ErrInvalidEscape, start)
			}
		}
		if !utf8.ValidRune(r) {
			return fmt.Errorf("%w at offset %d", ErrInvalidEscape, start)
		}
		b.WriteRune(r)
	default:
		b.WriteByte(c)
	}
	return nil
}

// decodeUnicodeEscapes decodes the body of a U& token: esc followed by four hex
// digits, esc+ followed by six, and a doubled esc for esc itself.
func decodeUnicodeEscapes(v string, esc byte) (string, error) {
	if strings.IndexByte(v, esc) < 0 {
		return v, nil
	}
	var b strings.Builder
	for i := 0; i < len(v); {
		if v[i] != esc {
			b.WriteByte(v[i])
			i++
			continue
		}
		if i+1 < len(v) && v[i+1] == esc {
			b.WriteByte(esc)
			i += 2
			continue
		}
		r, next, err := unicodeEscape(v, i+1)
		if err != nil {
			return "", err
		}
		i = next
		if utf16.IsSurrogate(r) {
			if i >= len(v) || v[i] != esc {
				return "", fmt.Errorf("%w: unpaired surrogate", ErrInvalidEscape)
			}
			low, after, err := unicodeEscape(v, i+1)
			if err != nil {
				return "", err
			}
			if r = utf16.DecodeRune(r, low); r == utf8.RuneError {
				return "", fmt.Errorf("%w: invalid surrogate pair", ErrInvalidEscape)
			}
			i = after
		}
		if !utf8.ValidRune(r) {
			return "", ErrInvalidEscape
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

func unicodeEscape(v string, i int) (rune, int, error) {
	width := 4
	if i < len(v) && v[i] == '+' {
		width = 6
		i++
	}
	r, ok := hexRune(v, i, width)
	if !ok {
		return 0, 0, ErrInvalidEscape
	}
	return r, i + width, nil
}

func validUnicodeEscapeChar(c byte) bool {
	return !isHex(c) && !strings.ContainsRune("+'\" \t\n\r\f", rune(c))
}

func hexRune(s string, i, width int) (rune, bool) {
	if i+width > len(s) {
		return 0, false
	}
	var r rune
	for _, c := range []byte(s[i : i+width]) {
		if !isHex(c) {
			return 0, false
		}
		r = r*16 + rune(hexVal(c))
	}
	return r, true
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) int {
	switch {
	case isDigit(c):
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}
