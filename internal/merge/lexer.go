package merge

import "fmt"

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokPunct
)

// token is a lexical token of a TypeScript/JavaScript data file.
// Whitespace and comments are never returned.
type token struct {
	kind  tokenKind
	start int // Byte offset of the first byte
	end   int // Byte offset one past the last byte
}

func (t token) is(src []byte, c byte) bool {
	return t.kind == tokPunct && src[t.start] == c
}

// text returns the identifier, or the string contents without quotes.
func (t token) text(src []byte) string {
	if t.kind == tokString {
		return string(src[t.start+1 : t.end-1])
	}
	return string(src[t.start:t.end])
}

// tokenize splits src into identifiers, string literals and single-byte
// punctuation. It understands '...', "...", `...` (without ${} nesting),
// line comments and block comments. Regular-expression literals are not
// recognized; data files do not contain them.
func tokenize(src []byte) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := indexFrom(src, i+2, "*/")
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated comment at offset %d", ErrMalformed, i)
			}
			i = end + 2

		case c == '"' || c == '\'' || c == '`':
			end, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, start: i, end: end})
			i = end

		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, start: start, end: i})

		default:
			toks = append(toks, token{kind: tokPunct, start: i, end: i + 1})
			i++
		}
	}
	return toks, nil
}

// scanString returns the offset one past the closing quote of the string
// literal starting at src[start].
func scanString(src []byte, start int) (int, error) {
	quote := src[start]
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case quote:
			return i + 1, nil
		case '\n':
			if quote != '`' {
				return 0, fmt.Errorf("%w: newline in string at offset %d", ErrMalformed, start)
			}
		}
	}
	return 0, fmt.Errorf("%w: unterminated string at offset %d", ErrMalformed, start)
}

func indexFrom(src []byte, from int, sep string) int {
	for i := from; i+len(sep) <= len(src); i++ {
		if string(src[i:i+len(sep)]) == sep {
			return i
		}
	}
	return -1
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
