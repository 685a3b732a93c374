package cv

import (
	"strings"
)

// Call is one `#name(args)[body]...` invocation in a Typst document.
type Call struct {
	Name       string
	Positional []string          // Decoded positional arguments, in order
	Named      map[string]string // Decoded named arguments
	Body       []string          // Raw content of trailing [...] blocks
	Offset     int               // Byte offset of the '#'
}

// Tokenize returns the function calls in src in document order. Calls nested
// inside trailing content blocks follow their parent; calls nested inside
// content arguments precede it. Escaped hashes (`\#`) and comments are skipped.
func Tokenize(src string) []Call {
	var calls []Call
	s := scanner{src: src}
	s.markup(&calls, 0, len(src))
	return calls
}

type scanner struct {
	src string
}

// markup scans src[from:to] as Typst markup, collecting calls.
func (s scanner) markup(calls *[]Call, from, to int) {
	i := from
	for i < to {
		c := s.src[i]
		switch {
		case c == '\\':
			i += 2

		case c == '/' && i+1 < to && s.src[i+1] == '/' && (i == 0 || s.src[i-1] != ':'):
			for i < to && s.src[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < to && s.src[i+1] == '*':
			end := strings.Index(s.src[i+2:to], "*/")
			if end < 0 {
				return
			}
			i += 2 + end + 2

		case c == '#':
			call, next, ok := s.call(calls, i, to)
			if !ok {
				i++
				continue
			}
			*calls = append(*calls, call)
			i = next

		default:
			i++
		}
	}
}

// call parses the invocation starting at the '#' at offset start. It returns
// the offset where markup scanning resumes: the start of the first trailing
// body, so calls nested in bodies are visited.
func (s scanner) call(calls *[]Call, start, to int) (Call, int, bool) {
	i := start + 1
	nameStart := i
	for i < to && (isNameByte(s.src[i]) || (s.src[i] == '.' && i+1 < to && isNameStart(s.src[i+1]))) {
		i++
	}
	if i == nameStart || !isNameStart(s.src[nameStart]) {
		return Call{}, 0, false
	}
	call := Call{Name: s.src[nameStart:i], Named: map[string]string{}, Offset: start}

	hasArgs := i < to && s.src[i] == '('
	if hasArgs {
		end := s.matchCode(i, to)
		if end < 0 {
			return Call{}, 0, false
		}
		base := i + 1
		for _, arg := range splitArgs(s.src[base : end-1]) {
			s.addArg(calls, &call, argSpan{base + arg.start, base + arg.end})
		}
		i = end
	}

	resume := i
	for i < to && s.src[i] == '[' {
		end := s.matchContent(i, to)
		if end < 0 {
			break
		}
		call.Body = append(call.Body, s.src[i+1:end-1])
		i = end
	}

	if !hasArgs && call.Body == nil {
		return Call{}, 0, false
	}
	return call, resume, true
}

// addArg decodes one argument into call. Calls nested in content arguments
// are collected as well.
func (s scanner) addArg(calls *[]Call, call *Call, arg argSpan) {
	text := strings.TrimSpace(s.src[arg.start:arg.end])
	if text == "" {
		return
	}
	if key, value, ok := namedArg(text); ok {
		call.Named[key] = decodeValue(value)
		return
	}
	call.Positional = append(call.Positional, decodeValue(text))

	if strings.HasPrefix(text, "[") {
		open := arg.start + strings.Index(s.src[arg.start:arg.end], "[")
		var nested []Call
		s.markup(&nested, open+1, arg.end)
		*calls = append(*calls, nested...)
	}
}

// matchCode returns the offset one past the ')' matching the '(' at open,
// or -1. Strings and nested content blocks are skipped.
func (s scanner) matchCode(open, to int) int {
	depth := 0
	for i := open; i < to; i++ {
		switch s.src[i] {
		case '"':
			end := skipString(s.src, i, to)
			if end < 0 {
				return -1
			}
			i = end - 1
		case '[':
			end := s.matchContent(i, to)
			if end < 0 {
				return -1
			}
			i = end - 1
		case '(', '{':
			depth++
		case ')', '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// matchContent returns the offset one past the ']' matching the '[' at open,
// or -1. Backslash escapes are honored.
func (s scanner) matchContent(open, to int) int {
	depth := 0
	for i := open; i < to; i++ {
		switch s.src[i] {
		case '\\':
			i++
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

type argSpan struct {
	start, end int
}

// splitArgs splits an argument list at top-level commas. Offsets are relative
// to list.
func splitArgs(list string) []argSpan {
	var spans []argSpan
	depth, start := 0, 0
	content := 0
	for i := 0; i < len(list); i++ {
		c := list[i]
		if content > 0 {
			switch c {
			case '\\':
				i++
			case '[':
				content++
			case ']':
				content--
			}
			continue
		}
		switch c {
		case '"':
			end := skipString(list, i, len(list))
			if end < 0 {
				i = len(list)
				continue
			}
			i = end - 1
		case '[':
			content++
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		case ',':
			if depth == 0 {
				spans = append(spans, argSpan{start, i})
				start = i + 1
			}
		}
	}
	spans = append(spans, argSpan{start, len(list)})
	return spans
}

// skipString returns the offset one past the closing quote of the string at
// src[open], or -1 when unterminated.
func skipString(src string, open, to int) int {
	for i := open + 1; i < to; i++ {
		switch src[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return -1
}

// namedArg splits `key: value`. A leading string or content block is never a key.
func namedArg(text string) (string, string, bool) {
	if !isNameStart(text[0]) {
		return "", "", false
	}
	i := 0
	for i < len(text) && isNameByte(text[i]) {
		i++
	}
	rest := strings.TrimLeft(text[i:], " \t")
	if !strings.HasPrefix(rest, ":") {
		return "", "", false
	}
	return text[:i], strings.TrimSpace(rest[1:]), true
}

// decodeValue unquotes strings and unwraps content blocks; other values are
// returned as written.
func decodeValue(v string) string {
	switch {
	case len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"':
		return unquote(v[1 : len(v)-1])
	case len(v) >= 2 && v[0] == '[' && v[len(v)-1] == ']':
		return strings.TrimSpace(v[1 : len(v)-1])
	}
	return v
}

func unquote(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameByte(c byte) bool {
	return isNameStart(c) || c == '-' || (c >= '0' && c <= '9')
}
