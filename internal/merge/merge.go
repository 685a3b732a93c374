// Package merge rewrites the publications array of a generated website data
// file, leaving every byte outside that array untouched.
package merge

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"

	"github.com/juyoungml/pubsync/internal/fsutil"
	"github.com/juyoungml/pubsync/internal/publication"
)

// DefaultField is the name of the field whose array is rewritten.
const DefaultField = "publications"

var (
	// ErrTargetMissing indicates the generated file does not exist.
	ErrTargetMissing = errors.New("generated file not found")

	// ErrSectionNotFound indicates the file has no `field: [` assignment.
	ErrSectionNotFound = errors.New("publications section not found")

	// ErrUnbalanced indicates the section's opening bracket is never closed.
	ErrUnbalanced = errors.New("unbalanced brackets in publications section")

	// ErrMalformed indicates a lexical error (unterminated string or comment).
	ErrMalformed = errors.New("malformed generated file")
)

// Merger splices rendered records into the array assigned to Field.
type Merger struct {
	Field string
}

func (m Merger) field() string {
	if m.Field == "" {
		return DefaultField
	}
	return m.Field
}

// section is the located array literal.
type section struct {
	open   int    // Offset of '['
	close  int    // Offset one past the matching ']'
	indent string // Leading whitespace of the line holding the field name
}

// locate finds the first `field: [ ... ]` outside strings and comments.
// The key may be an identifier or a string literal.
func (m Merger) locate(src []byte) (section, error) {
	toks, err := tokenize(src)
	if err != nil {
		return section{}, err
	}

	field := m.field()
	for i := 0; i+2 < len(toks); i++ {
		key := toks[i]
		if key.kind == tokPunct || key.text(src) != field {
			continue
		}
		if !toks[i+1].is(src, ':') || !toks[i+2].is(src, '[') {
			continue
		}

		depth := 0
		for j := i + 2; j < len(toks); j++ {
			switch {
			case toks[j].is(src, '['):
				depth++
			case toks[j].is(src, ']'):
				depth--
				if depth == 0 {
					return section{
						open:   toks[i+2].start,
						close:  toks[j].end,
						indent: lineIndent(src, key.start),
					}, nil
				}
			}
		}
		return section{}, fmt.Errorf("%w: %q opened at offset %d", ErrUnbalanced, field, toks[i+2].start)
	}
	return section{}, fmt.Errorf("%w: no %q array", ErrSectionNotFound, field)
}

// lineIndent returns the run of spaces and tabs that starts the line containing offset.
func lineIndent(src []byte, offset int) string {
	start := bytes.LastIndexByte(src[:offset], '\n') + 1
	end := start
	for end < offset && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	return string(src[start:end])
}

// Region returns the current array literal, brackets included.
func (m Merger) Region(src []byte) ([]byte, error) {
	sec, err := m.locate(src)
	if err != nil {
		return nil, err
	}
	return src[sec.open:sec.close], nil
}

// Splice replaces the array literal with the rendered records.
// Splicing twice with the same records yields identical bytes.
func (m Merger) Splice(src []byte, records []publication.Record) ([]byte, error) {
	sec, err := m.locate(src)
	if err != nil {
		return nil, err
	}

	rendered, err := Render(records, sec.indent)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(src)-(sec.close-sec.open)+len(rendered))
	out = append(out, src[:sec.open]...)
	out = append(out, rendered...)
	out = append(out, src[sec.close:]...)
	return out, nil
}

// InSync reports whether the array literal in src already equals the
// rendering of records.
func (m Merger) InSync(src []byte, records []publication.Record) (bool, error) {
	sec, err := m.locate(src)
	if err != nil {
		return false, err
	}
	rendered, err := Render(records, sec.indent)
	if err != nil {
		return false, err
	}
	return bytes.Equal(src[sec.open:sec.close], []byte(rendered)), nil
}

// Plan is a computed, not yet written, merge.
type Plan struct {
	Path     string
	Original []byte
	Updated  []byte
	mode     fs.FileMode
}

// Prepare reads the target file and computes its merged content without
// writing anything.
func (m Merger) Prepare(path string, records []publication.Record) (*Plan, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTargetMissing, path)
		}
		return nil, fmt.Errorf("checking generated file: %w", err)
	}

	original, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading generated file: %w", err)
	}

	updated, err := m.Splice(original, records)
	if err != nil {
		return nil, fmt.Errorf("merging %s: %w", path, err)
	}

	return &Plan{
		Path:     path,
		Original: original,
		Updated:  updated,
		mode:     info.Mode().Perm(),
	}, nil
}

// Changed reports whether committing would modify the file.
func (p *Plan) Changed() bool {
	return !bytes.Equal(p.Original, p.Updated)
}

// Commit writes the merged content in place, keeping the file mode.
func (p *Plan) Commit() error {
	if !p.Changed() {
		return nil
	}
	if err := fsutil.WriteFileAtomic(p.Path, p.Updated, p.mode); err != nil {
		return fmt.Errorf("writing generated file: %w", err)
	}
	return nil
}

// sectionTemplate renders the array literal. Indent is the indentation of the
// line holding the field name; entries are nested two spaces deeper.
const sectionTemplate = `[
{{- range $i, $r := .Records}}{{if $i}},{{end}}
{{$.Indent}}  {
{{$.Indent}}    id: {{$r.ID}},
{{$.Indent}}    title: {{quote $r.Title}},
{{$.Indent}}    authors: {{quote $r.Authors}},
{{$.Indent}}    venue: {{quote $r.Venue}},
{{$.Indent}}    year: {{$r.Year}},
{{$.Indent}}    abstract: {{quote $r.Abstract}},
{{$.Indent}}    links: {
{{- range $j, $l := $r.Links.Entries}}{{if $j}},{{end}}
{{$.Indent}}      {{$l.Kind}}: {{quote $l.URL}}
{{- end}}
{{$.Indent}}    }
{{$.Indent}}  }
{{- end}}
{{$.Indent}}]`

var sectionTmpl = template.Must(template.New("section").Funcs(template.FuncMap{
	"quote": quote,
}).Parse(sectionTemplate))

// Render returns the array literal for records at the given indentation.
func Render(records []publication.Record, indent string) (string, error) {
	if len(records) == 0 {
		return "[]", nil
	}

	var b strings.Builder
	data := struct {
		Records []publication.Record
		Indent  string
	}{records, indent}
	if err := sectionTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering publications: %w", err)
	}
	return b.String(), nil
}

// quote renders s as a double-quoted string literal. Quotes, backslashes,
// line breaks and other control characters are escaped.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\u2028':
			b.WriteString(`\u2028`)
		case '\u2029':
			b.WriteString(`\u2029`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
