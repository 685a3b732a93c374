// Package cv extracts contact details and the publication list from a CV,
// either from its Typst source or from the compiled PDF.
package cv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/juyoungml/pubsync/internal/fsutil"
)

// Metadata is what a CV yields.
type Metadata struct {
	Name         string        `json:"name,omitempty"`
	Email        string        `json:"email,omitempty"`
	Website      string        `json:"website,omitempty"`
	Publications []Publication `json:"publications,omitempty"`
}

// Publication is one numbered entry of the CV's publication list.
type Publication struct {
	Number  string `json:"number"`
	Title   string `json:"title"`
	Authors string `json:"authors"`
}

var (
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+-]+(?:\\?@)[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	githubIOPattern = regexp.MustCompile(`https://([A-Za-z0-9-]+)\.github\.io/?`)
	mailtoPattern   = regexp.MustCompile(`mailto:([^\s")\]]+)`)
	ptSize          = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)pt$`)
)

// ParseTypst extracts metadata from Typst source. The name is the body of
// the #text call with the largest point size; the email comes from the first
// mailto link; the website is the first github.io address; publications are
// the #publication("N", "title", [authors]) calls.
func ParseTypst(src string) Metadata {
	var meta Metadata
	largest := 0.0

	for _, call := range Tokenize(src) {
		switch call.Name {
		case "text":
			size, ok := pointSize(call.Named["size"])
			if !ok || len(call.Body) == 0 || size <= largest {
				continue
			}
			if name := cleanMarkup(call.Body[0]); name != "" {
				meta.Name = name
				largest = size
			}

		case "link":
			if len(call.Positional) == 0 {
				continue
			}
			target := call.Positional[0]
			if addr, ok := strings.CutPrefix(target, "mailto:"); ok && meta.Email == "" {
				meta.Email = cleanEmail(addr)
			}
			if meta.Website == "" {
				meta.Website = githubIO(target)
			}

		case "publication":
			if len(call.Positional) < 2 {
				continue
			}
			pub := Publication{Number: call.Positional[0], Title: call.Positional[1]}
			if len(call.Positional) > 2 {
				pub.Authors = call.Positional[2]
			}
			meta.Publications = append(meta.Publications, pub)
		}
	}

	// Addresses written as plain text rather than links.
	if meta.Email == "" {
		if m := mailtoPattern.FindStringSubmatch(src); m != nil {
			meta.Email = cleanEmail(m[1])
		}
	}
	if meta.Website == "" {
		meta.Website = githubIO(src)
	}
	return meta
}

// ParseText extracts metadata from plain text, such as a compiled CV.
// The name is the first substantial line that is not contact information.
// Publications are numbered lines ("[3] Title" or "3. Title") following a
// "Publications" heading, up to the next unnumbered heading-like line.
func ParseText(text string) Metadata {
	var meta Metadata
	if m := emailPattern.FindString(text); m != "" {
		meta.Email = cleanEmail(m)
	}
	meta.Website = githubIO(text)

	inPubs := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "publications") {
			inPubs = true
			continue
		}
		if meta.Name == "" && isNameLine(line) {
			meta.Name = line
			continue
		}
		if !inPubs {
			continue
		}
		if num, title, ok := numberedLine(line); ok {
			meta.Publications = append(meta.Publications, Publication{Number: num, Title: title})
		} else if isHeading(line) {
			inPubs = false
		}
	}
	return meta
}

var numbered = regexp.MustCompile(`^(?:\[(\d+)\]|(\d+)\.)\s+(.+)$`)

func numberedLine(line string) (string, string, bool) {
	m := numbered.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	num := m[1]
	if num == "" {
		num = m[2]
	}
	return num, m[3], true
}

// isHeading reports whether line looks like a section title.
func isHeading(line string) bool {
	return len(strings.Fields(line)) <= 3 && !strings.ContainsAny(line, ".,;:")
}

func isNameLine(line string) bool {
	if len(line) < 3 || len(line) > 60 {
		return false
	}
	lower := strings.ToLower(line)
	if strings.Contains(lower, "@") || strings.Contains(lower, "http") || strings.Contains(lower, "curriculum vitae") {
		return false
	}
	return !strings.ContainsAny(line, "0123456789|")
}

func pointSize(v string) (float64, bool) {
	m := ptSize.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	return f, err == nil
}

func cleanEmail(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `\@`, "@"))
}

// cleanMarkup drops strong/emphasis markers around a plain-text value.
func cleanMarkup(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*_"))
}

func githubIO(s string) string {
	m := githubIOPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return "https://" + m[1] + ".github.io/"
}

// Sync is the cv-sync.json document consumed by the website.
type Sync struct {
	Personal          Personal `json:"personal"`
	PublicationsCount int      `json:"publications_count"`
	LastCVSync        string   `json:"last_cv_sync"`
}

// Personal is the contact block of Sync.
type Personal struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	CVUpdated bool   `json:"cv_updated"`
	CVPath    string `json:"cv_path"`
}

// NewSync builds the sync document. cvPath is the public path of the
// compiled CV; source names the file the metadata came from.
func NewSync(meta Metadata, cvPath, source string) Sync {
	return Sync{
		Personal: Personal{
			Name:      meta.Name,
			Email:     meta.Email,
			CVUpdated: true,
			CVPath:    cvPath,
		},
		PublicationsCount: len(meta.Publications),
		LastCVSync:        "auto-generated from " + filepath.Base(source),
	}
}

// WriteSync writes s as indented JSON, creating the parent directory.
func WriteSync(path string, s Sync) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding cv sync: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing cv sync: %w", err)
	}
	return nil
}

// ParseFile reads a Typst source file and extracts its metadata.
func ParseFile(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading CV source: %w", err)
	}
	return ParseTypst(string(data)), nil
}
