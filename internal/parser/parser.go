// Package parser splits Markdown notes into a frontmatter block and a body,
// decodes and renders the frontmatter, and extracts wikilinks.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/almanac/internal/models"
)

const delim = "---"

var wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Document is a note split at its frontmatter delimiters.
type Document struct {
	// Block is the raw YAML between the delimiters.
	Block []byte
	// Body is everything after the closing delimiter line.
	Body []byte
	// Closed is false when the block runs to end of file.
	Closed bool
}

// Split separates the frontmatter block from the body. It reports false when
// data has fewer than three lines or does not open with a delimiter line.
func Split(data []byte) (Document, bool) {
	if bytes.Count(data, []byte("\n"))+1 < 3 {
		return Document{}, false
	}
	first, rest, _ := bytes.Cut(data, []byte("\n"))
	if string(bytes.TrimSpace(first)) != delim {
		return Document{}, false
	}

	offset := 0
	for offset < len(rest) {
		line := rest[offset:]
		end := bytes.IndexByte(line, '\n')
		next := len(rest)
		if end >= 0 {
			line = line[:end]
			next = offset + end + 1
		}
		if string(bytes.TrimSpace(line)) == delim {
			return Document{Block: rest[:offset], Body: rest[next:], Closed: true}, true
		}
		offset = next
	}
	return Document{Block: rest}, true
}

// ParseBlock decodes a raw frontmatter block. An empty block yields an empty
// frontmatter.
func ParseBlock(block []byte) (*models.Frontmatter, error) {
	var fm models.Frontmatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, fmt.Errorf("parser: frontmatter: %w", err)
	}
	return &fm, nil
}

// Parse decodes the frontmatter of a note. A note without frontmatter yields
// an empty frontmatter and no error; malformed YAML is returned as an error.
func Parse(data []byte) (*models.Frontmatter, error) {
	doc, ok := Split(data)
	if !ok {
		return &models.Frontmatter{}, nil
	}
	return ParseBlock(doc.Block)
}

// Body returns the content after the closing delimiter, or all of data when
// it has no frontmatter.
func Body(data []byte) []byte {
	doc, ok := Split(data)
	if !ok {
		return data
	}
	return doc.Body
}

// Render serializes fm as a frontmatter block followed by body.
func Render(fm *models.Frontmatter, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	if !fm.Empty() {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(fm); err != nil {
			return nil, fmt.Errorf("parser: render: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("parser: render: %w", err)
		}
	}
	buf.WriteString(delim + "\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// Link is a [[target|label]] reference.
type Link struct {
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Links returns the deduplicated wikilinks of body in order of appearance.
func Links(body []byte) []Link {
	matches := wikilinkRe.FindAllSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []Link
	for _, m := range matches {
		target, label, _ := strings.Cut(string(m[1]), "|")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, Link{Target: target, Label: strings.TrimSpace(label)})
	}
	return out
}
