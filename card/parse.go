package card

import (
	"bytes"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/distiset/types"
)

var (
	markdownOnce   sync.Once
	markdownParser goldmark.Markdown
)

func getMarkdownParser() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownParser
}

// Parse reads a card rendered by String. The header must be front matter
// holding exactly the Metadata keys.
func Parse(doc string) (*Card, error) {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	if !strings.HasPrefix(doc, "---\n") {
		return nil, types.NewError(types.ErrDecode, "dataset card has no front matter")
	}
	rest := doc[len("---\n"):]

	var header, body string
	switch {
	case strings.HasPrefix(rest, "---\n"):
		body = rest[len("---\n"):]
	default:
		end := strings.Index(rest, "\n---\n")
		if end < 0 {
			return nil, types.NewError(types.ErrDecode, "dataset card front matter is not terminated")
		}
		header = rest[:end+1]
		body = rest[end+len("\n---\n"):]
	}

	var meta Metadata
	dec := yaml.NewDecoder(strings.NewReader(header))
	dec.KnownFields(true)
	if err := dec.Decode(&meta); err != nil && strings.TrimSpace(header) != "" {
		return nil, types.NewError(types.ErrDecode, "invalid dataset card metadata").WithCause(err)
	}

	return &Card{Metadata: meta, Body: body, Sections: Sections(body)}, nil
}

// Sections lists the markdown headings of body in document order.
func Sections(body string) []Section {
	source := []byte(body)
	doc := getMarkdownParser().Parser().Parse(text.NewReader(source))

	var out []Section
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		collectText(&buf, h, source)
		out = append(out, Section{Level: h.Level, Title: strings.TrimSpace(buf.String())})
		return ast.WalkSkipChildren, nil
	})
	return out
}

func collectText(buf *bytes.Buffer, n ast.Node, source []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			collectText(buf, c, source)
		}
	}
}
