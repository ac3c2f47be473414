// Package importer turns HTML, Markdown and plain-text documents into
// notes blocks. Input in a legacy charset is transcoded to UTF-8 first.
package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/antchfx/htmlquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// MaxDocumentSize limits an imported document to 2MB
const MaxDocumentSize = 2 * 1024 * 1024

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrTooLarge    = errors.New("document too large")
	ErrEmpty       = errors.New("document is empty")
)

// Block is one imported block
type Block struct {
	Type    types.BlockType
	Content string
	Checked bool
}

// Document is the result of decoding an upload
type Document struct {
	Title  string
	Format string
	Blocks []Block
}

// Decode detects the document type and splits it into blocks
func Decode(data []byte) (Document, error) {
	if len(data) > MaxDocumentSize {
		return Document{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, MaxDocumentSize)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, ErrEmpty
	}

	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("text/html"):
		text, err := toUTF8(data)
		if err != nil {
			return Document{}, err
		}
		return decodeHTML(text)
	case strings.HasPrefix(mtype.String(), "text/"):
		text, err := toUTF8(data)
		if err != nil {
			return Document{}, err
		}
		return decodeMarkdown(string(text)), nil
	}
	return Document{}, fmt.Errorf("%w: %s", ErrUnsupported, mtype.String())
}

// DetectCharset returns the lower-cased best-guess charset of data
func DetectCharset(data []byte) string {
	if utf8.Valid(data) {
		return "utf-8"
	}
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

func toUTF8(data []byte) ([]byte, error) {
	cs := DetectCharset(data)
	if cs == "utf-8" {
		return data, nil
	}
	r, err := charset.NewReaderLabel(cs, bytes.NewReader(data))
	if err != nil {
		return []byte(strings.ToValidUTF8(string(data), "\uFFFD")), nil
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("transcode %s: %w", cs, err)
	}
	return out, nil
}

func decodeHTML(data []byte) (Document, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return Document{}, fmt.Errorf("parse html: %w", err)
	}

	out := Document{Format: "html"}
	if n := htmlquery.FindOne(doc, "//title"); n != nil {
		out.Title = clean(htmlquery.InnerText(n))
	}

	root := htmlquery.FindOne(doc, "//body")
	if root == nil {
		root = doc
	}
	out.Blocks = walkHTML(root, out.Blocks)
	if out.Title == "" {
		out.Title = firstHeading(out.Blocks)
	}
	return out, nil
}

// walkHTML appends a block for every block-level element below n, in
// document order. Matched elements are not descended into.
func walkHTML(n *html.Node, blocks []Block) []Block {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "script", "style", "noscript", "template":
			continue
		case "h1", "h2", "h3":
			blocks = appendText(blocks, types.BlockType(c.Data), clean(htmlquery.InnerText(c)))
		case "h4", "h5", "h6":
			blocks = appendText(blocks, types.BlockH3, clean(htmlquery.InnerText(c)))
		case "p", "blockquote":
			blocks = appendText(blocks, types.BlockText, strings.TrimSpace(htmlquery.OutputHTML(c, false)))
		case "pre":
			blocks = append(blocks, Block{Type: types.BlockCode, Content: strings.TrimRight(htmlquery.InnerText(c), "\n")})
		case "li":
			if box := htmlquery.FindOne(c, `.//input[@type="checkbox"]`); box != nil {
				_, checked := attr(box, "checked")
				blocks = appendTodo(blocks, clean(htmlquery.InnerText(c)), checked)
				continue
			}
			blocks = appendText(blocks, types.BlockBullet, clean(htmlquery.InnerText(c)))
		default:
			blocks = walkHTML(c, blocks)
		}
	}
	return blocks
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func decodeMarkdown(text string) Document {
	out := Document{Format: "markdown"}
	var (
		para  []string
		code  []string
		fence bool
	)
	flush := func() {
		if len(para) > 0 {
			out.Blocks = appendText(out.Blocks, types.BlockText, strings.Join(para, " "))
			para = nil
		}
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if fence {
				out.Blocks = append(out.Blocks, Block{Type: types.BlockCode, Content: strings.Join(code, "\n")})
				code = nil
			} else {
				flush()
			}
			fence = !fence
			continue
		}
		if fence {
			code = append(code, line)
			continue
		}

		switch {
		case trimmed == "":
			flush()
		case strings.HasPrefix(trimmed, "### "):
			flush()
			out.Blocks = appendText(out.Blocks, types.BlockH3, trimmed[4:])
		case strings.HasPrefix(trimmed, "## "):
			flush()
			out.Blocks = appendText(out.Blocks, types.BlockH2, trimmed[3:])
		case strings.HasPrefix(trimmed, "# "):
			flush()
			out.Blocks = appendText(out.Blocks, types.BlockH1, trimmed[2:])
		case hasTodoPrefix(trimmed):
			flush()
			checked := trimmed[3] == 'x' || trimmed[3] == 'X'
			out.Blocks = appendTodo(out.Blocks, trimmed[6:], checked)
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			flush()
			out.Blocks = appendText(out.Blocks, types.BlockBullet, trimmed[2:])
		default:
			para = append(para, trimmed)
		}
	}
	flush()
	if fence && len(code) > 0 {
		out.Blocks = append(out.Blocks, Block{Type: types.BlockCode, Content: strings.Join(code, "\n")})
	}

	out.Title = firstHeading(out.Blocks)
	return out
}

// hasTodoPrefix matches "- [ ] ", "- [x] " and "* [x] "
func hasTodoPrefix(s string) bool {
	if len(s) < 6 || (s[0] != '-' && s[0] != '*') {
		return false
	}
	return s[1] == ' ' && s[2] == '[' && strings.ContainsRune(" xX", rune(s[3])) && s[4] == ']' && s[5] == ' '
}

func appendText(blocks []Block, typ types.BlockType, content string) []Block {
	content = strings.TrimSpace(content)
	if content == "" {
		return blocks
	}
	return append(blocks, Block{Type: typ, Content: content})
}

func appendTodo(blocks []Block, content string, checked bool) []Block {
	content = strings.TrimSpace(content)
	if content == "" {
		return blocks
	}
	return append(blocks, Block{Type: types.BlockTodo, Content: content, Checked: checked})
}

func firstHeading(blocks []Block) string {
	for _, b := range blocks {
		if b.Type == types.BlockH1 {
			return b.Content
		}
	}
	return ""
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
