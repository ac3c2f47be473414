// Package richtext cleans user-authored block content and flattens it to
// plain text for search and prompt building.
package richtext

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// MaxContentSize limits a single block's content to 256KB
const MaxContentSize = 256 * 1024

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"pre": true, "blockquote": true, "tr": true, "td": true, "th": true,
}

// Sanitizer applies a user-generated-content policy
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer creates a sanitizer with the UGC policy
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.UGCPolicy()}
}

// Validate checks content size
func Validate(content string) error {
	if len(content) > MaxContentSize {
		return fmt.Errorf("content exceeds maximum size of %d bytes", MaxContentSize)
	}
	return nil
}

// Sanitize strips scripts, handlers and unsafe URLs from markup
func (s *Sanitizer) Sanitize(content string) string {
	return s.policy.Sanitize(content)
}

// PlainText flattens markup to whitespace-normalized text
func PlainText(content string) string {
	if !strings.ContainsAny(content, "<&") {
		return NormalizeWhitespace(content)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return NormalizeWhitespace(content)
	}
	doc.Find("script, style").Remove()

	var b strings.Builder
	walk(doc.Selection, &b)
	return NormalizeWhitespace(b.String())
}

func walk(s *goquery.Selection, b *strings.Builder) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		if name == "#text" {
			b.WriteString(c.Text())
			return
		}
		block := blockElements[name]
		if block {
			b.WriteByte(' ')
		}
		walk(c, b)
		if block {
			b.WriteByte(' ')
		}
	})
}

// NormalizeWhitespace collapses runs of whitespace into single spaces
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
