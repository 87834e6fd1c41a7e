// Package htmldoc is the document capability the extraction heuristics are
// written against: parse, select by CSS selector, read text, remove nodes.
package htmldoc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed HTML page. Implementations must tolerate malformed
// selectors by treating them as matching nothing.
type Document interface {
	// Exists reports whether any element matches selector.
	Exists(selector string) bool
	// FirstText returns the readable text of the first element matching
	// selector. ok is false when nothing matches.
	FirstText(selector string) (text string, ok bool)
	// BodyText returns the readable text of <body>, or of the whole document
	// when there is no body element.
	BodyText() string
	// Remove detaches every element matching selector from the document.
	Remove(selector string)
}

// Parser turns raw HTML into a Document.
type Parser interface {
	Parse(input []byte) (Document, error)
}

// GoqueryParser parses with golang.org/x/net/html and queries with goquery.
type GoqueryParser struct{}

func (GoqueryParser) Parse(input []byte) (Document, error) {
	root, err := html.Parse(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &goqueryDocument{doc: goquery.NewDocumentFromNode(root)}, nil
}

// Parse is a convenience wrapper around GoqueryParser.
func Parse(input []byte) (Document, error) {
	return GoqueryParser{}.Parse(input)
}

type goqueryDocument struct {
	doc *goquery.Document
}

// find relies on goquery compiling invalid selectors to a matcher that
// matches nothing.
func (d *goqueryDocument) find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

func (d *goqueryDocument) Exists(selector string) bool {
	return d.find(selector).Length() > 0
}

func (d *goqueryDocument) FirstText(selector string) (string, bool) {
	sel := d.find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return Text(sel.Nodes[0]), true
}

func (d *goqueryDocument) BodyText() string {
	body := d.find("body").First()
	if body.Length() == 0 {
		if len(d.doc.Nodes) == 0 {
			return ""
		}
		return Text(d.doc.Nodes[0])
	}
	return Text(body.Nodes[0])
}

func (d *goqueryDocument) Remove(selector string) {
	d.find(selector).Remove()
}

// Text collects readable text under n. Block elements are separated by line
// breaks; script, style and cookie/consent containers below n are skipped.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	collectText(&b, n, false, true)
	return b.String()
}
