package dom

import (
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrDetached is returned by style queries on a document that is not rendered
// in a live view.
var ErrDetached = errors.New("document is not attached to a live view")

// Document is a parsed host page. Documents built by Parse are detached; only a
// Tab attaches them.
type Document struct {
	doc      *goquery.Document
	url      *url.URL
	attached bool
	styles   *Stylesheet
}

func Parse(r io.Reader, u *url.URL) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Url = u

	return &Document{doc: doc, url: u}, nil
}

func (d *Document) Selection() *goquery.Selection {
	return d.doc.Selection
}

func (d *Document) URL() *url.URL {
	return d.url
}

// Attached reports whether the document belongs to a live view, which is what
// makes computed styles available.
func (d *Document) Attached() bool {
	return d.attached
}

func (d *Document) ComputedStyle(n *html.Node) (Style, error) {
	if !d.attached || d.styles == nil {
		return Style{}, ErrDetached
	}
	return d.styles.Compute(n), nil
}

// attach marks the document live and builds its cascade from the given utility
// CSS followed by the document's own <style> blocks.
func (d *Document) attach(utilityCSS string) {
	d.attached = true
	d.restyle(utilityCSS)
}

func (d *Document) restyle(utilityCSS string) {
	sheets := []string{utilityCSS}
	d.doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		sheets = append(sheets, s.Text())
	})
	d.styles = newStylesheet(sheets...)
}
