package bookmark

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/lysyi3m/badge-comb/app/dom"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const (
	minTextLength = 10
	maxTextLength = 200

	archivedMarker = "archived"
)

// StyleSource resolves computed styles. Only live documents provide one.
type StyleSource interface {
	ComputedStyle(n *html.Node) (dom.Style, error)
}

type Verdict struct {
	Valid    bool
	Archived bool
	Reason   string
}

// Classifier decides whether a rendered card is a bookmark and whether the host
// marked it archived. The archive checks are heuristics about markup the host
// does not document; any one of them is enough.
type Classifier struct {
	archivedAttribute string
}

func NewClassifier(archivedAttribute string) *Classifier {
	return &Classifier{archivedAttribute: archivedAttribute}
}

// Run classifies one entry. styles is nil for documents that are not rendered,
// which disables the opacity and display checks.
func (c *Classifier) Run(entry *goquery.Selection, styles StyleSource) Verdict {
	text := renderedText(entry)
	length := utf8.RuneCountInString(text)

	var verdict Verdict
	switch {
	case !hasOutboundLink(entry):
		verdict.Reason = "no outbound link"
	case length <= minTextLength:
		verdict.Reason = "text too short"
	case length >= maxTextLength:
		verdict.Reason = "text too long"
	default:
		verdict.Valid = true
	}

	if reason, archived := c.archived(entry, text, styles); archived {
		verdict.Archived = true
		if verdict.Valid {
			verdict.Reason = reason
		}
	}

	return verdict
}

func (c *Classifier) archived(entry *goquery.Selection, text string, styles StyleSource) (string, bool) {
	lower := cases.Lower(language.Und)

	if strings.Contains(lower.String(text), archivedMarker) {
		return "archived text", true
	}

	if class, ok := entry.Attr("class"); ok && strings.Contains(lower.String(class), archivedMarker) {
		return "archived class", true
	}

	if c.archivedAttribute != "" {
		if _, ok := entry.Attr(c.archivedAttribute); ok {
			return "archived attribute", true
		}
	}

	if styles != nil && len(entry.Nodes) > 0 {
		if style, err := styles.ComputedStyle(entry.Nodes[0]); err == nil {
			if style.Opacity < 1 {
				return "faded", true
			}
			if style.Display == "none" {
				return "not displayed", true
			}
		}
	}

	return "", false
}

// renderedText approximates what the entry shows: whitespace runs collapse to a
// single space and the result is NFC-normalized.
func renderedText(entry *goquery.Selection) string {
	return norm.NFC.String(strings.Join(strings.Fields(entry.Text()), " "))
}

func hasOutboundLink(entry *goquery.Selection) bool {
	links := entry.Find("a[href]").AddSelection(entry.Filter("a[href]"))

	outbound := false
	links.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		if (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			outbound = true
			return false
		}
		return true
	})
	return outbound
}
