package lists

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lysyi3m/badge-comb/app/dom"
	"github.com/lysyi3m/badge-comb/app/page"
)

// Descriptor is one list found in the sidebar. Handle points into the live
// document and is only ever written through dom.Tab.SetText.
type Descriptor struct {
	ID             string
	Name           string
	Handle         *goquery.Selection
	DisplayedCount int
}

type Scanner struct {
	adapter *page.Adapter
}

func NewScanner(adapter *page.Adapter) *Scanner {
	return &Scanner{adapter: adapter}
}

// Run returns the lists shown in the sidebar. An empty result means the sidebar
// is not rendered yet, not that the user has no lists.
func (s *Scanner) Run(doc *dom.Document) []Descriptor {
	sidebar := s.adapter.Sidebar(doc.Selection())
	if sidebar.Length() == 0 {
		slog.Debug("Sidebar not found", "url", doc.URL())
		return nil
	}

	var descriptors []Descriptor
	s.adapter.ListLinks(sidebar).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		id, ok := s.adapter.ListID(href)
		if !ok {
			slog.Debug("Skipping list link without identifier", "href", href)
			return
		}

		badge := s.adapter.Badge(s.adapter.ListItem(link))
		if badge.Length() == 0 {
			slog.Debug("Skipping list without badge", "list", id)
			return
		}

		descriptors = append(descriptors, Descriptor{
			ID:             id,
			Name:           strings.TrimSpace(link.Text()),
			Handle:         badge,
			DisplayedCount: parseCount(badge.Text()),
		})
	})

	return descriptors
}

// parseCount reads a badge value. Anything that is not an integer counts as 0.
func parseCount(text string) int {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0
	}
	return n
}
