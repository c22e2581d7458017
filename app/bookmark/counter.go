package bookmark

import (
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/lysyi3m/badge-comb/app/dom"
	"github.com/lysyi3m/badge-comb/app/page"
)

type Tally struct {
	Cards      int
	Invalid    int
	Archived   int
	Unarchived int
}

type Counter struct {
	adapter    *page.Adapter
	classifier *Classifier
}

func NewCounter(adapter *page.Adapter, classifier *Classifier) *Counter {
	return &Counter{
		adapter:    adapter,
		classifier: classifier,
	}
}

// Run returns the number of valid, unarchived bookmarks in doc. A document
// without a main region counts as zero.
func (c *Counter) Run(doc *dom.Document) int {
	return c.Tally(doc).Unarchived
}

// Tally classifies every card in the main region. Style checks apply only when
// doc is attached to the live view.
func (c *Counter) Tally(doc *dom.Document) Tally {
	var tally Tally

	region := c.adapter.MainRegion(doc.Selection())
	if region.Length() == 0 {
		slog.Debug("Main region not found", "url", doc.URL())
		return tally
	}

	var styles StyleSource
	if doc.Attached() {
		styles = doc
	}

	c.adapter.Cards(region).Each(func(_ int, card *goquery.Selection) {
		tally.Cards++

		verdict := c.classifier.Run(card, styles)
		switch {
		case verdict.Archived:
			tally.Archived++
		case !verdict.Valid:
			tally.Invalid++
		default:
			tally.Unarchived++
		}
	})

	slog.Debug("Cards counted",
		"url", doc.URL(),
		"live", doc.Attached(),
		"cards", tally.Cards,
		"invalid", tally.Invalid,
		"archived", tally.Archived,
		"unarchived", tally.Unarchived)

	return tally
}
