package dom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var ErrNoDocument = errors.New("tab has no document")

type MutationKind string

const (
	MutationNavigate  MutationKind = "navigate"
	MutationReady     MutationKind = "ready"
	MutationLoad      MutationKind = "load"
	MutationChildList MutationKind = "childList"
)

type Mutation struct {
	Kind MutationKind
	URL  string
	// Landmark is set on childList mutations when an inserted node satisfied the
	// observer's match function.
	Landmark bool
}

const observerBuffer = 32

type observer struct {
	match func(*html.Node) bool
	ch    chan Mutation
}

// Tab is the live rendered view of the host page. Readers and writers are
// serialized so that a scan never sees half of a write.
type Tab struct {
	client     *Client
	utilityCSS string

	mu        sync.RWMutex
	doc       *Document
	observers []*observer
}

func NewTab(client *Client, utilityCSS string) *Tab {
	return &Tab{
		client:     client,
		utilityCSS: utilityCSS,
	}
}

// Navigate loads path from the host and makes it the current document.
func (t *Tab) Navigate(ctx context.Context, path string) error {
	doc, err := t.client.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", path, err)
	}

	t.Attach(doc)
	return nil
}

// Attach replaces the current document and emits navigate (when the location
// changed), ready and load in that order.
func (t *Tab) Attach(doc *Document) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.doc
	doc.attach(t.utilityCSS)
	t.doc = doc

	location := locationOf(doc)
	if prev == nil || locationOf(prev) != location {
		t.notify(Mutation{Kind: MutationNavigate, URL: location}, nil)
	}
	t.notify(Mutation{Kind: MutationReady, URL: location}, nil)
	t.notify(Mutation{Kind: MutationLoad, URL: location}, nil)
}

// Reload refetches the current location and swaps in the new body.
func (t *Tab) Reload(ctx context.Context) error {
	location := t.Location()
	if location == nil {
		return ErrNoDocument
	}

	fresh, err := t.client.Get(ctx, location.RequestURI())
	if err != nil {
		return fmt.Errorf("failed to reload %s: %w", location, err)
	}

	_, err = t.ReplaceBody(fresh)
	return err
}

// ReplaceBody moves the body children of fresh into the current document and
// emits one childList mutation. It reports false when the markup is unchanged.
func (t *Tab) ReplaceBody(fresh *Document) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.doc == nil {
		return false, ErrNoDocument
	}

	oldBody := t.doc.Selection().Find("body").First()
	newBody := fresh.Selection().Find("body").First()
	if oldBody.Length() == 0 || newBody.Length() == 0 {
		return false, fmt.Errorf("document has no body")
	}

	oldHTML, err := oldBody.Html()
	if err != nil {
		return false, fmt.Errorf("failed to render body: %w", err)
	}
	newHTML, err := newBody.Html()
	if err != nil {
		return false, fmt.Errorf("failed to render body: %w", err)
	}
	if oldHTML == newHTML {
		return false, nil
	}

	dst, src := oldBody.Nodes[0], newBody.Nodes[0]
	for c := dst.FirstChild; c != nil; {
		next := c.NextSibling
		dst.RemoveChild(c)
		c = next
	}

	var inserted []*html.Node
	for c := src.FirstChild; c != nil; {
		next := c.NextSibling
		src.RemoveChild(c)
		dst.AppendChild(c)
		inserted = append(inserted, c)
		c = next
	}

	t.doc.restyle(t.utilityCSS)
	t.notify(Mutation{Kind: MutationChildList, URL: locationOf(t.doc)}, inserted)

	return true, nil
}

// Read runs fn with the current document under a read lock. It reports false
// when no document is loaded yet.
func (t *Tab) Read(fn func(doc *Document)) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.doc == nil {
		return false
	}
	fn(t.doc)
	return true
}

// SetText replaces the text of a node in the live document. Nodes removed by a
// later reload are detached and the write is lost, as in a browser.
func (t *Tab) SetText(handle *goquery.Selection, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	handle.SetText(text)
}

func (t *Tab) Location() *url.URL {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.doc == nil || t.doc.URL() == nil {
		return nil
	}
	u := *t.doc.URL()
	return &u
}

func (t *Tab) HTML() (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.doc == nil {
		return "", ErrNoDocument
	}
	return t.doc.Selection().Html()
}

// Observe registers a long-lived mutation observer. match decides whether an
// inserted node is a landmark; it may be nil. Events are dropped when the
// observer falls behind.
func (t *Tab) Observe(match func(*html.Node) bool) <-chan Mutation {
	t.mu.Lock()
	defer t.mu.Unlock()

	o := &observer{match: match, ch: make(chan Mutation, observerBuffer)}
	t.observers = append(t.observers, o)
	return o.ch
}

// notify must be called with t.mu held.
func (t *Tab) notify(m Mutation, inserted []*html.Node) {
	for _, o := range t.observers {
		event := m
		if o.match != nil {
			for _, n := range inserted {
				if o.match(n) {
					event.Landmark = true
					break
				}
			}
		}

		select {
		case o.ch <- event:
		default:
			slog.Debug("Mutation dropped, observer is full", "kind", event.Kind)
		}
	}
}

func locationOf(doc *Document) string {
	if doc.URL() == nil {
		return ""
	}
	return doc.URL().String()
}
