package page

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Adapter is the only place that knows the host page's markup. Scanners and
// counters ask it for regions and never hold selectors of their own.
type Adapter struct {
	profile  *Profile
	sidebar  cascadia.Selector
	listLink cascadia.Selector
	listItem cascadia.Selector
	badge    cascadia.Selector
	main     cascadia.Selector
	card     cascadia.Selector
}

func NewAdapter(profile *Profile) (*Adapter, error) {
	a := &Adapter{profile: profile}

	selectors := []struct {
		name  string
		query string
		dst   *cascadia.Selector
	}{
		{"sidebar", profile.Sidebar, &a.sidebar},
		{"list_link", profile.ListLink, &a.listLink},
		{"list_item", profile.ListItem, &a.listItem},
		{"badge", profile.Badge, &a.badge},
		{"main", profile.Main, &a.main},
		{"card", profile.Card, &a.card},
	}
	for _, s := range selectors {
		compiled, err := cascadia.Compile(s.query)
		if err != nil {
			return nil, fmt.Errorf("invalid %s selector %q: %w", s.name, s.query, err)
		}
		*s.dst = compiled
	}

	return a, nil
}

// Sidebar returns the navigation region, or an empty selection when the page has
// not rendered it yet.
func (a *Adapter) Sidebar(root *goquery.Selection) *goquery.Selection {
	return root.FindMatcher(a.sidebar).First()
}

func (a *Adapter) ListLinks(sidebar *goquery.Selection) *goquery.Selection {
	return sidebar.FindMatcher(a.listLink)
}

// ListItem walks up from a list link to its enclosing list-item container.
func (a *Adapter) ListItem(link *goquery.Selection) *goquery.Selection {
	return link.ClosestMatcher(a.listItem)
}

func (a *Adapter) Badge(item *goquery.Selection) *goquery.Selection {
	return item.FindMatcher(a.badge).First()
}

func (a *Adapter) MainRegion(root *goquery.Selection) *goquery.Selection {
	return root.FindMatcher(a.main).First()
}

func (a *Adapter) Cards(region *goquery.Selection) *goquery.Selection {
	return region.FindMatcher(a.card)
}

func (a *Adapter) ArchivedAttribute() string {
	return a.profile.ArchivedAttribute
}

// Stylesheet is the utility CSS the host ships in external files, used to
// resolve computed styles on the live page.
func (a *Adapter) Stylesheet() string {
	return a.profile.Stylesheet
}

// ListPath returns the same-origin path of a list's dedicated page.
func (a *Adapter) ListPath(listID string) string {
	return strings.ReplaceAll(a.profile.ListPage, "{id}", url.PathEscape(listID))
}

// ListID extracts the list identifier from a list link: the path segment
// right after the list-path segment. Links without one yield false.
func (a *Adapter) ListID(href string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	return a.listSegment(u.Path)
}

// IsCurrentList reports whether locationPath is the dedicated page of listID,
// or a page nested under it.
func (a *Adapter) IsCurrentList(locationPath, listID string) bool {
	current, ok := a.listSegment(locationPath)
	return ok && listID != "" && current == listID
}

func (a *Adapter) listSegment(p string) (string, bool) {
	idx := strings.Index(p, a.profile.ListPathSegment)
	if idx < 0 {
		return "", false
	}

	id, _, _ := strings.Cut(p[idx+len(a.profile.ListPathSegment):], "/")
	return id, id != ""
}

// IsLandmark reports whether n is, or contains, a sidebar or main-content region.
func (a *Adapter) IsLandmark(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	return a.sidebar.MatchFirst(n) != nil || a.main.MatchFirst(n) != nil
}
