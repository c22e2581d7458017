package dom

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// Style holds the computed properties the classifier looks at.
type Style struct {
	Opacity float64
	Display string
}

type origin int

const (
	originUserAgent origin = iota
	originAuthor
	originInline
)

type declaration struct {
	property  string
	value     string
	important bool
}

type rule struct {
	selector    cascadia.Sel
	specificity cascadia.Specificity
	origin      origin
	order       int
	decls       []declaration
}

// Stylesheet is a minimal cascade over opacity and display. Rules nested in
// @media blocks apply when the query matches the headless viewport; other
// at-rules are skipped unless they only group rules.
type Stylesheet struct {
	rules []rule
	next  int
}

const userAgentCSS = `[hidden] { display: none }`

func newStylesheet(sheets ...string) *Stylesheet {
	ss := &Stylesheet{}
	ss.add(userAgentCSS, originUserAgent)
	for _, sheet := range sheets {
		ss.add(sheet, originAuthor)
	}
	return ss
}

func (ss *Stylesheet) add(sheet string, o origin) {
	parsed, err := parser.Parse(sheet)
	if err != nil {
		slog.Debug("Skipping unparsable stylesheet", "error", err)
		return
	}
	ss.addRules(parsed.Rules, o)
}

func (ss *Stylesheet) addRules(rules []*css.Rule, o origin) {
	for _, r := range rules {
		if r.Kind == css.AtRule {
			if embedsApplicableRules(r) {
				ss.addRules(r.Rules, o)
			}
			continue
		}

		prelude := r.Prelude
		if prelude == "" {
			prelude = strings.Join(r.Selectors, ", ")
		}

		group, err := cascadia.ParseGroup(prelude)
		if err != nil {
			slog.Debug("Skipping unsupported CSS selector", "selector", prelude, "error", err)
			continue
		}

		decls := declarations(r.Declarations)
		if len(decls) == 0 {
			continue
		}

		for _, sel := range group {
			ss.rules = append(ss.rules, rule{
				selector:    sel,
				specificity: sel.Specificity(),
				origin:      o,
				order:       ss.next,
				decls:       decls,
			})
			ss.next++
		}
	}
}

// embedsApplicableRules reports whether the rules nested in an at-rule take
// part in the cascade of the headless view.
func embedsApplicableRules(r *css.Rule) bool {
	switch strings.ToLower(strings.TrimPrefix(r.Name, "@")) {
	case "media":
		return mediaMatches(r.Prelude)
	case "supports", "document":
		return true
	}
	return false
}

type candidate struct {
	value       string
	important   bool
	origin      origin
	specificity cascadia.Specificity
	order       int
}

func (c candidate) beats(other candidate) bool {
	if c.important != other.important {
		return c.important
	}
	if c.origin != other.origin {
		return c.origin > other.origin
	}
	if c.specificity != other.specificity {
		return other.specificity.Less(c.specificity)
	}
	return c.order >= other.order
}

// Compute resolves the cascaded opacity and display of n. Inline style wins over
// rules unless a rule is !important.
func (ss *Stylesheet) Compute(n *html.Node) Style {
	winners := map[string]candidate{}

	consider := func(d declaration, c candidate) {
		c.value = d.value
		c.important = d.important
		if cur, ok := winners[d.property]; !ok || c.beats(cur) {
			winners[d.property] = c
		}
	}

	for _, r := range ss.rules {
		if !r.selector.Match(n) {
			continue
		}
		for _, d := range r.decls {
			consider(d, candidate{origin: r.origin, specificity: r.specificity, order: r.order})
		}
	}

	for _, attr := range n.Attr {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, "style") {
			// Wrapped in a block so the last declaration ends without a ';'.
			inline, err := parser.ParseDeclarations("{" + attr.Val + "}")
			if err != nil {
				continue
			}
			for _, d := range declarations(inline) {
				consider(d, candidate{origin: originInline, order: ss.next})
			}
		}
	}

	style := Style{Opacity: 1}
	if c, ok := winners["opacity"]; ok {
		if v, ok := parseOpacity(c.value); ok {
			style.Opacity = v
		}
	}
	if c, ok := winners["display"]; ok {
		style.Display = c.value
	}
	return style
}

// declarations keeps the properties the cascade resolves, lower-cased.
func declarations(decls []*css.Declaration) []declaration {
	var result []declaration
	for _, d := range decls {
		prop := strings.ToLower(strings.TrimSpace(d.Property))
		if prop != "opacity" && prop != "display" {
			continue
		}

		value := strings.ToLower(strings.TrimSpace(d.Value))
		important := d.Important
		if idx := strings.Index(value, "!important"); idx >= 0 {
			important = true
			value = strings.TrimSpace(value[:idx])
		}
		if value == "" {
			continue
		}

		result = append(result, declaration{property: prop, value: value, important: important})
	}
	return result
}

func parseOpacity(value string) (float64, bool) {
	if pct, ok := strings.CutSuffix(value, "%"); ok {
		v, err := strconv.ParseFloat(pct, 64)
		if err != nil {
			return 0, false
		}
		return clamp(v / 100), true
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return clamp(v), true
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
