package dom

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseLive(t *testing.T, markup, utilityCSS string) *Document {
	t.Helper()
	doc, err := Parse(strings.NewReader(markup), &url.URL{Scheme: "https", Host: "example.com", Path: "/"})
	require.NoError(t, err)
	doc.attach(utilityCSS)
	return doc
}

func styleOf(t *testing.T, doc *Document, selector string) Style {
	t.Helper()
	sel := doc.Selection().Find(selector)
	require.Equal(t, 1, sel.Length(), selector)
	style, err := doc.ComputedStyle(sel.Nodes[0])
	require.NoError(t, err)
	return style
}

func TestComputedStyle_Defaults(t *testing.T) {
	doc := parseLive(t, `<div id="plain">x</div>`, "")

	style := styleOf(t, doc, "#plain")
	assert.Equal(t, 1.0, style.Opacity)
	assert.Equal(t, "", style.Display)
}

func TestComputedStyle_Sources(t *testing.T) {
	markup := `
		<html><head><style>
			/* archived cards are faded */
			.faded { opacity: 0.4 }
			div.card.faded { opacity: 0.6 }
			@media (max-width: 600px) { .card { display: none } }
			.gone { display: NONE !important }
		</style></head><body>
			<div id="hidden-attr" hidden>x</div>
			<div id="utility" class="opacity-50">x</div>
			<div id="specific" class="card faded">x</div>
			<div id="inline" class="faded" style="opacity: 0.9">x</div>
			<div id="important" class="gone" style="display: block">x</div>
			<div id="percent" style="opacity: 25%">x</div>
			<div id="media" class="card">x</div>
		</body></html>`

	doc := parseLive(t, markup, `.opacity-50 { opacity: .5 }`)

	assert.Equal(t, "none", styleOf(t, doc, "#hidden-attr").Display)
	assert.Equal(t, 0.5, styleOf(t, doc, "#utility").Opacity)
	assert.Equal(t, 0.6, styleOf(t, doc, "#specific").Opacity, "higher specificity wins")
	assert.Equal(t, 0.9, styleOf(t, doc, "#inline").Opacity, "inline wins over rules")
	assert.Equal(t, "none", styleOf(t, doc, "#important").Display, "!important wins over inline")
	assert.Equal(t, 0.25, styleOf(t, doc, "#percent").Opacity)
	assert.Equal(t, "", styleOf(t, doc, "#media").Display, "narrow-screen rules do not apply")
}

func TestComputedStyle_AtRules(t *testing.T) {
	markup := `
		<html><head><style>
			@media (min-width: 0px) { .faded { opacity: .5 } }
			@media (min-width: 640px) and (max-width: 90rem) { .md-hidden { display: none } }
			@media print { .print-hidden { display: none } }
			@media screen, print { .either { opacity: 0.3 } }
			@supports (display: grid) { @media (prefers-color-scheme: dark) { .dark-faded { opacity: 0.4 } } }
			@font-face { font-family: "x"; src: url(x.woff) }
			.label::before { content: "{" }
			.after-quote { opacity: 0.7 }
		</style></head><body>
			<div id="faded" class="faded">x</div>
			<div id="md" class="md-hidden">x</div>
			<div id="print" class="print-hidden">x</div>
			<div id="either" class="either">x</div>
			<div id="dark" class="dark-faded">x</div>
			<div id="quote" class="after-quote">x</div>
		</body></html>`

	doc := parseLive(t, markup, "")

	assert.Equal(t, 0.5, styleOf(t, doc, "#faded").Opacity, "rules inside a matching @media block apply")
	assert.Equal(t, "none", styleOf(t, doc, "#md").Display)
	assert.Equal(t, "", styleOf(t, doc, "#print").Display, "print-only rules do not apply")
	assert.Equal(t, 0.3, styleOf(t, doc, "#either").Opacity)
	assert.Equal(t, 0.4, styleOf(t, doc, "#dark").Opacity)
	assert.Equal(t, 0.7, styleOf(t, doc, "#quote").Opacity, "a brace inside a string does not end the rule")
}

func TestMediaMatches(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"", true},
		{"screen", true},
		{"(min-width: 0px)", true},
		{"(min-width: 1281px)", false},
		{"(max-width: 600px)", false},
		{"screen and (min-width: 48em)", true},
		{"only screen and (max-width: 80rem)", true},
		{"print", false},
		{"not print", true},
		{"print, (min-width: 768px)", true},
		{"(prefers-color-scheme: dark)", true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, mediaMatches(tt.query))
		})
	}
}

func TestComputedStyle_SourceOrder(t *testing.T) {
	markup := `<style>.a { opacity: 0.2 } .b { opacity: 0.7 }</style><div id="x" class="a b">x</div>`
	doc := parseLive(t, markup, "")

	assert.Equal(t, 0.7, styleOf(t, doc, "#x").Opacity)
}

func TestComputedStyle_Detached(t *testing.T) {
	doc, err := Parse(strings.NewReader(`<div id="x" hidden>x</div>`), nil)
	require.NoError(t, err)

	assert.False(t, doc.Attached())
	_, err = doc.ComputedStyle(doc.Selection().Find("#x").Nodes[0])
	assert.ErrorIs(t, err, ErrDetached)
}

func TestParseOpacity(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"0.5", 0.5, true},
		{"1", 1, true},
		{"2", 1, true},
		{"-1", 0, true},
		{"80%", 0.8, true},
		{"inherit", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseOpacity(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}
