package dom

import (
	"regexp"
	"strconv"
	"strings"
)

// ViewportWidth is the CSS pixel width the headless view renders at.
const ViewportWidth = 1280

const remPixels = 16

var widthFeature = regexp.MustCompile(`\(\s*(min|max)-width\s*:\s*([0-9]*\.?[0-9]+)\s*(px|em|rem)?\s*\)`)

// mediaMatches evaluates a media query list against a screen of ViewportWidth.
// Width features are evaluated; other features are assumed to hold.
func mediaMatches(query string) bool {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return true
	}

	for _, q := range strings.Split(query, ",") {
		if mediaQueryMatches(strings.TrimSpace(q)) {
			return true
		}
	}
	return false
}

func mediaQueryMatches(q string) bool {
	if rest, ok := strings.CutPrefix(q, "not "); ok {
		return !mediaQueryMatches(strings.TrimSpace(rest))
	}
	q = strings.TrimSpace(strings.TrimPrefix(q, "only "))

	mediaType, _, _ := strings.Cut(q, " ")
	switch mediaType {
	case "print", "speech":
		return false
	}

	for _, m := range widthFeature.FindAllStringSubmatch(q, -1) {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		if m[3] == "em" || m[3] == "rem" {
			v *= remPixels
		}

		switch m[1] {
		case "min":
			if ViewportWidth < v {
				return false
			}
		case "max":
			if ViewportWidth > v {
				return false
			}
		}
	}
	return true
}
