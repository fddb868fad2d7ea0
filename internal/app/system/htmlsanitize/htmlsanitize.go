// Package htmlsanitize cleans user-supplied text before it is stored and
// broadcast to other clients.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict = bluemonday.StrictPolicy()
	ugc    = bluemonday.UGCPolicy()
)

// maxPasses bounds the strip/unescape loop in Text.
const maxPasses = 4

// Text strips every tag and returns plain text with entities decoded, so
// names and titles read naturally in JSON. Decoding can expose new markup
// ("&lt;b&gt;"), so stripping repeats until the text is stable.
func Text(s string) string {
	out := strings.TrimSpace(s)
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(strict.Sanitize(out))
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	// Still changing: give up on decoding and return the escaped form.
	return strings.TrimSpace(strict.Sanitize(out))
}

// Rich keeps a safe subset of formatting markup (links, emphasis, lists,
// code) and removes scripts, handlers, iframes and styles.
func Rich(s string) string {
	return strings.TrimSpace(ugc.Sanitize(s))
}
