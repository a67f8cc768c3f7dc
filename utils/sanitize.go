package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict = bluemonday.StrictPolicy()
	// the HTML tokenizer folds CR and CRLF into LF; compare on the same footing
	newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// ContainsMarkup reports whether input holds anything the strict policy would
// remove, such as tags, comments or script blocks. Entities and a lone '<'
// ("a < b", "<3") are text and do not count.
func ContainsMarkup(input string) bool {
	text := newlines.Replace(input)
	return html.UnescapeString(strict.Sanitize(text)) != html.UnescapeString(text)
}
