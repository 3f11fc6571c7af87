// Package sanitize cleans free text from merchants before it is stored and
// shown back through the API.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTag    = regexp.MustCompile(`<[^>]*>`)
	whitespace = regexp.MustCompile(`[ \t\f\v]+`)
)

var entities = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", "\"",
	"&#39;", "'",
)

// StripHTML removes HTML tags, including ones hidden behind encoded entities.
func StripHTML(s string) string {
	out := htmlTag.ReplaceAllString(s, "")
	out = entities.Replace(out)
	out = htmlTag.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// Text strips HTML and collapses runs of spaces. Line breaks are kept so order
// notes stay readable.
func Text(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(StripHTML(s), " "))
}
