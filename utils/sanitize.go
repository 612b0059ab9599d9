package utils

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var textSanitizer = bluemonday.StrictPolicy()

// SanitizeText strips all HTML from client supplied free text such as feedback and ledger reasons.
// Entities produced by the policy are decoded back so the stored value is plain text.
func SanitizeText(input string) string {
	return html.UnescapeString(textSanitizer.Sanitize(input))
}
