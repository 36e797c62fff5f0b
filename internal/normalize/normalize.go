// Package normalize cleans raw chat-bot form values before they reach
// the CRM: phone formatting, BOM stripping, HTML-link unwrapping and
// the Telegram file-id heuristic.
package normalize

import (
	"regexp"
	"strings"
)

var anchorRe = regexp.MustCompile(`(?is)<a\s[^>]*>(.*?)</a>`)

var zeroWidth = strings.NewReplacer(
	"\uFEFF", "",
	"\u200B", "",
	"\u200C", "",
	"\u200D", "",
)

// Phone reduces raw input to its ASCII digits and forces the +998
// prefix. Every number is assumed domestic unless it already carries
// the country code; anything without digits comes back empty. Length
// is not validated, so a malformed input still yields a
// plausible-looking number.
func Phone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "998"):
		return "+" + digits
	default:
		return "+998" + digits
	}
}

// IsTelegramFileID reports whether a value looks like a Telegram file
// identifier: longer than 20 characters, starts with an alphanumeric
// and contains no spaces. Long free-text answers can misclassify; the
// heuristic is kept as-is because the bot emits no better marker.
func IsTelegramFileID(v string) bool {
	if len(v) <= 20 || strings.Contains(v, " ") {
		return false
	}
	c := v[0]
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// LinkText returns the inner text of an HTML anchor, or the input
// unchanged when it is not one.
func LinkText(v string) string {
	m := anchorRe.FindStringSubmatch(v)
	if m == nil {
		return v
	}
	return strings.TrimSpace(m[1])
}

// StripBOM removes BOM and zero-width characters and trims whitespace.
func StripBOM(s string) string {
	return strings.TrimSpace(zeroWidth.Replace(s))
}
