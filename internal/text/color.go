package text

import (
	"regexp"
	"strings"

	"github.com/ernie/pitchside/internal/domain"
)

var (
	colorCodeOnly  = regexp.MustCompile(`(?i)&[0-9a-f]`)
	formatCodeOnly = regexp.MustCompile(`(?i)&[k-or]`)
)

// Strip removes all colour and format codes
func Strip(s string) string {
	return domain.StripColors(s)
}

// SanitizeMessage removes codes a player is not allowed to use.
// Players with colour rights keep everything; others lose both colours and formats.
func SanitizeMessage(msg string, allowColor bool) string {
	if allowColor {
		return msg
	}
	msg = colorCodeOnly.ReplaceAllString(msg, "")
	return formatCodeOnly.ReplaceAllString(msg, "")
}

// LastColor returns the last colour code in s, or "&r" when there is none
func LastColor(s string) string {
	idx := colorCodeOnly.FindAllStringIndex(s, -1)
	if len(idx) == 0 {
		return "&r"
	}
	last := idx[len(idx)-1]
	return strings.ToLower(s[last[0]:last[1]])
}
