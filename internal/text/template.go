package text

import (
	"regexp"
	"strings"
)

// Vars maps placeholder names (without percent signs) to values
type Vars map[string]string

var leftoverRegex = regexp.MustCompile(`%[A-Za-z_]+%`)

// Render replaces every %key% placeholder in tmpl with its value from vars
func Render(tmpl string, vars Vars) string {
	if tmpl == "" || len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "%"+k+"%", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// RenderStrict renders tmpl and removes any placeholder that had no value
func RenderStrict(tmpl string, vars Vars) string {
	return leftoverRegex.ReplaceAllString(Render(tmpl, vars), "")
}

// StripLeftovers removes unresolved %placeholders% from s
func StripLeftovers(s string) string {
	return leftoverRegex.ReplaceAllString(s, "")
}
