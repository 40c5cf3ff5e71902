package templates

import (
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/scampish/internal/site"
)

// Funcs returns the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"safeHTML": func(s string) template.HTML { return template.HTML(s) }, //nolint:gosec // author-controlled content
		"join":     site.JoinURL,
		"lower":    strings.ToLower,
		"upper":    strings.ToUpper,
		"title":    title,
		"now":      func() time.Time { return time.Now().UTC() },
		"date": func(layout string, t time.Time) string {
			return t.Format(layout)
		},
	}
}

// title uses a fresh Caser per call; a Caser must not be shared between goroutines.
func title(s string) string {
	return cases.Title(language.Und).String(s)
}
