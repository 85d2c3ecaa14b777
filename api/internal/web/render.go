package web

import (
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"gitlab.com/golang-commonmark/markdown"
)

var (
	md     = markdown.New(markdown.XHTMLOutput(true), markdown.Tables(true), markdown.HTML(false))
	policy = bluemonday.UGCPolicy()
)

// renderAnswer turns the model's Markdown into sanitized HTML.
func renderAnswer(s string) template.HTML {
	return template.HTML(policy.Sanitize(md.RenderToString([]byte(s))))
}
