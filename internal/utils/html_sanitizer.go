package utils

import (
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/xeonx/timeago"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// HTMLSanitizer renders chat messages written in markdown into HTML that
// is safe to embed.
type HTMLSanitizer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewHTMLSanitizer creates a sanitizer allowing basic formatting, lists,
// quotes, code and links.
func NewHTMLSanitizer() *HTMLSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("b", "strong", "i", "em", "u", "s", "del")
	p.AllowElements("p", "br", "hr")
	p.AllowElements("ul", "ol", "li")
	p.AllowElements("blockquote", "code", "pre")
	p.AllowElements("table", "thead", "tbody", "tr", "th", "td")

	p.AllowElements("a")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	md := goldmark.New(
		goldmark.WithExtensions(extension.Linkify, extension.Strikethrough, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)

	return &HTMLSanitizer{md: md, policy: p}
}

// Sanitize cleans HTML content.
func (s *HTMLSanitizer) Sanitize(content string) string {
	return s.policy.Sanitize(content)
}

// RenderMarkdown converts a markdown message to sanitized HTML. Raw HTML in
// the source is dropped by the renderer before sanitizing.
func (s *HTMLSanitizer) RenderMarkdown(markdown string) string {
	var buf strings.Builder
	if err := s.md.Convert([]byte(markdown), &buf); err != nil {
		return s.policy.Sanitize(markdown)
	}
	return strings.TrimSpace(s.policy.Sanitize(buf.String()))
}

// StripHTML removes all HTML tags and returns plain text.
func StripHTML(content string) string {
	return bluemonday.StrictPolicy().Sanitize(content)
}

// RelativeAge formats t relative to now in French, e.g. "il y a 3 heures".
func RelativeAge(t, now time.Time) string {
	return timeago.French.FormatReference(t, now)
}
