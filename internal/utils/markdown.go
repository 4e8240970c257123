package utils

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)

	postPolicy    = newPostPolicy()
	commentPolicy = newCommentPolicy()
)

func newPostPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowImages()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	return p
}

// Comments keep inline formatting, lists, quotes and code. Headings, tables
// and images are reduced to their text.
func newCommentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em", "del", "code", "pre", "blockquote", "ul", "ol", "li")
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

func toHTML(source string, policy *bluemonday.Policy) (string, bool) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return template.HTMLEscapeString(source), false
	}
	return string(policy.SanitizeBytes(buf.Bytes())), true
}

// RenderMarkdown converts post content to sanitised HTML with lazy images.
func RenderMarkdown(source string) template.HTML {
	if source == "" {
		return ""
	}
	out, ok := toHTML(source, postPolicy)
	if !ok {
		return template.HTML(out)
	}
	return EnhanceHTMLContent(out)
}

// RenderComment converts a comment to HTML under the narrower comment policy.
func RenderComment(source string) template.HTML {
	if source == "" {
		return ""
	}
	out, _ := toHTML(source, commentPolicy)
	return template.HTML(out)
}
