// Package preview renders learner code into a document that is safe to show
// inside a sandboxed iframe.
package preview

import (
	"strings"

	"golang.org/x/net/html"
)

var allowedTags = setOf(
	"title", "meta", "link", "style",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"p", "br", "hr", "pre", "blockquote",
	"ul", "ol", "li", "dl", "dt", "dd",
	"a", "em", "strong", "small", "s", "cite", "q", "dfn", "abbr", "data", "time", "code", "var", "samp", "kbd",
	"sub", "sup", "i", "b", "u", "mark", "ruby", "rt", "rp", "bdi", "bdo", "span", "div",
	"table", "caption", "colgroup", "col", "tbody", "thead", "tfoot", "tr", "td", "th",
	"form", "fieldset", "legend", "label", "input", "button", "select", "datalist", "optgroup", "option",
	"textarea", "output", "progress", "meter",
	"details", "summary", "menu", "menuitem",
	"img", "embed", "object", "param", "video", "audio", "source", "track", "canvas", "map", "area",
	"svg", "math",
	"article", "aside", "nav", "section", "header", "footer", "main", "address",
	"figure", "figcaption", "picture",
)

// Dropped together with everything inside them.
var droppedWithContent = setOf(
	"script", "iframe", "frame", "frameset", "noscript", "noembed", "noframes", "template", "xmp", "plaintext",
)

var allowedAttrs = setOf(
	"id", "class", "style", "title", "lang", "dir",
	"href", "target", "rel", "type", "media",
	"src", "srcset", "alt", "width", "height", "loading",
	"for", "name", "value", "placeholder", "required", "disabled", "readonly", "checked", "selected",
	"colspan", "rowspan", "scope", "headers",
	"role", "datetime", "open", "controls", "charset", "content",
)

var urlAttrs = setOf("href", "src", "srcset", "action", "formaction", "poster", "data")

var mediaTags = setOf("img", "video", "audio", "source", "track", "picture")

func setOf(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// Sanitize removes scripts, frames, event handler attributes and script URLs
// from learner HTML. Tags outside the allowlist are unwrapped, keeping their
// text. Document wrappers (doctype, html, head, body) are dropped so the result
// can be embedded in a body.
func Sanitize(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	b.Grow(len(src))

	skipTag := ""
	skipDepth := 0
	inStyle := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or a read error; either way the input is exhausted.
			return b.String()
		}
		tok := z.Token()

		if skipTag != "" {
			switch {
			case tt == html.StartTagToken && tok.Data == skipTag:
				skipDepth++
			case tt == html.EndTagToken && tok.Data == skipTag:
				skipDepth--
				if skipDepth == 0 {
					skipTag = ""
				}
			}
			continue
		}

		switch tt {
		case html.DoctypeToken, html.CommentToken:
			continue

		case html.TextToken:
			if inStyle {
				b.WriteString(tok.Data)
			} else {
				b.WriteString(html.EscapeString(tok.Data))
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			if droppedWithContent[tok.Data] {
				if tt == html.StartTagToken {
					skipTag = tok.Data
					skipDepth = 1
				}
				continue
			}
			if !allowedTags[tok.Data] {
				continue
			}
			writeStartTag(&b, tok, tt == html.SelfClosingTagToken)
			if tok.Data == "style" && tt == html.StartTagToken {
				inStyle = true
			}

		case html.EndTagToken:
			if !allowedTags[tok.Data] {
				continue
			}
			if tok.Data == "style" {
				inStyle = false
			}
			b.WriteString("</")
			b.WriteString(tok.Data)
			b.WriteByte('>')
		}
	}
}

func writeStartTag(b *strings.Builder, tok html.Token, selfClosing bool) {
	b.WriteByte('<')
	b.WriteString(tok.Data)
	for _, a := range tok.Attr {
		if a.Namespace != "" || !allowedAttr(a.Key) {
			continue
		}
		if urlAttrs[a.Key] && !safeURL(a.Val, mediaTags[tok.Data]) {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(a.Key)
		if a.Val != "" {
			b.WriteString(`="`)
			b.WriteString(html.EscapeString(a.Val))
			b.WriteByte('"')
		}
	}
	if selfClosing {
		b.WriteString(" /")
	}
	b.WriteByte('>')
}

func allowedAttr(key string) bool {
	if strings.HasPrefix(key, "on") {
		return false
	}
	if strings.HasPrefix(key, "aria-") || strings.HasPrefix(key, "data-") {
		return true
	}
	return allowedAttrs[key]
}

// safeURL rejects script schemes. data: URLs are only accepted on media elements.
func safeURL(raw string, media bool) bool {
	var b strings.Builder
	for _, r := range raw {
		if r <= ' ' || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	u := strings.ToLower(b.String())
	switch {
	case strings.HasPrefix(u, "javascript:"), strings.HasPrefix(u, "vbscript:"):
		return false
	case strings.HasPrefix(u, "data:"):
		return media
	}
	return true
}
