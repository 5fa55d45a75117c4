package body

import (
	"strings"

	"golang.org/x/net/html"
)

// Tags that terminate a line of plain text output.
var blockTags = map[string]struct{}{
	"p": {}, "div": {}, "li": {}, "br": {}, "tr": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"blockquote": {}, "pre": {},
}

// Text strips markup from html, returning the plain text a reader would
// see.  Entities are unescaped and block boundaries become newlines.
func Text(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if _, ok := blockTags[string(name)]; ok {
				b.WriteByte('\n')
			}
		}
	}
}
