// Package sanitize cleans body HTML arriving from the browser before it
// enters the composer document.
package sanitize

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	cssSafe = regexp.MustCompile(".*")

	policy = bodyPolicy()
)

// bodyPolicy is UGC plus the bits a rich email body needs: embedded data-URI
// images for later extraction, and inline styles (filtered below).
// AllowDataURIImages mutates the policy without returning it, so it cannot
// join the chain.
func bodyPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy().
		AllowAttrs("alt").OnElements("img").
		AllowAttrs("style").Matching(cssSafe).Globally()
	p.AllowDataURIImages()
	return p
}

// Body sanitizes composer body HTML, while attempting to preserve inline
// CSS styling and embedded images.
func Body(input string) (output string, err error) {
	output, err = sanitizeStyleAttrs(input)
	if err != nil {
		return "", err
	}
	output = policy.Sanitize(output)
	return
}

func sanitizeStyleAttrs(input string) (string, error) {
	r := strings.NewReader(input)
	b := &bytes.Buffer{}
	if err := styleAttrFilter(b, r); err != nil {
		return "", err
	}
	return b.String(), nil
}

// styleAttrFilter re-emits the token stream, passing every style attribute
// value through the CSS property filter.  Tags without attributes are
// copied raw.
func styleAttrFilter(w io.Writer, r io.Reader) error {
	bw := bufio.NewWriter(w)
	b := make([]byte, 0, 256)
	z := html.NewTokenizer(r)
	for {
		b = b[:0]
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			err := z.Err()
			if err == io.EOF {
				return bw.Flush()
			}
			return err
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr {
				if _, err := bw.Write(z.Raw()); err != nil {
					return err
				}
				continue
			}
			b = append(b, '<')
			b = append(b, name...)
			for {
				key, val, more := z.TagAttr()
				strval := string(val)
				style := false
				if strings.ToLower(string(key)) == "style" {
					style = true
					strval = sanitizeStyle(strval)
				}
				if !style || strval != "" {
					b = append(b, ' ')
					b = append(b, key...)
					b = append(b, '=', '"')
					b = append(b, []byte(html.EscapeString(strval))...)
					b = append(b, '"')
				}
				if !more {
					break
				}
			}
			if tt == html.SelfClosingTagToken {
				b = append(b, '/')
			}
			if _, err := bw.Write(append(b, '>')); err != nil {
				return err
			}
		default:
			if _, err := bw.Write(z.Raw()); err != nil {
				return err
			}
		}
	}
}
