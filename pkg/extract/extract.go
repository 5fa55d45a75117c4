// Package extract promotes base64 images embedded in body HTML to
// first-class attachment files, leaving text placeholders behind.
package extract

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Image is a file decoded out of an embedded data URI.  It exists only for
// the duration of one submission attempt and is never stored in the
// composer state.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

var (
	// Matches a well-formed img tag whose src is a base64 image data URI.
	// This is deliberately a pattern scan, not a document parse: tags the
	// pattern does not match pass through untouched, so HTML that is
	// already clean survives extraction byte for byte.
	imgTagRE = regexp.MustCompile(`<img[^>]+src="data:image/([^;"]+);base64,([^"]*)"[^>]*/?>`)

	altRE = regexp.MustCompile(`alt="([^"]*)"`)
)

// Extract scans html for embedded base64 images.  Each match, in document
// order, is decoded into an Image named image_<n>.<ext> and its tag replaced
// with a placeholder that preserves the alt text.  A payload that fails to
// decode is skipped and logged; its tag is still replaced, so the returned
// HTML never carries a base64 payload.
func Extract(html string) (cleaned string, images []Image) {
	cleaned = imgTagRE.ReplaceAllStringFunc(html, func(tag string) string {
		m := imgTagRE.FindStringSubmatch(tag)
		subtype, payload := m[1], m[2]

		// The fallback applies only when the attribute is absent; an
		// explicit alt="" yields an empty label.
		alt := "Image"
		if am := altRE.FindStringSubmatch(tag); am != nil {
			alt = am[1]
		}

		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			log.Warn().Str("module", "extract").Str("mime", "image/"+subtype).Err(err).
				Msg("Skipping embedded image, payload did not decode")
		} else {
			images = append(images, Image{
				Name:        fmt.Sprintf("image_%d.%s", len(images)+1, extFor(subtype)),
				ContentType: "image/" + subtype,
				Data:        data,
			})
		}

		return "<p><strong>[Image: " + alt + "]</strong></p>"
	})
	return cleaned, images
}

// extFor derives a filename extension from a MIME subtype, ex: "svg+xml"
// becomes "svg".
func extFor(subtype string) string {
	subtype = strings.ToLower(subtype)
	if i := strings.IndexByte(subtype, '+'); i >= 0 {
		subtype = subtype[:i]
	}
	return subtype
}
