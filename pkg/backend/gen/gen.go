// Package gen produces plain-text email bodies for a subject line.
// Paragraphs in the output are separated by blank lines.
package gen

import "context"

// Generator writes an email body matching a subject.
type Generator interface {
	// Generate returns the body text, or an error the caller reports as a
	// service failure.
	Generate(ctx context.Context, subject string) (string, error)

	// Name returns the human-readable name of this generator.
	Name() string
}
