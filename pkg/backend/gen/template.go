package gen

import (
	"context"
	"fmt"
	"strings"
)

// TemplateGenerator produces a fixed-form body from the subject, for
// deployments without an AI key.
type TemplateGenerator struct{}

// NewTemplate creates a TemplateGenerator.
func NewTemplate() *TemplateGenerator {
	return &TemplateGenerator{}
}

// Generate writes a short professional body around the subject.
func (g *TemplateGenerator) Generate(_ context.Context, subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	var b strings.Builder
	b.WriteString("Hi,\n\n")
	b.WriteString(fmt.Sprintf(
		"I wanted to reach out regarding %s. Please find the details below and "+
			"let me know if you have any questions.\n\n", subject))
	b.WriteString(fmt.Sprintf(
		"If anything about %s needs to change on your end, just reply to this "+
			"email and we can sort it out.\n\n", subject))
	b.WriteString("Best regards,")
	return b.String(), nil
}

// Name returns the generator name.
func (g *TemplateGenerator) Name() string {
	return "template"
}
