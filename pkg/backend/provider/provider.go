// Package provider defines the delivery backends for outbound mail.
package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"

	"github.com/jhillyerd/enmime/v2"
)

// Attachment is one binary part of an outbound message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a fully assembled outbound email.
type Message struct {
	From        mail.Address
	To          []string
	CC          []string
	BCC         []string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Provider delivers assembled messages to a target service.
type Provider interface {
	// Send delivers msg, returning an error if delivery fails.
	Send(ctx context.Context, msg *Message) error

	// Name returns the human-readable name of this provider.
	Name() string
}

// BuildMIME encodes msg as an RFC 2045 MIME document.
func BuildMIME(msg *Message) ([]byte, error) {
	b := enmime.Builder().
		From(msg.From.Name, msg.From.Address).
		Subject(msg.Subject).
		Text([]byte(msg.TextBody))
	if msg.HTMLBody != "" {
		b = b.HTML([]byte(msg.HTMLBody))
	}
	for _, addr := range msg.To {
		b = b.To("", addr)
	}
	for _, addr := range msg.CC {
		b = b.CC("", addr)
	}
	for _, addr := range msg.BCC {
		b = b.BCC("", addr)
	}
	for _, att := range msg.Attachments {
		b = b.AddAttachment(att.Content, att.ContentType, att.Filename)
	}
	part, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("building MIME message: %w", err)
	}
	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encoding MIME message: %w", err)
	}
	return buf.Bytes(), nil
}
