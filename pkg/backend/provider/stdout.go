package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// StdoutProvider prints messages to standard output in a human-readable
// format.  Useful for local development.
type StdoutProvider struct {
	writer io.Writer
}

// NewStdout creates a StdoutProvider that writes to os.Stdout.
func NewStdout() *StdoutProvider {
	return &StdoutProvider{writer: os.Stdout}
}

// NewStdoutWithWriter creates a StdoutProvider that writes to w, used for
// testing.
func NewStdoutWithWriter(w io.Writer) *StdoutProvider {
	return &StdoutProvider{writer: w}
}

// Send prints the message.  It always succeeds.
func (p *StdoutProvider) Send(_ context.Context, msg *Message) error {
	var b strings.Builder

	b.WriteString("========================================\n")
	b.WriteString(fmt.Sprintf("From: %s\n", msg.From.String()))
	b.WriteString(fmt.Sprintf("To: %s\n", strings.Join(msg.To, ", ")))
	if len(msg.CC) > 0 {
		b.WriteString(fmt.Sprintf("Cc: %s\n", strings.Join(msg.CC, ", ")))
	}
	if len(msg.BCC) > 0 {
		b.WriteString(fmt.Sprintf("Bcc: %s\n", strings.Join(msg.BCC, ", ")))
	}
	b.WriteString(fmt.Sprintf("Subject: %s\n", msg.Subject))
	b.WriteString("Body:\n")

	body := msg.TextBody
	if body == "" {
		body = msg.HTMLBody
	}
	b.WriteString(body + "\n")

	if len(msg.Attachments) > 0 {
		names := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			names = append(names, fmt.Sprintf("%s (%s)", att.Filename,
				formatSize(len(att.Content))))
		}
		b.WriteString(fmt.Sprintf("Attachments: %s\n", strings.Join(names, ", ")))
	}
	b.WriteString("========================================\n")

	_, _ = fmt.Fprint(p.writer, b.String())
	return nil
}

// Name returns the provider name.
func (p *StdoutProvider) Name() string {
	return "stdout"
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)
	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
