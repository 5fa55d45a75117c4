package provider

import (
	"bytes"
	"context"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"testing"

	"github.com/emersion/go-mbox"
	"github.com/jhillyerd/enmime/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessage() *Message {
	return &Message{
		From:     mail.Address{Name: "Quickmail", Address: "quickmail@localhost"},
		To:       []string{"user@example.com"},
		CC:       []string{"cc@example.com"},
		Subject:  "Hi",
		TextBody: "Hello",
		HTMLBody: "<p>Hello</p>",
		Attachments: []Attachment{
			{Filename: "image_1.png", ContentType: "image/png",
				Content: []byte("PNGDATA")},
		},
	}
}

func TestBuildMIMERoundTrip(t *testing.T) {
	msg := sampleMessage()
	msg.Attachments = []Attachment{
		{Filename: "report.pdf", ContentType: "application/pdf",
			Content: []byte("PDFDATA")},
	}

	data, err := BuildMIME(msg)
	require.NoError(t, err)

	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "Hi", env.GetHeader("Subject"))
	assert.Contains(t, env.GetHeader("From"), "quickmail@localhost")
	assert.Contains(t, env.GetHeader("To"), "user@example.com")
	assert.Contains(t, env.GetHeader("Cc"), "cc@example.com")
	assert.Equal(t, "Hello", env.Text)
	assert.Contains(t, env.HTML, "<p>Hello</p>")
	require.Len(t, env.Attachments, 1)
	assert.Equal(t, "report.pdf", env.Attachments[0].FileName)
	assert.Equal(t, []byte("PDFDATA"), env.Attachments[0].Content)
}

func TestStdoutProvider(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewStdoutWithWriter(buf)

	msg := sampleMessage()
	msg.Attachments = nil
	require.NoError(t, p.Send(context.Background(), msg))

	out := buf.String()
	assert.Contains(t, out, "To: user@example.com")
	assert.Contains(t, out, "Cc: cc@example.com")
	assert.Contains(t, out, "Subject: Hi")
	assert.Contains(t, out, "Hello")
}

func TestMboxProviderAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mbox")
	p := NewMbox(path)

	first := sampleMessage()
	first.Attachments = nil
	require.NoError(t, p.Send(context.Background(), first))

	second := sampleMessage()
	second.Subject = "Second"
	second.Attachments = nil
	require.NoError(t, p.Send(context.Background(), second))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()

	r := mbox.NewReader(f)
	var subjects []string
	for {
		mr, err := r.NextMessage()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		env, err := enmime.ReadEnvelope(mr)
		require.NoError(t, err)
		subjects = append(subjects, env.GetHeader("Subject"))
	}
	assert.Equal(t, []string{"Hi", "Second"}, subjects)
}
