package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	"github.com/quickmail/quickmail/pkg/rest/client"
)

type sendCmd struct {
	to      string
	subject string
	text    string
	html    string
	cc      string
	bcc     string
	attach  stringsFlag
}

func (*sendCmd) Name() string {
	return "send"
}

func (*sendCmd) Synopsis() string {
	return "send an email through the backend"
}

func (*sendCmd) Usage() string {
	return `send -to <addr> -subject <text> -text <body> [options]:
	send an email, optionally attaching files
`
}

func (s *sendCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.to, "to", "", "recipient address")
	f.StringVar(&s.subject, "subject", "", "message subject")
	f.StringVar(&s.text, "text", "", "plain text body")
	f.StringVar(&s.html, "html", "", "HTML body")
	f.StringVar(&s.cc, "cc", "", "comma separated CC addresses")
	f.StringVar(&s.bcc, "bcc", "", "comma separated BCC addresses")
	f.Var(&s.attach, "attach", "file to attach, repeatable")
}

func (s *sendCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if s.to == "" || s.subject == "" || s.text == "" {
		return usage("to, subject and text are required")
	}

	// Setup rest client
	c, err := client.New(baseURL())
	if err != nil {
		return fatal("Couldn't build client", err)
	}

	sr := &client.SendRequest{
		To:       s.to,
		Subject:  s.subject,
		BodyText: s.text,
		BodyHTML: s.html,
		CC:       s.cc,
		BCC:      s.bcc,
	}
	for _, path := range s.attach {
		data, err := os.ReadFile(path)
		if err != nil {
			return fatal("Couldn't read attachment", err)
		}
		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		sr.Files = append(sr.Files, client.SendFile{
			Name:        filepath.Base(path),
			ContentType: contentType,
			Data:        data,
		})
	}

	if err := c.SendEmail(ctx, sr); err != nil {
		return fatal("REST call failed", err)
	}
	fmt.Println("Email sent successfully!")

	return subcommands.ExitSuccess
}
