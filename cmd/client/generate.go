package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/quickmail/quickmail/pkg/rest/client"
)

type generateCmd struct{}

func (*generateCmd) Name() string {
	return "generate"
}

func (*generateCmd) Synopsis() string {
	return "generate an email body for a subject"
}

func (*generateCmd) Usage() string {
	return `generate <subject>:
	print an AI generated email body for subject
`
}

func (g *generateCmd) SetFlags(f *flag.FlagSet) {}

func (g *generateCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	subject := f.Arg(0)
	if subject == "" {
		return usage("subject required")
	}

	// Setup rest client
	c, err := client.New(baseURL())
	if err != nil {
		return fatal("Couldn't build client", err)
	}

	body, err := c.GenerateBody(ctx, subject)
	if err != nil {
		return fatal("REST call failed", err)
	}
	fmt.Println(body)

	return subcommands.ExitSuccess
}
