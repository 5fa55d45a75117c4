package provider

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/rs/zerolog/log"
)

// MboxProvider appends delivered messages to a local mbox file.
type MboxProvider struct {
	path string

	// mbox files are line-delimited; concurrent appends would interleave.
	mu sync.Mutex
}

// NewMbox creates an MboxProvider writing to path.  The file is created on
// first delivery.
func NewMbox(path string) *MboxProvider {
	return &MboxProvider{path: path}
}

// Send encodes msg as MIME and appends it to the mbox file.
func (p *MboxProvider) Send(_ context.Context, msg *Message) error {
	data, err := BuildMIME(msg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening mbox %q: %w", p.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	w := mbox.NewWriter(f)
	mw, err := w.CreateMessage(msg.From.Address, time.Now())
	if err != nil {
		return fmt.Errorf("starting mbox entry: %w", err)
	}
	if _, err := mw.Write(data); err != nil {
		return fmt.Errorf("writing mbox entry: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing mbox writer: %w", err)
	}
	log.Debug().Str("module", "backend").Str("path", p.path).Int("bytes", len(data)).
		Msg("Appended message to mbox")
	return nil
}

// Name returns the provider name.
func (p *MboxProvider) Name() string {
	return "mbox"
}
