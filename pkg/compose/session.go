// Package compose implements the compose-and-submit pipeline: composer
// state, attachment intake, body editing, and the submission assembler.
package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quickmail/quickmail/pkg/body"
	"github.com/quickmail/quickmail/pkg/compose/attachment"
	"github.com/quickmail/quickmail/pkg/config"
	"github.com/quickmail/quickmail/pkg/notify"
	"github.com/quickmail/quickmail/pkg/rest/client"
	"github.com/quickmail/quickmail/pkg/sanitize"
)

var (
	// ErrSubmitInFlight is returned while a submission attempt is already
	// running; at most one runs per session at a time.
	ErrSubmitInFlight = errors.New("a submission is already in progress")

	// ErrInvalid wraps a failed submission pre-condition.
	ErrInvalid = errors.New("invalid composer state")

	// ErrSubjectRequired is returned by Generate when the subject is empty.
	ErrSubjectRequired = errors.New("subject required for generation")
)

// Sender is the outbound contract the assembler expects from the backend.
// *client.Client satisfies it.
type Sender interface {
	GenerateBody(ctx context.Context, subject string) (string, error)
	SendEmail(ctx context.Context, sr *client.SendRequest) error
}

// State is the composer state owned by one session.  It is reset to its
// empty defaults immediately after a successful submission.
type State struct {
	Recipient   string
	Subject     string
	CC          string
	BCC         string
	BodyHTML    string
	BodyText    string
	TosAccepted bool
}

// Snapshot is a read-only copy of a session for display.
type Snapshot struct {
	State
	Attachments []*attachment.File
	Submitting  bool
}

// Session owns the composer state for one user.  All entry points serialize
// on an internal mutex; the editor and attachment store are only touched
// while it is held.
type Session struct {
	ID string

	mu         sync.Mutex
	state      State
	editor     *body.Editor
	store      *attachment.Store
	queue      *notify.Queue
	sender     Sender
	cfg        config.Compose
	submitting bool
	lastActive time.Time
}

// NewSession wires a session from its parts.  The queue must already be
// started by the caller.
func NewSession(id string, cfg config.Compose, sender Sender, queue *notify.Queue) *Session {
	s := &Session{
		ID:         id,
		queue:      queue,
		sender:     sender,
		cfg:        cfg,
		lastActive: time.Now(),
	}

	// Editor and store report changes straight into the state; callbacks
	// run synchronously under the session mutex.
	s.editor = body.NewEditor(func(html, text string) {
		s.state.BodyHTML = html
		s.state.BodyText = text
	})
	s.store = attachment.NewStore(cfg.MaxFiles, cfg.MaxFileBytes, nil)
	return s
}

// Notifications exposes the session's notification queue.
func (s *Session) Notifications() *notify.Queue {
	return s.queue
}

// LastActive returns the time of the most recent entry-point call.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.lastActive = time.Now()
}

// Fields is a partial update of the scalar composer fields.
type Fields struct {
	Recipient   *string
	Subject     *string
	CC          *string
	BCC         *string
	TosAccepted *bool
}

// SetFields applies the non-nil fields.
func (s *Session) SetFields(f Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if f.Recipient != nil {
		s.state.Recipient = *f.Recipient
	}
	if f.Subject != nil {
		s.state.Subject = *f.Subject
	}
	if f.CC != nil {
		s.state.CC = *f.CC
	}
	if f.BCC != nil {
		s.state.BCC = *f.BCC
	}
	if f.TosAccepted != nil {
		s.state.TosAccepted = *f.TosAccepted
	}
}

// BodyEdit carries one body edit with its caret state.
type BodyEdit struct {
	HTML     string
	Replace  bool // programmatic content, preserve the caret
	Focused  bool
	SelStart int
	SelEnd   int
}

// SetBody sanitizes and applies a body edit.
func (s *Session) SetBody(edit BodyEdit) error {
	clean, err := sanitize.Body(edit.HTML)
	if err != nil {
		return fmt.Errorf("sanitizing body: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if edit.Focused {
		s.editor.Focus(edit.SelStart, edit.SelEnd)
	} else {
		s.editor.Blur()
	}
	if edit.Replace {
		s.editor.Replace(clean)
	} else {
		s.editor.SetContent(clean)
	}
	return nil
}

// InsertImage embeds an image file into the body.  Failures surface as an
// error notification as well as the returned error.
func (s *Session) InsertImage(r io.Reader, name, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if err := s.editor.InsertImage(r, name, contentType); err != nil {
		s.queue.Push(notify.Error, "Failed to insert image")
		return err
	}
	return nil
}

// InsertImageURL embeds an externally hosted image reference.
func (s *Session) InsertImageURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.editor.InsertImageURL(url)
}

// Attach runs attachment intake.
func (s *Session) Attach(candidates []attachment.Candidate, rejected []attachment.Rejected) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.store.Intake(candidates, rejected)
}

// RemoveAttachment removes one attachment entry by ID.
func (s *Session) RemoveAttachment(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.store.Remove(id)
}

// View returns a copy of the current composer state.
func (s *Session) View() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:       s.state,
		Attachments: s.store.All(),
		Submitting:  s.submitting,
	}
}

// Generate fetches an AI-written body for the current subject and loads it
// into the editor as paragraph markup, preserving the caret.
func (s *Session) Generate(ctx context.Context) error {
	s.mu.Lock()
	subject := strings.TrimSpace(s.state.Subject)
	s.touch()
	s.mu.Unlock()

	if subject == "" {
		s.queue.Push(notify.Error, "Please enter a subject line first")
		return ErrSubjectRequired
	}

	text, err := s.sender.GenerateBody(ctx, subject)
	if err != nil {
		log.Warn().Str("module", "compose").Str("id", s.ID).Err(err).
			Msg("Body generation failed")
		s.queue.Push(notify.Error, userMessage(err, "Failed to generate body"))
		return err
	}

	s.mu.Lock()
	s.editor.Replace(paragraphMarkup(text))
	// Keep the generator's own text; the markup round trip would lose the
	// blank-line paragraph separators.
	s.state.BodyText = text
	s.mu.Unlock()

	s.queue.Push(notify.Success, "Email body generated successfully!")
	return nil
}

// paragraphMarkup converts blank-line-separated plain text into the
// paragraph markup the editor holds.
func paragraphMarkup(text string) string {
	var b strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(para)
		b.WriteString("</p>")
	}
	return b.String()
}

// userMessage prefers the backend's detail message over fallback.
func userMessage(err error, fallback string) string {
	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
