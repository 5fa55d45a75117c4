package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/quickmail/quickmail/pkg/body"
	"github.com/quickmail/quickmail/pkg/extract"
	"github.com/quickmail/quickmail/pkg/notify"
	"github.com/quickmail/quickmail/pkg/rest/client"
)

// Submit validates the composer state, assembles the outbound payload and
// performs the single network call.  The first failed validation emits one
// error notification and stops before any network activity.  On failure the
// state is left untouched so the user can retry; success resets the session
// to its empty defaults.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return ErrSubmitInFlight
	}
	s.touch()

	// Pre-conditions, in order; the first failure short-circuits.
	if msg := s.validate(); msg != "" {
		s.mu.Unlock()
		s.queue.Push(notify.Error, msg)
		return fmt.Errorf("%w: %s", ErrInvalid, msg)
	}

	sr, extracted := s.assemble()
	s.submitting = true
	s.mu.Unlock()

	if extracted > 0 {
		s.queue.Push(notify.Info,
			fmt.Sprintf("%d image(s) will be sent as attachments", extracted))
	}

	log.Info().Str("module", "compose").Str("id", s.ID).Str("to", sr.To).
		Int("files", len(sr.Files)).Msg("Submitting message")
	err := s.sender.SendEmail(ctx, sr)

	s.mu.Lock()
	s.submitting = false
	if err != nil {
		// State stays intact for a retry; the failure is terminal for
		// this attempt, there is no automatic resubmission.
		s.mu.Unlock()
		log.Warn().Str("module", "compose").Str("id", s.ID).Err(err).
			Msg("Submission failed")
		s.queue.Push(notify.Error, userMessage(err, "Failed to send email"))
		return err
	}
	s.reset()
	s.mu.Unlock()

	s.queue.Push(notify.Success, "Email sent successfully!")
	return nil
}

// validate returns the user-facing message for the first violated
// pre-condition, or "" when the state may be submitted.
func (s *Session) validate() string {
	switch {
	case !s.state.TosAccepted:
		return "Please agree to the Terms of Service before sending."
	case !ValidAddress(s.state.Recipient):
		return "Please enter a valid email address"
	case strings.TrimSpace(s.state.Subject) == "":
		return "Please enter a subject"
	case strings.TrimSpace(s.state.BodyText) == "" &&
		strings.TrimSpace(s.state.BodyHTML) == "":
		return "Please enter an email body"
	}
	return ""
}

// assemble builds the outbound request: embedded images are promoted to
// attachments, the text body is resolved through its fallback chain, and
// empty optional fields are dropped.  Called with the session mutex held.
func (s *Session) assemble() (*client.SendRequest, int) {
	cleaned, images := extract.Extract(s.state.BodyHTML)

	bodyText := strings.TrimSpace(s.state.BodyText)
	if bodyText == "" {
		bodyText = strings.TrimSpace(body.Text(s.state.BodyHTML))
	}
	if bodyText == "" {
		bodyText = s.cfg.PlaceholderBody
	}

	sr := &client.SendRequest{
		To:       s.state.Recipient,
		Subject:  s.state.Subject,
		BodyText: bodyText,
		CC:       strings.TrimSpace(s.state.CC),
		BCC:      strings.TrimSpace(s.state.BCC),
	}
	if strings.TrimSpace(cleaned) != "" {
		sr.BodyHTML = cleaned
	}

	// Explicit attachments with no error, then the extracted images; only
	// parts with positive size are transmitted.
	for _, f := range s.store.ValidFiles() {
		if f.Size > 0 {
			sr.Files = append(sr.Files, client.SendFile{
				Name:        f.Name,
				ContentType: f.ContentType,
				Data:        f.Data,
			})
		}
	}
	for _, img := range images {
		if len(img.Data) > 0 {
			sr.Files = append(sr.Files, client.SendFile{
				Name:        img.Name,
				ContentType: img.ContentType,
				Data:        img.Data,
			})
		}
	}
	return sr, len(images)
}

// reset restores the empty composer defaults.  Called with the session
// mutex held.
func (s *Session) reset() {
	s.state = State{}
	s.editor.Replace("")
	s.store.Clear()
}
