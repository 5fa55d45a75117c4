// Package model defines the JSON types shared by the composer API, its
// client, and the backend endpoints.
package model

import "time"

// JSONSessionV1 identifies a composer session.
type JSONSessionV1 struct {
	ID string `json:"id"`
}

// JSONAttachmentV1 is one attachment entry, including its error state so the
// UI can render rejected files.
type JSONAttachmentV1 struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Error       string `json:"error,omitempty"`
}

// JSONComposeStateV1 is a snapshot of a session's composer state.
type JSONComposeStateV1 struct {
	Recipient   string              `json:"recipient"`
	Subject     string              `json:"subject"`
	CC          string              `json:"cc"`
	BCC         string              `json:"bcc"`
	BodyHTML    string              `json:"bodyHtml"`
	BodyText    string              `json:"bodyText"`
	TosAccepted bool                `json:"tosAccepted"`
	Attachments []*JSONAttachmentV1 `json:"attachments"`
	Submitting  bool                `json:"submitting"`
}

// JSONFieldsV1 carries a partial update of the scalar composer fields; nil
// pointers leave the current value untouched.
type JSONFieldsV1 struct {
	Recipient   *string `json:"recipient,omitempty"`
	Subject     *string `json:"subject,omitempty"`
	CC          *string `json:"cc,omitempty"`
	BCC         *string `json:"bcc,omitempty"`
	TosAccepted *bool   `json:"tosAccepted,omitempty"`
}

// JSONBodyV1 carries a body edit from the browser editor.
type JSONBodyV1 struct {
	HTML string `json:"html"`

	// Replace marks programmatic content, which preserves the caret.
	Replace bool `json:"replace,omitempty"`

	// Caret state accompanying the edit.
	Focused  bool `json:"focused,omitempty"`
	SelStart int  `json:"selStart,omitempty"`
	SelEnd   int  `json:"selEnd,omitempty"`
}

// JSONImageURLV1 inserts an externally hosted image into the body.
type JSONImageURLV1 struct {
	URL string `json:"url"`
}

// JSONNotificationV1 is one transient user notification.
type JSONNotificationV1 struct {
	ID      uint64    `json:"id"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`

	// Expired is set on the socket stream when a notification leaves the
	// queue; only ID accompanies it.
	Expired bool `json:"expired,omitempty"`
}

// JSONGenerateRequestV1 asks the backend for a body matching a subject.
type JSONGenerateRequestV1 struct {
	Subject string `json:"subject"`
}

// JSONGenerateResponseV1 carries the generated plain-text body, paragraphs
// separated by blank lines.
type JSONGenerateResponseV1 struct {
	Body string `json:"body"`
}

// JSONErrorV1 is the structured error body returned by the backend.
type JSONErrorV1 struct {
	Detail string `json:"detail"`
}

// JSONSendResponseV1 acknowledges an accepted submission.
type JSONSendResponseV1 struct {
	Message string `json:"message"`
}
