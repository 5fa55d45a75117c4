// Package client provides the HTTP client for the send/generate backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// httpClient allows http.Client to be mocked for tests.
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Error is a failure reported by the backend, carrying the detail message
// intended for the user.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	return e.Detail
}

// Client calls the backend's generate-body and send-email endpoints.
type Client struct {
	client  httpClient
	baseURL *url.URL
}

// Option adjusts client construction.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	timeout   time.Duration
}

// WithTransport sets the HTTP transport, used by tests.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithTimeout overrides the default 30 second request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// New creates a backend client given a base URL, ex: "http://127.0.0.1:8000".
func New(baseURL string, opts ...Option) (*Client, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	o := &options{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(o)
	}
	return &Client{
		client: &http.Client{
			Timeout:   o.timeout,
			Transport: o.transport,
		},
		baseURL: parsedURL,
	}, nil
}

// GenerateBody asks the backend for a plain-text body matching subject.
// Paragraphs in the result are separated by blank lines.
func (c *Client) GenerateBody(ctx context.Context, subject string) (string, error) {
	reqBody, err := json.Marshal(map[string]string{"subject": subject})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL.JoinPath("/generate-body").String(), bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", decodeError(resp)
	}
	var out struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding generate-body response: %w", err)
	}
	return out.Body, nil
}

// SendFile is one binary part of a submission.
type SendFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// SendRequest is the assembled outbound submission.
type SendRequest struct {
	To       string
	Subject  string
	BodyText string
	BodyHTML string
	CC       string
	BCC      string
	Files    []SendFile
}

// SendEmail performs the single outbound submission call as a multipart
// form.  Optional fields are omitted when empty; every file becomes one
// binary part named "files".
func (c *Client) SendEmail(ctx context.Context, sr *SendRequest) error {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	fields := []struct{ name, value string }{
		{"to", sr.To},
		{"subject", sr.Subject},
		{"body_text", sr.BodyText},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return err
		}
	}
	optional := []struct{ name, value string }{
		{"body_html", sr.BodyHTML},
		{"cc", sr.CC},
		{"bcc", sr.BCC},
	}
	for _, f := range optional {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		if err := mw.WriteField(f.name, f.value); err != nil {
			return err
		}
	}
	for _, file := range sr.Files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="files"; filename=%q`, file.Name))
		header.Set("Content-Type", file.ContentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			return err
		}
		if _, err := part.Write(file.Data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL.JoinPath("/send-email").String(), buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// decodeError extracts the backend's structured detail message, falling back
// to a message synthesized from the raw status.
func decodeError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode}
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&detail); err == nil && detail.Detail != "" {
		apiErr.Detail = detail.Detail
	} else {
		apiErr.Detail = fmt.Sprintf("Server error: %d %s",
			resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return apiErr
}
