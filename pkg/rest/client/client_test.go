package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBody(t *testing.T) {
	var gotPath, gotSubject string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req struct {
			Subject string `json:"subject"`
		}
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		gotSubject = req.Subject
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"body":"Hi,\n\nFirst paragraph.\n\nThanks,"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	body, err := c.GenerateBody(context.Background(), "Trip tomorrow")
	require.NoError(t, err)
	assert.Equal(t, "/generate-body", gotPath)
	assert.Equal(t, "Trip tomorrow", gotSubject)
	assert.Equal(t, "Hi,\n\nFirst paragraph.\n\nThanks,", body)
}

func TestGenerateBodyDetailError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail":"generator offline"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	_, err = c.GenerateBody(context.Background(), "x")
	require.Error(t, err)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "generator offline", apiErr.Detail)
}

func TestSendEmailMultipart(t *testing.T) {
	type part struct {
		name, filename, contentType, value string
	}
	var parts []part
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		for name, vals := range r.MultipartForm.Value {
			for _, v := range vals {
				parts = append(parts, part{name: name, value: v})
			}
		}
		for name, files := range r.MultipartForm.File {
			for _, fh := range files {
				f, err := fh.Open()
				require.NoError(t, err)
				data, err := io.ReadAll(f)
				require.NoError(t, err)
				_ = f.Close()
				parts = append(parts, part{
					name:        name,
					filename:    fh.Filename,
					contentType: fh.Header.Get("Content-Type"),
					value:       string(data),
				})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Email sent successfully!"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	err = c.SendEmail(context.Background(), &SendRequest{
		To:       "user@example.com",
		Subject:  "Hi",
		BodyText: "Hello",
		BodyHTML: "<p>Hello</p>",
		CC:       "cc@example.com",
		Files: []SendFile{
			{Name: "image_1.png", ContentType: "image/png", Data: []byte("PNGDATA")},
		},
	})
	require.NoError(t, err)

	byName := map[string]part{}
	for _, p := range parts {
		if p.filename == "" {
			byName[p.name] = p
		}
	}
	assert.Equal(t, "user@example.com", byName["to"].value)
	assert.Equal(t, "Hi", byName["subject"].value)
	assert.Equal(t, "Hello", byName["body_text"].value)
	assert.Equal(t, "<p>Hello</p>", byName["body_html"].value)
	assert.Equal(t, "cc@example.com", byName["cc"].value)
	_, hasBCC := byName["bcc"]
	assert.False(t, hasBCC, "empty bcc must be omitted")

	var filePart part
	for _, p := range parts {
		if p.filename != "" {
			filePart = p
		}
	}
	assert.Equal(t, "files", filePart.name)
	assert.Equal(t, "image_1.png", filePart.filename)
	assert.Equal(t, "image/png", filePart.contentType)
	assert.Equal(t, "PNGDATA", filePart.value)
}

func TestSendEmailNoFilesParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Empty(t, r.MultipartForm.File["files"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	require.NoError(t, c.SendEmail(context.Background(), &SendRequest{
		To: "user@example.com", Subject: "Hi", BodyText: "Hello",
	}))
}

func TestSendEmailUnparsableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	err = c.SendEmail(context.Background(), &SendRequest{
		To: "user@example.com", Subject: "Hi", BodyText: "Hello",
	})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Server error: 502 Bad Gateway", apiErr.Detail)
}
