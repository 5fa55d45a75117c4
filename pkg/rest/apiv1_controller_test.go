package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickmail/quickmail/pkg/rest/model"
)

const baseURL = "http://localhost/api/v1"

func createSession(t *testing.T) string {
	t.Helper()
	w := testRestJSON("POST", baseURL+"/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var session model.JSONSessionV1
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	require.NotEmpty(t, session.ID)
	return session.ID
}

func sessionState(t *testing.T, id string) *model.JSONComposeStateV1 {
	t.Helper()
	w := testRestGet(baseURL + "/sessions/" + id)
	require.Equal(t, http.StatusOK, w.Code)
	state := &model.JSONComposeStateV1{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), state))
	return state
}

func sessionNotifications(t *testing.T, id string) []*model.JSONNotificationV1 {
	t.Helper()
	w := testRestGet(baseURL + "/sessions/" + id + "/notifications")
	require.Equal(t, http.StatusOK, w.Code)
	var ns []*model.JSONNotificationV1
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ns))
	return ns
}

func TestRestSessionLifecycle(t *testing.T) {
	setupWebServer(t, &stubSender{})

	id := createSession(t)
	state := sessionState(t, id)
	assert.Empty(t, state.Recipient)
	assert.Empty(t, state.BodyHTML)
	assert.False(t, state.TosAccepted)
	assert.Empty(t, state.Attachments)

	w := testRestJSON("DELETE", baseURL+"/sessions/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = testRestGet(baseURL + "/sessions/" + id)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestSessionNotFound(t *testing.T) {
	setupWebServer(t, &stubSender{})

	assert.Equal(t, http.StatusNotFound,
		testRestGet(baseURL+"/sessions/nope").Code)
	assert.Equal(t, http.StatusNotFound,
		testRestJSON("PUT", baseURL+"/sessions/nope/fields", `{}`).Code)
	assert.Equal(t, http.StatusNotFound,
		testRestJSON("POST", baseURL+"/sessions/nope/submit", "").Code)
}

func TestRestSessionFields(t *testing.T) {
	setupWebServer(t, &stubSender{})
	id := createSession(t)

	w := testRestJSON("PUT", baseURL+"/sessions/"+id+"/fields",
		`{"recipient":"user@example.com","subject":"Hi","tosAccepted":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	state := sessionState(t, id)
	assert.Equal(t, "user@example.com", state.Recipient)
	assert.Equal(t, "Hi", state.Subject)
	assert.True(t, state.TosAccepted)

	// Partial update leaves other fields alone.
	w = testRestJSON("PUT", baseURL+"/sessions/"+id+"/fields", `{"cc":"cc@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	state = sessionState(t, id)
	assert.Equal(t, "user@example.com", state.Recipient)
	assert.Equal(t, "cc@example.com", state.CC)
}

func TestRestSessionBodySanitized(t *testing.T) {
	setupWebServer(t, &stubSender{})
	id := createSession(t)

	w := testRestJSON("PUT", baseURL+"/sessions/"+id+"/body",
		`{"html":"<p>Hi</p><script>alert(1)</script>"}`)
	require.Equal(t, http.StatusOK, w.Code)

	state := sessionState(t, id)
	assert.Contains(t, state.BodyHTML, "<p>Hi</p>")
	assert.NotContains(t, state.BodyHTML, "script")
	assert.Equal(t, "Hi", state.BodyText)
}

func TestRestSessionAttachments(t *testing.T) {
	setupWebServer(t, &stubSender{})
	id := createSession(t)

	w := testRestMultipart(baseURL+"/sessions/"+id+"/attachments",
		testFile{field: "files", name: "report.pdf",
			contentType: "application/pdf", data: []byte("PDFDATA")},
		testFile{field: "files", name: "evil.exe",
			contentType: "application/x-msdownload", data: []byte("MZ")},
	)
	require.Equal(t, http.StatusOK, w.Code)
	var state model.JSONComposeStateV1
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	require.Len(t, state.Attachments, 2)
	assert.Equal(t, "report.pdf", state.Attachments[0].Name)
	assert.Empty(t, state.Attachments[0].Error)
	assert.Equal(t, "File type not allowed", state.Attachments[1].Error)

	w = testRestJSON("DELETE",
		baseURL+"/sessions/"+id+"/attachments/"+state.Attachments[0].ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, sessionState(t, id).Attachments, 1)

	w = testRestJSON("DELETE", baseURL+"/sessions/"+id+"/attachments/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestSessionImageInsert(t *testing.T) {
	setupWebServer(t, &stubSender{})
	id := createSession(t)

	w := testRestMultipart(baseURL+"/sessions/"+id+"/body/images",
		testFile{field: "file", name: "logo.png",
			contentType: "image/png", data: []byte("PNGDATA")})
	require.Equal(t, http.StatusOK, w.Code)
	var state model.JSONComposeStateV1
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Contains(t, state.BodyHTML, "data:image/png;base64,")
	assert.Contains(t, state.BodyHTML, `alt="logo.png"`)

	w = testRestMultipart(baseURL+"/sessions/"+id+"/body/images",
		testFile{field: "file", name: "doc.pdf",
			contentType: "application/pdf", data: []byte("%PDF-")})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRestSessionImageURL(t *testing.T) {
	setupWebServer(t, &stubSender{})
	id := createSession(t)

	w := testRestJSON("POST", baseURL+"/sessions/"+id+"/body/images",
		`{"url":"https://example.com/pic.png"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, sessionState(t, id).BodyHTML,
		`<img src="https://example.com/pic.png" />`)
}

func TestRestSessionGenerate(t *testing.T) {
	setupWebServer(t, &stubSender{genBody: "Hi,\n\nBody text.\n\nThanks,"})
	id := createSession(t)

	// No subject yet.
	w := testRestJSON("POST", baseURL+"/sessions/"+id+"/generate", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	testRestJSON("PUT", baseURL+"/sessions/"+id+"/fields", `{"subject":"Trip"}`)
	w = testRestJSON("POST", baseURL+"/sessions/"+id+"/generate", "")
	require.Equal(t, http.StatusOK, w.Code)
	var state model.JSONComposeStateV1
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, "<p>Hi,</p><p>Body text.</p><p>Thanks,</p>", state.BodyHTML)
}

func TestRestSessionSubmitValidation(t *testing.T) {
	sender := &stubSender{}
	setupWebServer(t, sender)
	id := createSession(t)

	w := testRestJSON("POST", baseURL+"/sessions/"+id+"/submit", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, sender.sentCount())

	ns := sessionNotifications(t, id)
	require.Len(t, ns, 1)
	assert.Equal(t, "error", ns[0].Kind)
	assert.Equal(t, "Please agree to the Terms of Service before sending.", ns[0].Message)
}

func TestRestSessionSubmitSuccess(t *testing.T) {
	sender := &stubSender{}
	setupWebServer(t, sender)
	id := createSession(t)

	testRestJSON("PUT", baseURL+"/sessions/"+id+"/fields",
		`{"recipient":"user@example.com","subject":"Hi","tosAccepted":true}`)
	testRestJSON("PUT", baseURL+"/sessions/"+id+"/body", `{"html":"<p>Hello</p>"}`)

	w := testRestJSON("POST", baseURL+"/sessions/"+id+"/submit", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp model.JSONSendResponseV1
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Email sent successfully!", resp.Message)

	require.Equal(t, 1, sender.sentCount())
	state := sessionState(t, id)
	assert.Empty(t, state.Recipient)
	assert.False(t, state.TosAccepted)
}

func TestRestSessionSubmitConflict(t *testing.T) {
	sender := &stubSender{blockSend: make(chan struct{})}
	setupWebServer(t, sender)
	id := createSession(t)

	testRestJSON("PUT", baseURL+"/sessions/"+id+"/fields",
		`{"recipient":"user@example.com","subject":"Hi","tosAccepted":true}`)
	testRestJSON("PUT", baseURL+"/sessions/"+id+"/body", `{"html":"<p>Hello</p>"}`)

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		firstDone <- testRestJSON("POST", baseURL+"/sessions/"+id+"/submit", "")
	}()
	require.Eventually(t, func() bool {
		return sessionState(t, id).Submitting
	}, time.Second, 5*time.Millisecond)

	w := testRestJSON("POST", baseURL+"/sessions/"+id+"/submit", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	close(sender.blockSend)
	assert.Equal(t, http.StatusOK, (<-firstDone).Code)
}

func TestRestSessionNotificationDismiss(t *testing.T) {
	setupWebServer(t, &stubSender{})
	id := createSession(t)

	// Provoke one notification.
	testRestJSON("POST", baseURL+"/sessions/"+id+"/submit", "")
	ns := sessionNotifications(t, id)
	require.Len(t, ns, 1)

	w := testRestJSON("DELETE",
		baseURL+"/sessions/"+id+"/notifications/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sessionNotifications(t, id))

	w = testRestJSON("DELETE", baseURL+"/sessions/"+id+"/notifications/junk", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
