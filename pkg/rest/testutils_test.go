package rest

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quickmail/quickmail/pkg/compose"
	"github.com/quickmail/quickmail/pkg/config"
	"github.com/quickmail/quickmail/pkg/rest/client"
	"github.com/quickmail/quickmail/pkg/server/web"
)

// Routes are registered on the shared router once per process.
var routesOnce sync.Once

// stubSender is a scripted compose.Sender for handler tests.
type stubSender struct {
	mu      sync.Mutex
	sent    []*client.SendRequest
	sendErr error
	genBody string
	genErr  error

	// blockSend, when non-nil, is received from before SendEmail returns.
	blockSend chan struct{}
}

func (f *stubSender) GenerateBody(ctx context.Context, subject string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.genBody, f.genErr
}

func (f *stubSender) SendEmail(ctx context.Context, sr *client.SendRequest) error {
	f.mu.Lock()
	block := f.blockSend
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sr)
	return f.sendErr
}

func (f *stubSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// setupWebServer wires the shared router to a fresh session manager.
func setupWebServer(t *testing.T, sender compose.Sender) *compose.SessionManager {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg := &config.Root{
		Web: config.Web{
			Addr:       "127.0.0.1:0",
			MaxIdle:    time.Minute,
			PingPeriod: 30 * time.Second,
		},
		Compose: config.Compose{
			MaxFiles:        10,
			MaxFileBytes:    25 * 1024 * 1024,
			NotifyTTL:       time.Minute,
			PlaceholderBody: "Email body",
		},
	}
	mgr := compose.NewManager(ctx, *cfg, sender)
	routesOnce.Do(func() {
		SetupRoutes(web.Router.PathPrefix("/api/").Subrouter())
	})
	web.Initialize(cfg, make(chan bool, 1), mgr)
	return mgr
}

func testRestGet(url string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", url, nil)
	req.Header.Add("Accept", "application/json")
	w := httptest.NewRecorder()
	web.Router.ServeHTTP(w, req)
	return w
}

func testRestJSON(method, url, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, url, r)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/json")
	w := httptest.NewRecorder()
	web.Router.ServeHTTP(w, req)
	return w
}

type testFile struct {
	field, name, contentType string
	data                     []byte
}

func testRestMultipart(url string, files ...testFile) *httptest.ResponseRecorder {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			`form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		header.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			panic(err)
		}
		if _, err := part.Write(f.data); err != nil {
			panic(err)
		}
	}
	if err := mw.Close(); err != nil {
		panic(err)
	}
	req, _ := http.NewRequest("POST", url, buf)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	web.Router.ServeHTTP(w, req)
	return w
}
