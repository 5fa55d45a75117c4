// Package backend implements the embedded send/generate HTTP service the
// composer submits to.  It re-validates attachments on intake and hands
// assembled messages to a delivery provider.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/quickmail/quickmail/pkg/backend/gen"
	"github.com/quickmail/quickmail/pkg/backend/provider"
	"github.com/quickmail/quickmail/pkg/config"
	"github.com/quickmail/quickmail/pkg/rest/model"
)

// maxAttachmentSize is the per-file limit re-checked on intake.
const maxAttachmentSize = 25 * 1024 * 1024

// allowedMIMETypes are the attachment content types accepted on intake.
var allowedMIMETypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"image/webp":         true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-powerpoint":                                     true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"text/plain":                   true,
	"text/csv":                     true,
	"application/zip":              true,
	"application/x-rar-compressed": true,
	"application/x-7z-compressed":  true,
}

// Server is the embedded send/generate service.
type Server struct {
	cfg       config.Backend
	provider  provider.Provider
	generator gen.Generator
	router    *mux.Router
}

// NewServer wires a backend server from its delivery provider and body
// generator.
func NewServer(cfg config.Backend, p provider.Provider, g gen.Generator) *Server {
	s := &Server{
		cfg:       cfg,
		provider:  p,
		generator: g,
		router:    mux.NewRouter(),
	}
	s.router.Path("/generate-body").HandlerFunc(s.generateBody).Methods("POST")
	s.router.Path("/send-email").HandlerFunc(s.sendEmail).Methods("POST")
	s.router.Path("/health").HandlerFunc(s.health).Methods("GET")
	return s
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is canceled.
func (s *Server) Start(ctx context.Context) {
	server := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	log.Info().Str("module", "backend").Str("phase", "startup").Str("addr", s.cfg.Addr).
		Str("provider", s.provider.Name()).Str("generator", s.generator.Name()).
		Msg("Backend listening on tcp4")
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		log.Error().Str("module", "backend").Str("phase", "startup").Err(err).
			Msg("Backend failed to start TCP4 listener")
		return
	}
	go func() {
		<-ctx.Done()
		log.Debug().Str("module", "backend").Str("phase", "shutdown").
			Msg("Backend shutting down on request")
		_ = listener.Close()
	}()
	if err := server.Serve(listener); err != nil {
		select {
		case <-ctx.Done():
		default:
			log.Error().Str("module", "backend").Err(err).Msg("Backend server failed")
		}
	}
}

func (s *Server) health(w http.ResponseWriter, req *http.Request) {
	renderJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// generateBody asks the generator for a body matching the posted subject.
func (s *Server) generateBody(w http.ResponseWriter, req *http.Request) {
	var in model.JSONGenerateRequestV1
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		renderDetail(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if len(strings.TrimSpace(in.Subject)) < 2 {
		renderDetail(w, http.StatusBadRequest,
			"Subject line is required and must be at least 2 characters long")
		return
	}
	body, err := s.generator.Generate(req.Context(), in.Subject)
	if err != nil {
		log.Error().Str("module", "backend").Err(err).Msg("Body generation failed")
		renderDetail(w, http.StatusServiceUnavailable,
			fmt.Sprintf("Failed to generate email body: %v", err))
		return
	}
	renderJSON(w, http.StatusOK, &model.JSONGenerateResponseV1{Body: body})
}

// sendEmail validates the multipart submission and delivers it through the
// provider.
func (s *Server) sendEmail(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(maxAttachmentSize * 2); err != nil {
		renderDetail(w, http.StatusBadRequest, "Malformed multipart body")
		return
	}

	to := req.FormValue("to")
	subject := req.FormValue("subject")
	bodyText := req.FormValue("body_text")
	required := []struct{ name, value string }{
		{"to", to},
		{"subject", subject},
		{"body_text", bodyText},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			renderDetail(w, http.StatusBadRequest,
				fmt.Sprintf("Missing required field '%s'", f.name))
			return
		}
	}

	msg := &provider.Message{
		From:     mail.Address{Name: s.cfg.FromName, Address: s.cfg.From},
		To:       []string{to},
		CC:       splitAddressList(req.FormValue("cc")),
		BCC:      splitAddressList(req.FormValue("bcc")),
		Subject:  subject,
		TextBody: bodyText,
		HTMLBody: req.FormValue("body_html"),
	}

	if req.MultipartForm != nil {
		for _, fh := range req.MultipartForm.File["files"] {
			// Skip empty or invalid parts rather than failing the request.
			if fh.Filename == "" || fh.Size == 0 {
				log.Warn().Str("module", "backend").Msg("Skipping empty file part")
				continue
			}
			if fh.Size > maxAttachmentSize {
				renderDetail(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("File %s is too large. Max size: %d MB",
						fh.Filename, maxAttachmentSize/1024/1024))
				return
			}
			contentType := fh.Header.Get("Content-Type")
			if !allowedMIMETypes[contentType] {
				renderDetail(w, http.StatusBadRequest,
					fmt.Sprintf("File type '%s' is not allowed", contentType))
				return
			}
			f, err := fh.Open()
			if err != nil {
				renderDetail(w, http.StatusBadRequest,
					fmt.Sprintf("Error processing file %s", fh.Filename))
				return
			}
			content, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				renderDetail(w, http.StatusBadRequest,
					fmt.Sprintf("Error processing file %s", fh.Filename))
				return
			}
			msg.Attachments = append(msg.Attachments, provider.Attachment{
				Filename:    fh.Filename,
				ContentType: contentType,
				Content:     content,
			})
		}
	}

	log.Info().Str("module", "backend").Str("to", to).Str("subject", subject).
		Int("attachments", len(msg.Attachments)).Str("provider", s.provider.Name()).
		Msg("Delivering message")
	if err := s.provider.Send(req.Context(), msg); err != nil {
		log.Error().Str("module", "backend").Err(err).Msg("Delivery failed")
		renderDetail(w, http.StatusBadGateway,
			fmt.Sprintf("Failed to send email: %v", err))
		return
	}
	renderJSON(w, http.StatusOK, &model.JSONSendResponseV1{Message: "Email sent successfully!"})
}

// splitAddressList splits a comma-separated address list, dropping empty
// entries.
func splitAddressList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, addr := range strings.Split(value, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func renderJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func renderDetail(w http.ResponseWriter, code int, detail string) {
	renderJSON(w, code, &model.JSONErrorV1{Detail: detail})
}
