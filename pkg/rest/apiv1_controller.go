package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/quickmail/quickmail/pkg/compose"
	"github.com/quickmail/quickmail/pkg/compose/attachment"
	"github.com/quickmail/quickmail/pkg/rest/model"
	"github.com/quickmail/quickmail/pkg/server/web"
)

// Memory threshold for parsing multipart bodies; larger parts spill to disk.
const multipartMemory = 32 << 20

// SessionCreateV1 creates a composer session and renders its ID.
func SessionCreateV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	s := ctx.Manager.NewSession()
	log.Debug().Str("module", "rest").Str("id", s.ID).Msg("Created session")
	return web.RenderJSON(w, &model.JSONSessionV1{ID: s.ID})
}

// SessionShowV1 renders a snapshot of the composer state.
func SessionShowV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	s := ctx.Manager.Session(ctx.Vars["id"])
	if s == nil {
		http.NotFound(w, req)
		return nil
	}
	return web.RenderJSON(w, jsonState(s))
}

// SessionDeleteV1 discards a composer session.
func SessionDeleteV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	if !ctx.Manager.RemoveSession(ctx.Vars["id"]) {
		http.NotFound(w, req)
		return nil
	}
	return web.RenderJSON(w, "OK")
}

// SessionFieldsV1 applies a partial update of the scalar composer fields.
func SessionFieldsV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	s := ctx.Manager.Session(ctx.Vars["id"])
	if s == nil {
		http.NotFound(w, req)
		return nil
	}
	var fields model.JSONFieldsV1
	if err := json.NewDecoder(req.Body).Decode(&fields); err != nil {
		return web.RenderError(w, http.StatusBadRequest, "Malformed JSON body")
	}
	s.SetFields(compose.Fields{
		Recipient:   fields.Recipient,
		Subject:     fields.Subject,
		CC:          fields.CC,
		BCC:         fields.BCC,
		TosAccepted: fields.TosAccepted,
	})
	return web.RenderJSON(w, "OK")
}

// SessionBodyV1 applies a body edit; markup is sanitized on the way in.
func SessionBodyV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	s := ctx.Manager.Session(ctx.Vars["id"])
	if s == nil {
		http.NotFound(w, req)
		return nil
	}
	var body model.JSONBodyV1
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return web.RenderError(w, http.StatusBadRequest, "Malformed JSON body")
	}
	err := s.SetBody(compose.BodyEdit{
		HTML:     body.HTML,
		Replace:  body.Replace,
		Focused:  body.Focused,
		SelStart: body.SelStart,
		SelEnd:   body.SelEnd,
	})
	if err != nil {
		return web.RenderError(w, http.StatusBadRequest, "Unparsable body markup")
	}
	return web.RenderJSON(w, "OK")
}

// SessionBodyImageV1 embeds an image into the body.  A multipart request
// embeds the uploaded file; a JSON request references an external URL.
func SessionBodyImageV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	s := ctx.Manager.Session(ctx.Vars["id"])
	if s == nil {
		http.NotFound(w, req)
		return nil
	}
	if strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/") {
		if err := req.ParseMultipartForm(multipartMemory); err != nil {
			return web.RenderError(w, http.StatusBadRequest, "Malformed multipart body")
		}
		file, header, err := req.FormFile("file")
		if err != nil {
			return web.RenderError(w, http.StatusBadRequest, "Missing file part")
		}
		defer func() {
			_ = file.Close()
		}()
		if err := s.InsertImage(file, header.Filename,
			header.Header.Get("Content-Type")); err != nil {
			return web.RenderError(w, http.StatusBadRequest, "Failed to insert image")
		}
		return web.RenderJSON(w, jsonState(s))
	}
	var ref model.JSONImageURLV1
	if err := json.NewDecoder(req.Body).Decode(&ref); err != nil || ref.URL == "" {
		return web.RenderError(w, http.StatusBadRequest, "Missing image URL")
	}
	s.InsertImageURL(ref.URL)
	return web.RenderJSON(w, jsonState(s))
}

// SessionAttachV1 runs attachment intake over the uploaded files.  Files that
// cannot be read are recorded as errored entries rather than failing the
// request.
func SessionAttachV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	s := ctx.Manager.Session(ctx.Vars["id"])
	if s == nil {
		http.NotFound(w, req)
		return nil
	}
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		return web.RenderError(w, http.StatusBadRequest, "Malformed multipart body")
	}
	var candidates []attachment.Candidate
	var rejected []attachment.Rejected
	for _, fh := range req.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			rejected = append(rejected, attachment.Rejected{
				Name: fh.Filename, Reason: "Failed to read file"})
			continue
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			rejected = append(rejected, attachment.Rejected{
				Name: fh.Filename, Reason: "Failed to read file"})
			continue
		}
		candidates = append(candidates, attachment.Candidate{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	s.Attach(candidates, rejected)
	return web.RenderJSON(w, jsonState(s))
}

// SessionAttachmentDeleteV1 removes one attachment entry.
func SessionAttachmentDeleteV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	s := ctx.Manager.Session(ctx.Vars["id"])
	if s == nil {
		http.NotFound(w, req)
		return nil
	}
	if !s.RemoveAttachment(ctx.Vars["fileID"]) {
		http.NotFound(w, req)
		return nil
	}
	return web.RenderJSON(w, "OK")
}

// SessionGenerateV1 requests an AI-written body for the current subject and
// loads it into the editor.
func SessionGenerateV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	s := ctx.Manager.Session(ctx.Vars["id"])
	if s == nil {
		http.NotFound(w, req)
		return nil
	}
	if err := s.Generate(req.Context()); err != nil {
		if errors.Is(err, compose.ErrSubjectRequired) {
			return web.RenderError(w, http.StatusBadRequest, err.Error())
		}
		return web.RenderError(w, http.StatusBadGateway, err.Error())
	}
	return web.RenderJSON(w, jsonState(s))
}

// SessionSubmitV1 runs the submission assembler.  A submission already in
// flight yields 409; a failed pre-condition yields 400.
func SessionSubmitV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	s := ctx.Manager.Session(ctx.Vars["id"])
	if s == nil {
		http.NotFound(w, req)
		return nil
	}
	if err := s.Submit(req.Context()); err != nil {
		switch {
		case errors.Is(err, compose.ErrSubmitInFlight):
			return web.RenderError(w, http.StatusConflict, err.Error())
		case errors.Is(err, compose.ErrInvalid):
			return web.RenderError(w, http.StatusBadRequest, err.Error())
		default:
			return web.RenderError(w, http.StatusBadGateway, err.Error())
		}
	}
	return web.RenderJSON(w, &model.JSONSendResponseV1{Message: "Email sent successfully!"})
}

// SessionNotificationsV1 renders the live notifications in insertion order.
func SessionNotificationsV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	s := ctx.Manager.Session(ctx.Vars["id"])
	if s == nil {
		http.NotFound(w, req)
		return nil
	}
	active := s.Notifications().Active()
	jns := make([]*model.JSONNotificationV1, len(active))
	for i, n := range active {
		jns[i] = &model.JSONNotificationV1{
			ID:      n.ID,
			Kind:    string(n.Kind),
			Message: n.Message,
			Date:    n.Date,
		}
	}
	return web.RenderJSON(w, jns)
}

// SessionNotificationDismissV1 removes a notification before its timer fires.
func SessionNotificationDismissV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	s := ctx.Manager.Session(ctx.Vars["id"])
	if s == nil {
		http.NotFound(w, req)
		return nil
	}
	id, err := strconv.ParseUint(ctx.Vars["notificationID"], 10, 64)
	if err != nil {
		return web.RenderError(w, http.StatusBadRequest,
			fmt.Sprintf("Malformed notification ID %q", ctx.Vars["notificationID"]))
	}
	s.Notifications().Dismiss(id)
	return web.RenderJSON(w, "OK")
}

// jsonState converts a session snapshot for rendering.
func jsonState(s *compose.Session) *model.JSONComposeStateV1 {
	snap := s.View()
	attachments := make([]*model.JSONAttachmentV1, len(snap.Attachments))
	for i, f := range snap.Attachments {
		attachments[i] = &model.JSONAttachmentV1{
			ID:          f.ID,
			Name:        f.Name,
			Size:        f.Size,
			ContentType: f.ContentType,
			Error:       f.Error,
		}
	}
	return &model.JSONComposeStateV1{
		Recipient:   snap.Recipient,
		Subject:     snap.Subject,
		CC:          snap.CC,
		BCC:         snap.BCC,
		BodyHTML:    snap.BodyHTML,
		BodyText:    snap.BodyText,
		TosAccepted: snap.TosAccepted,
		Attachments: attachments,
		Submitting:  snap.Submitting,
	}
}
