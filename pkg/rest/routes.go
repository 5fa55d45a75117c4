package rest

import (
	"github.com/gorilla/mux"

	"github.com/quickmail/quickmail/pkg/server/web"
)

// SetupRoutes populates the routes for the REST interface.
func SetupRoutes(r *mux.Router) {
	// API v1
	r.Path("/v1/sessions").Handler(
		web.Handler(SessionCreateV1)).Name("SessionCreateV1").Methods("POST")
	r.Path("/v1/sessions/{id}").Handler(
		web.Handler(SessionShowV1)).Name("SessionShowV1").Methods("GET")
	r.Path("/v1/sessions/{id}").Handler(
		web.Handler(SessionDeleteV1)).Name("SessionDeleteV1").Methods("DELETE")
	r.Path("/v1/sessions/{id}/fields").Handler(
		web.Handler(SessionFieldsV1)).Name("SessionFieldsV1").Methods("PUT")
	r.Path("/v1/sessions/{id}/body").Handler(
		web.Handler(SessionBodyV1)).Name("SessionBodyV1").Methods("PUT")
	r.Path("/v1/sessions/{id}/body/images").Handler(
		web.Handler(SessionBodyImageV1)).Name("SessionBodyImageV1").Methods("POST")
	r.Path("/v1/sessions/{id}/attachments").Handler(
		web.Handler(SessionAttachV1)).Name("SessionAttachV1").Methods("POST")
	r.Path("/v1/sessions/{id}/attachments/{fileID}").Handler(
		web.Handler(SessionAttachmentDeleteV1)).Name("SessionAttachmentDeleteV1").Methods("DELETE")
	r.Path("/v1/sessions/{id}/generate").Handler(
		web.Handler(SessionGenerateV1)).Name("SessionGenerateV1").Methods("POST")
	r.Path("/v1/sessions/{id}/submit").Handler(
		web.Handler(SessionSubmitV1)).Name("SessionSubmitV1").Methods("POST")
	r.Path("/v1/sessions/{id}/notifications").Handler(
		web.Handler(SessionNotificationsV1)).Name("SessionNotificationsV1").Methods("GET")
	r.Path("/v1/sessions/{id}/notifications/{notificationID}").Handler(
		web.Handler(SessionNotificationDismissV1)).Name("SessionNotificationDismissV1").Methods("DELETE")
	r.Path("/v1/sessions/{id}/socket").Handler(
		web.Handler(SessionSocketV1)).Name("SessionSocketV1").Methods("GET")
}
