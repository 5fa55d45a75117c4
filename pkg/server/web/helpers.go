package web

import (
	"encoding/json"
	"net/http"
)

// RenderJSON sets the appropriate HTTP headers, then encodes data as the
// response body.
func RenderJSON(w http.ResponseWriter, data interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Expires", "-1")
	enc := json.NewEncoder(w)
	return enc.Encode(data)
}

// RenderError emits a structured error with the given status code.
func RenderError(w http.ResponseWriter, code int, detail string) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	return enc.Encode(struct {
		Detail string `json:"detail"`
	}{Detail: detail})
}
