// Package web carries the HTTP plumbing shared by the service APIs:
// the response envelope, request decoding and the common middleware
// stack.
package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

type errorEnvelope struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Success wraps data in the standard envelope.
func Success(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"status": "success", "data": data})
}

// Message is the envelope variant for operations with no data to return.
func Message(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"status": "success", "message": message})
}

// Error writes the error envelope with a machine-readable code.
func Error(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Status: "error", Code: code, Message: message})
}

// DecodeJSON strictly decodes a request body into dst: unknown fields
// and trailing values are rejected.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}
