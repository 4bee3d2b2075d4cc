// Package problem renders RFC 7807 error documents for the ledger API.
package problem

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	contentType = "application/problem+json"
	baseTypeURL = "https://errors.delexpay.com/"
	traceHeader = "X-Trace-ID"
)

// Details is a problem document. Code repeats the type slug so clients can
// switch on a short identifier instead of the full URL.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Type expands a slug such as "ledger/insufficient-funds" into a type URL.
func Type(slug string) string {
	return baseTypeURL + strings.TrimPrefix(slug, "/")
}

// Slug is the inverse of Type. Foreign type URLs yield "".
func Slug(problemType string) string {
	if !strings.HasPrefix(problemType, baseTypeURL) {
		return ""
	}
	return strings.TrimPrefix(problemType, baseTypeURL)
}

// New builds the document for r without writing it.
func New(r *http.Request, status int, problemType, title, detail string) Details {
	if title == "" {
		title = http.StatusText(status)
	}
	if problemType == "" {
		problemType = "about:blank"
	}
	d := Details{
		Type:   problemType,
		Title:  title,
		Status: status,
		Detail: detail,
		Code:   Slug(problemType),
	}
	if r != nil {
		d.Instance = r.URL.Path
		d.RequestID = r.Header.Get(traceHeader)
	}
	return d
}

// Write sends the problem document with the matching status code.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	d := New(r, status, problemType, title, detail)
	if d.RequestID == "" {
		d.RequestID = w.Header().Get(traceHeader)
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(d)
}
