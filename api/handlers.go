package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/oriolbns/despesa/docstore"
)

// documentFromRequest resolves the {document} path segment to a stored
// document name.
func documentFromRequest(r *http.Request) (string, bool) {
	name, ok := documents[chi.URLParam(r, "document")]
	return name, ok
}

// GetDocument handles GET /documents/{document}. The response body is
// the raw document content; the version tag travels in the ETag header.
func (a *API) GetDocument(w http.ResponseWriter, r *http.Request) {
	name, ok := documentFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown document")
		return
	}

	doc, err := a.repo.Get(name)
	if errors.Is(err, docstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, name+" does not exist")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read document")
		return
	}

	a.audit.log(AuditDocumentRead, r, slog.String("document", name))
	w.Header().Set("ETag", strconv.Quote(doc.Tag))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write([]byte(doc.Content))
}

type putDocumentRequest struct {
	Content string `json:"content"`
}

// PutDocument handles PUT /documents/{document}. The If-Match header
// carries the version tag the client last observed; its absence means
// "create new". A stale tag is answered with 409 so the client can
// refresh and retry.
func (a *API) PutDocument(w http.ResponseWriter, r *http.Request) {
	name, ok := documentFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown document")
		return
	}

	if blocked, retryAfter := a.rateLimiter.check(clientKey(r)); blocked {
		a.audit.log(AuditWriteRateLimited, r, slog.String("document", name))
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
		writeError(w, http.StatusTooManyRequests, "too many writes, slow down")
		return
	}

	var req putDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	expectedTag := ""
	if match := r.Header.Get("If-Match"); match != "" {
		if unquoted, err := strconv.Unquote(match); err == nil {
			expectedTag = unquoted
		} else {
			expectedTag = match
		}
	}

	tag, err := a.repo.Put(name, req.Content, expectedTag)
	if errors.Is(err, docstore.ErrTagMismatch) {
		a.audit.log(AuditWriteConflict, r, slog.String("document", name))
		writeError(w, http.StatusConflict, name+" was modified concurrently")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to write document")
		return
	}

	a.rateLimiter.record(clientKey(r))
	a.audit.log(AuditDocumentWritten, r, slog.String("document", name))
	w.Header().Set("ETag", strconv.Quote(tag))
	writeJSON(w, http.StatusOK, struct {
		Tag string `json:"tag"`
	}{Tag: tag})
}
