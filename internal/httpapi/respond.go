package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"peterboroughtenants.org/internal/cms"
	"peterboroughtenants.org/internal/directory"
	"peterboroughtenants.org/internal/member"
	"peterboroughtenants.org/internal/org"
	"peterboroughtenants.org/internal/session"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

var errBodyRequired = errors.New("request body is required")

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errBodyRequired
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints where an empty body is a
// legitimate request.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	err := decodeJSON(w, r, dst)
	if errors.Is(err, errBodyRequired) {
		return nil
	}
	return err
}

// handleError maps domain errors onto HTTP codes. Authentication failures
// always get the same generic message.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var denied *member.DeniedError
	switch {
	case errors.Is(err, session.ErrUnauthenticated),
		errors.Is(err, directory.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case errors.As(err, &denied):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, directory.ErrNotFound),
		errors.Is(err, cms.ErrNotFound),
		errors.Is(err, org.ErrNotFound),
		errors.Is(err, member.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, directory.ErrInvalidInput),
		errors.Is(err, cms.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, cms.ErrDuplicate):
		writeError(w, r, http.StatusConflict, "slug already in use")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
