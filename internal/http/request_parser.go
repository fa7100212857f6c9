package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"farmbook/internal/core"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads exactly one JSON value from the body into dst.
// Amount and date values that fail to parse are validation errors; any
// other decoding failure is a malformed body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidDate):
			return core.Invalid("body", err)
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return core.Invalid(typeErr.Field, fmt.Errorf("expected %s", typeErr.Type))
		case errors.Is(err, io.EOF):
			return &badRequestError{err: errors.New("empty body")}
		default:
			return &badRequestError{err: err}
		}
	}
	if dec.More() {
		return &badRequestError{err: errors.New("trailing data after JSON value")}
	}
	return nil
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid("id", fmt.Errorf("%q is not a record id", raw))
	}
	return id, nil
}

// queryBool reads a boolean query flag; anything unparseable is false.
func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return err == nil && v
}

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
