package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 * 1024

// Request wraps http.Request with helpers for inbound handlers.
type Request struct {
	// Request is the underlying http.Request.
	*http.Request
}

// GetParam reads a path parameter from the request context (as stored by httprouter).
func (r *Request) GetParam(key string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(key)
}

// GetHeader returns the trimmed value of a request header.
func (r *Request) GetHeader(key string) string {
	return strings.TrimSpace(r.Header.Get(key))
}

func (r *Request) GetQuery(key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// DecodeBody decodes a single JSON object from the body into dst.
// Unknown fields and trailing data are rejected.
func (r *Request) DecodeBody(dst any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return goerror.NewInvalidFormat()
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return goerror.NewInvalidFormat()
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return goerror.NewInvalidFormat()
	}

	return nil
}
