package errors

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
)

// BodyLimit caps request bodies at maxBytes. A declared Content-Length past
// the cap is refused up front; streamed bodies fail on read with
// *http.MaxBytesError, which IsPayloadTooLarge recognises.
func BodyLimit(maxBytes int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				render.Render(w, r, problemFor(r, http.StatusRequestEntityTooLarge, TypePayloadTooLarge,
					"Payload Too Large", ErrPayloadTooLarge.Message).
					WithExtension("max_bytes", maxBytes))
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsPayloadTooLarge reports whether err came from an exhausted BodyLimit reader.
func IsPayloadTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
