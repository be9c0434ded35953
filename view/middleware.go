package view

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"
)

// ErrInvalidBodyLimit is returned by LimitBody when the limit is not
// greater than zero.
var ErrInvalidBodyLimit = errors.New("body limit: max size must be greater than zero")

// LimitBody returns a middleware capping request bodies at maxBytes.
//
// A request declaring a larger Content-Length is answered with 413 before
// any handler runs. Other bodies are wrapped with http.MaxBytesReader, so
// body extractors reading past the limit report a field error at the body
// root.
func LimitBody(maxBytes int64) (mux.MiddlewareFunc, error) {
	if maxBytes <= 0 {
		return nil, ErrInvalidBodyLimit
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}, nil
}

// Recover returns a middleware answering 500 when a downstream handler
// panics. The panic value and stack are logged through the registry logger.
// http.ErrAbortHandler is re-raised so the server can abort the response.
func (reg *Registry) Recover() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				reg.logger.Error("handler panicked",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("stack", string(debug.Stack())))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
