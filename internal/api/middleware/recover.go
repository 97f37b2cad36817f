// internal/api/middleware/recover.go
package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/newthinker/quotesvc/internal/api/response"
)

var errPanic = errors.New("internal server error")

// writeTracker records whether the handler has started its response.
type writeTracker struct {
	http.ResponseWriter
	written bool
}

func (w *writeTracker) WriteHeader(code int) {
	w.written = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *writeTracker) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Recover returns middleware that turns a handler panic into the uniform
// 500 response and logs it. A response already under way is left as is.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func Recover(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tw := &writeTracker{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("handler panic",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Bool("response_started", tw.written),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				if !tw.written {
					response.Error(w, errPanic)
				}
			}()
			next.ServeHTTP(tw, r)
		})
	}
}
