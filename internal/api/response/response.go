// internal/api/response/response.go
package response

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/newthinker/quotesvc/internal/core"
)

// ErrorCodeHeader exposes the retrieval error code to operators. The body
// and status stay uniform across error kinds.
const ErrorCodeHeader = "X-Error-Code"

const internalErrorMessage = "internal server error"

// JSON writes data as the whole JSON body. If data cannot be encoded
// nothing of it is written and the request fails with 500.
func JSON(w http.ResponseWriter, status int, data any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		Error(w, err)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// Error writes err's message as a plain-text 500 response.
func Error(w http.ResponseWriter, err error) {
	msg := internalErrorMessage
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	if code := core.Code(err); code != "" {
		w.Header().Set(ErrorCodeHeader, code)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(msg))
}
