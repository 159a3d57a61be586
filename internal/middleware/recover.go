package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/GoliathLabs/applica/internal/apierr"
	"github.com/GoliathLabs/applica/internal/logging"
)

// Recover turns handler panics into a generic 500 response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logging.FromContext(r.Context()).
				WithField("stack", string(debug.Stack())).
				Errorf("panic in handler: %v", rec)
			apierr.Write(w, r, fmt.Errorf("recovered panic: %v", rec))
		}()
		next.ServeHTTP(w, r)
	})
}
