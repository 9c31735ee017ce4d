package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"kplays-api/pkg/apierror"
	"kplays-api/pkg/response"
)

// RecoveryMessage is shown to clients when a handler panics.
const RecoveryMessage = "Something went wrong. Please reload the page or go back home."

// Recovery is a middleware that recovers from panics. It only replaces the
// response; nothing the handler changed is rolled back.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			Logger(r.Context()).Error("panic recovered",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)

			response.Error(w, apierror.InternalError(RecoveryMessage))
		}()

		next.ServeHTTP(w, r)
	})
}
