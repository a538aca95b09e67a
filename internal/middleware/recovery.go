package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/josh-kwaku/betting-ledger/internal/handler"
	"github.com/josh-kwaku/betting-ledger/internal/logging"
)

// Recovery turns a handler panic into a 500. A panic inside a settlement or
// ledger call happens before commit, so no partial write survives it.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logging.FromContext(r.Context()).Error("panic recovered",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Chain applies mws so that the first one listed runs first.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
