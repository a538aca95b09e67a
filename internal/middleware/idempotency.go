package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/betting-ledger/internal/auth"
	"github.com/josh-kwaku/betting-ledger/internal/cache"
	"github.com/josh-kwaku/betting-ledger/internal/handler"
	"github.com/josh-kwaku/betting-ledger/internal/logging"
)

type idempotencyStore interface {
	Reserve(ctx context.Context, key string, userID uuid.UUID, reqHash string) (*cache.IdempotencyEntry, error)
	Complete(ctx context.Context, entry *cache.IdempotencyEntry) error
	Release(ctx context.Context, key string, userID uuid.UUID) error
}

// Idempotency replays the stored response for a repeated Idempotency-Key. The
// key is reserved before the handler runs, so a concurrent duplicate gets 409
// instead of running twice. Only responses below 500 are stored so a failed
// attempt can be retried with the same key.
func Idempotency(store idempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				handler.RespondAppError(w, handler.ErrMissingIdempotencyKey, nil)
				return
			}

			userID, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			reqHash := computeHash(r.Method, r.URL.Path, body)
			log := logging.FromContext(r.Context())

			cached, err := store.Reserve(r.Context(), key, userID, reqHash)
			if err != nil {
				log.Error("idempotency reservation failed", "error", err, "idempotency_key", key)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
				return
			}

			if cached != nil {
				switch {
				case cached.RequestHash != reqHash:
					handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
				case cached.InFlight:
					handler.RespondAppError(w, handler.ErrIdempotencyInProgress, nil)
				default:
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("X-Idempotent-Replayed", "true")
					w.WriteHeader(cached.StatusCode)
					if _, err := w.Write(cached.ResponseBody); err != nil {
						log.Error("failed to write idempotent replay", "error", err, "idempotency_key", key)
					}
				}
				return
			}

			// A panic or a server error leaves the key free for a retry.
			answered := false
			defer func() {
				if answered {
					return
				}
				if err := store.Release(context.WithoutCancel(r.Context()), key, userID); err != nil {
					log.Error("idempotency release failed", "error", err, "idempotency_key", key)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError {
				return
			}
			answered = true
			entry := &cache.IdempotencyEntry{
				Key:          key,
				UserID:       userID,
				RequestHash:  reqHash,
				StatusCode:   rec.statusCode,
				ResponseBody: rec.body.Bytes(),
				CreatedAt:    time.Now().UTC(),
			}
			if err := store.Complete(context.WithoutCancel(r.Context()), entry); err != nil {
				log.Error("idempotency cache store failed", "error", err, "idempotency_key", key)
			}
		})
	}
}

func computeHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return fmt.Sprintf("%x", h.Sum(nil))
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
