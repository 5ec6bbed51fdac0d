package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
)

// Idem provides an Idempotency-Key middleware backed by Redis. Keys are scoped
// to the authenticated user so two buyers cannot collide on the same header.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

func idemKey(userID, key string) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

// Middleware rejects a repeated Idempotency-Key within the TTL with 409.
// A request that ends with a 4xx or 5xx status releases its key so the
// client can retry with the same key.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ttl := i.TTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		userID, _ := UserID(r.Context())
		key := idemKey(userID, header)
		ok, err := i.R.SetNX(r.Context(), key, "locked", ttl).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			if p := recover(); p != nil {
				i.release(key)
				panic(p)
			}
			if ww.Status() >= http.StatusBadRequest {
				i.release(key)
			}
		}()
		next.ServeHTTP(ww, r)
	})
}

func (i Idem) release(key string) {
	_ = i.R.Del(context.Background(), key).Err()
}
