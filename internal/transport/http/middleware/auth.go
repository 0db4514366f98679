package httpmw

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type ctxKey int

const (
	ctxKeyIdentity ctxKey = iota
	ctxKeyLogger
)

type Verifier interface {
	Verify(token string) (domain.Identity, error)
}

// Auth requires a verified Bearer token and puts the identity in the context.
func Auth(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= 7 {
				unauthorized(w, "missing bearer token")
				return
			}

			id, err := v.Verify(strings.TrimSpace(auth[7:]))
			if err != nil {
				L(r.Context()).Info("rejected token", "err", err)
				unauthorized(w, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyIdentity, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IdentityFromCtx(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(domain.Identity)
	return id, ok && id.ID != ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
