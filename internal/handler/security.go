package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/lamngoc/minimart/internal/domain/auth"
)

type identityKey struct{}

// identityFromContext returns the authenticated API key, or nil outside the
// authenticated route group.
func identityFromContext(ctx context.Context) *auth.APIKeyInfo {
	info, _ := ctx.Value(identityKey{}).(*auth.APIKeyInfo)
	return info
}

// authenticate validates the api_key header by computing its HMAC-SHA256
// under the configured pepper, looking the hash up, and comparing in
// constant time to avoid timing side-channels.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("api_key")
		if key == "" {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing api key")
			return
		}

		mac := hmac.New(sha256.New, h.pepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		info, err := h.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid api key")
			return
		}

		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid api key")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireScope gates a route group on a key scope.
func (h *Handler) requireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := identityFromContext(r.Context())
			if info == nil || !info.HasScope(scope) {
				writeError(w, http.StatusForbidden, codeUnauthorized, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
