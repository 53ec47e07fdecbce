package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
)

type ownerKey struct{}

// SyncOwnerFromContext returns the owner bound to the sync key that
// authenticated the request.
func SyncOwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	return owner, ok && owner != ""
}

// SyncKeyAuth authenticates "Authorization: Bearer <key>" against SHA-256
// digests of the configured keys and binds the request to the key's owner.
// owners maps lowercase hex digest to owner ID. With no keys configured every
// request is rejected.
func SyncKeyAuth(owners map[string]string, onDenied func(http.ResponseWriter, *http.Request, int)) func(http.Handler) http.Handler {
	digests := make([][]byte, 0, len(owners))
	ownerOf := make([]string, 0, len(owners))
	for digest, owner := range owners {
		b, err := hex.DecodeString(digest)
		if err != nil {
			continue
		}
		digests = append(digests, b)
		ownerOf = append(ownerOf, owner)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := bearerToken(r)
			if !ok {
				slog.Warn("auth: missing sync key", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				onDenied(w, r, http.StatusUnauthorized)
				return
			}

			owner, ok := matchKey(key, digests, ownerOf)
			if !ok {
				slog.Warn("auth: invalid sync key", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				onDenied(w, r, http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), ownerKey{}, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// matchKey compares against every digest so timing does not reveal which
// entry matched.
func matchKey(key string, digests [][]byte, owners []string) (string, bool) {
	sum := sha256.Sum256([]byte(key))
	match := -1
	for i, d := range digests {
		if subtle.ConstantTimeCompare(sum[:], d) == 1 {
			match = i
		}
	}
	if match < 0 {
		return "", false
	}
	return owners[match], true
}
