// Package auth guards the HTTP boundary with a bearer API key and seals
// check-in tasks into tamper-proof tokens.
package auth

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func HashAPIKey(key string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(b), err
}

func CheckAPIKey(hash, key string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	return err == nil
}

// RequireAPIKey rejects requests whose bearer token does not match hash.
// An empty hash disables the check.
func RequireAPIKey(hash string, next http.Handler) http.Handler {
	if hash == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := bearer(r)
		if !ok || !CheckAPIKey(hash, key) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="checkin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
