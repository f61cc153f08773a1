package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AdminAuth guards operator endpoints with HTTP basic auth. The password
// is held only as a bcrypt hash.
type AdminAuth struct {
	user      string
	hash      []byte
	enabled   bool
	generated string
}

// generatedPasswordLen matches the length of the password printed on a
// fresh install.
const generatedPasswordLen = 12

// NewAdminAuth prepares the admin check. passHash, when set, is a stored
// bcrypt hash and wins over pass. With neither set a random password is
// generated and logged once. With enabled false every request is let
// through.
func NewAdminAuth(user, pass, passHash string, enabled bool) (*AdminAuth, error) {
	a := &AdminAuth{user: user, enabled: enabled}
	if !enabled {
		return a, nil
	}
	if user == "" {
		return nil, fmt.Errorf("admin user is required when auth is enabled")
	}

	if passHash != "" {
		if _, err := bcrypt.Cost([]byte(passHash)); err != nil {
			return nil, fmt.Errorf("admin password hash is not a bcrypt hash: %w", err)
		}
		a.hash = []byte(passHash)
		return a, nil
	}

	if pass == "" {
		generated, err := randomPassword()
		if err != nil {
			return nil, err
		}
		pass = generated
		a.generated = generated
		log.Printf("🔑 Generated admin password: %s", pass)
		log.Printf("   Set ADMIN_PASS or ADMIN_PASS_HASH to use a fixed password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	a.hash = hash
	return a, nil
}

// GeneratedPassword returns the password created at startup, or "" when
// one was configured.
func (a *AdminAuth) GeneratedPassword() string {
	return a.generated
}

func randomPassword() (string, error) {
	b := make([]byte, generatedPasswordLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate admin password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b)[:generatedPasswordLen], nil
}

// Check reports whether user/pass match the configured admin.
func (a *AdminAuth) Check(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) == 1
	passOK := bcrypt.CompareHashAndPassword(a.hash, []byte(pass)) == nil
	return userOK && passOK
}

// Require wraps next with the basic-auth check. A nil or disabled guard
// passes through.
func (a *AdminAuth) Require(next http.Handler) http.Handler {
	if a == nil || !a.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !a.Check(user, pass) {
			if ok {
				log.Printf("🔒 Admin auth failed for %q from %s", user, ClientIP(r))
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="fleetd admin"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
