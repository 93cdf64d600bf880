package server

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"bibedit-cli/internal/format"
	"bibedit-cli/internal/syncproto"
)

const anonymousOwner = "local"

func secretKeyPath(dir string) string {
	return filepath.Join(dir, "secret.key")
}

func loadOrInitSecretKey(dir string) ([]byte, error) {
	path := secretKeyPath(dir)
	if b, err := os.ReadFile(path); err == nil && len(strings.TrimSpace(string(b))) > 0 {
		return []byte(strings.TrimSpace(string(b))), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	enc := base64.RawURLEncoding.EncodeToString(raw)
	if err := atomic.WriteFile(path, strings.NewReader(enc+"\n")); err != nil {
		return nil, err
	}
	// atomic.WriteFile doesn't set permissions for new files.
	if err := os.Chmod(path, 0o600); err != nil {
		return nil, err
	}
	return []byte(enc), nil
}

func newSessionToken(secret []byte, user string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return "", time.Time{}, errors.New("missing user")
	}
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   user,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func verifyToken(secret []byte, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("missing token")
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("token missing sub")
	}
	return claims.Subject, nil
}

// owner resolves the session of r. ok is false when the session is missing or
// invalid.
func (s *Server) owner(r *http.Request) (string, bool) {
	if s.cfg.AuthMode == AuthNone {
		return anonymousOwner, true
	}
	h := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(h, "Bearer ")
	if !found {
		return "", false
	}
	user, err := verifyToken(s.secret, token)
	if err != nil {
		s.log.Debug().Err(err).Msg("session rejected")
		return "", false
	}
	return user, true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	user := strings.TrimSpace(r.FormValue("user"))
	if user == "" {
		http.Error(w, "missing user", http.StatusBadRequest)
		return
	}
	if s.cfg.AuthMode == AuthNone {
		w.Header().Set("Content-Type", "application/json")
		_ = format.WriteJSON(w, syncproto.LoginResponse{}, false)
		return
	}
	token, exp, err := newSessionToken(s.secret, user, s.cfg.SessionTTL, time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info().Str("user", user).Time("expires", exp).Msg("login")
	w.Header().Set("Content-Type", "application/json")
	_ = format.WriteJSON(w, syncproto.LoginResponse{Token: token, ExpiresAt: exp.UTC()}, false)
}
