package web

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ===== Session/JWT primitives =====

type AuthConfig struct {
	HMACSecret   []byte
	CookieName   string
	SecureCookie bool
	TTL          time.Duration
}

type AuthManager struct {
	cfg    AuthConfig
	apiKey []byte
	now    func() time.Time
}

// NewAuthManager builds the admin guard. An empty apiKey disables every
// admin route.
func NewAuthManager(apiKey, secret string, secure bool, ttl time.Duration) *AuthManager {
	return &AuthManager{
		cfg: AuthConfig{
			HMACSecret:   []byte(secret),
			CookieName:   "admin_session",
			SecureCookie: secure,
			TTL:          ttl,
		},
		apiKey: []byte(apiKey),
		now:    time.Now,
	}
}

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (a *AuthManager) Enabled() bool { return len(a.apiKey) > 0 }

// CheckAPIKey compares key against the configured admin key in constant time.
func (a *AuthManager) CheckAPIKey(key string) bool {
	if !a.Enabled() {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), a.apiKey) == 1
}

// Mint signs a short-lived admin token and also sets it as an HttpOnly cookie.
func (a *AuthManager) Mint(w http.ResponseWriter) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.cfg.TTL)
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Subject:   "admin",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.cfg.HMACSecret)
	if err != nil {
		return "", time.Time{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(a.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	return signed, expires, nil
}

// Authorize accepts a valid admin JWT (bearer or cookie) or the raw API key
// as a bearer credential.
func (a *AuthManager) Authorize(r *http.Request) error {
	if !a.Enabled() {
		return errAdminDisabled
	}
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return errors.New("malformed authorization header")
		}
		cred := strings.TrimSpace(hdr[7:])
		if a.CheckAPIKey(cred) {
			return nil
		}
		_, err := a.parse(cred)
		return err
	}
	if c, err := r.Cookie(a.cfg.CookieName); err == nil {
		_, err := a.parse(c.Value)
		return err
	}
	return errors.New("missing token")
}

var errAdminDisabled = errors.New("admin api is not configured")

func (a *AuthManager) parse(tok string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.cfg.HMACSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !tkn.Valid || claims.Role != "admin" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// AdminOnly rejects requests that Authorize refuses.
func (a *AuthManager) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.Authorize(r); err != nil {
			if errors.Is(err, errAdminDisabled) {
				writeError(w, http.StatusForbidden, statusError, err.Error())
				return
			}
			writeError(w, http.StatusUnauthorized, statusError, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
