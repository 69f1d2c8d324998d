package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"shark/crypto"
	"shark/services/lending/config"
)

var (
	errAuthRequired  = errors.New("authentication required")
	errSenderMissing = errors.New("sender required for operator requests")
	errSenderDenied  = errors.New("sender does not match token subject")
)

type principalKey struct{}

// Principal is the authenticated caller of a mutating request.
type Principal struct {
	// Operator is set for static API tokens, which may act for any sender.
	Operator bool
	// Subject is the address a JWT bearer is allowed to act as.
	Subject string
}

// PrincipalFromContext returns the principal installed by the auth
// middleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// Authenticator accepts static operator tokens and HS256 JWTs whose subject
// is the acting address.
type Authenticator struct {
	tokens [][]byte
	secret []byte
	issuer string
	leeway time.Duration
}

// NewAuthenticator builds an authenticator from cfg.
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	auth := &Authenticator{
		secret: []byte(strings.TrimSpace(cfg.JWTSecret)),
		issuer: strings.TrimSpace(cfg.JWTIssuer),
		leeway: 30 * time.Second,
	}
	for _, token := range cfg.APITokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			auth.tokens = append(auth.tokens, []byte(trimmed))
		}
	}
	return auth
}

// Middleware rejects requests that carry no valid credential.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.authenticate(r)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (*Principal, error) {
	if a == nil || (len(a.tokens) == 0 && len(a.secret) == 0) {
		return nil, errors.New("authentication is not configured")
	}
	if token := strings.TrimSpace(r.Header.Get("X-API-Token")); token != "" && a.tokenAllowed(token) {
		return &Principal{Operator: true}, nil
	}
	bearer := parseBearerToken(r.Header.Get("Authorization"))
	if bearer == "" {
		return nil, errAuthRequired
	}
	if a.tokenAllowed(bearer) {
		return &Principal{Operator: true}, nil
	}
	if len(a.secret) == 0 {
		return nil, errAuthRequired
	}
	subject, err := a.parseJWT(bearer)
	if err != nil {
		return nil, errors.New("invalid token")
	}
	return &Principal{Subject: subject}, nil
}

func (a *Authenticator) tokenAllowed(candidate string) bool {
	for _, token := range a.tokens {
		if subtle.ConstantTimeCompare(token, []byte(candidate)) == 1 {
			return true
		}
	}
	return false
}

func (a *Authenticator) parseJWT(raw string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.leeway),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("token invalid")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", errors.New("token subject required")
	}
	return subject, nil
}

// resolveSender picks the acting address. Operators must name one; JWT
// bearers act as their subject and may not name anyone else.
func (p *Principal) resolveSender(requested, prefix string) (crypto.Address, error) {
	requested = strings.TrimSpace(requested)
	if p == nil {
		return crypto.Address{}, errAuthRequired
	}
	if p.Operator {
		if requested == "" {
			return crypto.Address{}, errSenderMissing
		}
		return crypto.ValidateAddress(requested, prefix)
	}
	if requested != "" && requested != p.Subject {
		return crypto.Address{}, errSenderDenied
	}
	return crypto.ValidateAddress(p.Subject, prefix)
}

func parseBearerToken(header string) string {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return ""
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(strings.TrimSpace(parts[0]), "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
