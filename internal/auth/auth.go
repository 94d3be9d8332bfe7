package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthenticated indicates an operation that needs a known caller.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidToken indicates a bearer token that failed verification.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Credential identifies the caller of a store or service operation.
// Token is the raw bearer token, kept so backends that enforce row-level
// security can forward it.
type Credential struct {
	Subject string
	Token   string
}

// Anonymous reports whether the credential carries no subject.
func (c Credential) Anonymous() bool {
	return strings.TrimSpace(c.Subject) == ""
}

// Require returns ErrUnauthenticated for anonymous credentials.
func (c Credential) Require() error {
	if c.Anonymous() {
		return ErrUnauthenticated
	}
	return nil
}

type credentialKey struct{}

// WithCredential stores the credential on the context.
func WithCredential(ctx context.Context, cred Credential) context.Context {
	return context.WithValue(ctx, credentialKey{}, cred)
}

// FromContext returns the credential stored on the context, if any.
func FromContext(ctx context.Context) (Credential, bool) {
	cred, ok := ctx.Value(credentialKey{}).(Credential)
	return cred, ok
}

// Verifier validates HS256 bearer tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Verify parses the token and returns the credential for its subject.
func (v *Verifier) Verify(_ context.Context, token string) (Credential, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Credential{}, ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Credential{}, ErrInvalidToken
	}

	return Credential{Subject: claims.Subject, Token: token}, nil
}

// Sign issues an HS256 token for subject that expires after ttl.
func Sign(secret, subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject required")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
