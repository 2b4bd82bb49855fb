package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/madvasya/lz-app-backend/internal/platform/httpx"
)

// TokenKind selects the TTL applied to an issued token.
type TokenKind string

// Token kinds understood by the issuer.
const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// Claims is the verified payload of a token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer creates and verifies HS256-signed tokens. The signing secret and
// both TTLs are injected at construction; there is no process-wide state.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer constructs an Issuer from externally supplied configuration.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Issue signs a token for subject with the expiry of the given kind.
func (i *Issuer) Issue(subject string, kind TokenKind) (string, error) {
	var ttl time.Duration
	switch kind {
	case TokenAccess:
		ttl = i.accessTTL
	case TokenRefresh:
		ttl = i.refreshTTL
	default:
		return "", fmt.Errorf("auth: cannot issue %q token", kind)
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Decode verifies signature and expiry and returns the claims.
func (i *Issuer) Decode(token string) (Claims, error) {
	return i.decode(token, true)
}

// DecodeSkipExpiry verifies the signature only. Refresh-token liveness is
// governed by the session row, not by the token's own expiry claim.
func (i *Issuer) DecodeSkipExpiry(token string) (Claims, error) {
	return i.decode(token, false)
}

func (i *Issuer) decode(token string, verifyExpiry bool) (Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if !verifyExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	var registered jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &registered, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: could not validate credentials", httpx.ErrInvalidToken)
	}
	if registered.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", httpx.ErrInvalidToken)
	}
	claims := Claims{Subject: registered.Subject}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return claims, nil
}
