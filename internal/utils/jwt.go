package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"  // sentinel errors for verification failures
	"strconv" // user ids travel as decimal strings in the sub claim
	"time"    // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // unique jti per token
)

// ErrInvalidToken is returned for malformed, tampered or foreign tokens.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned when a correctly signed token is past exp.
var ErrExpiredToken = errors.New("token expired")

// AccessToken represents a signed JWT access token along with its expiry.
// TTL is the configured lifetime; clients receive it in seconds as
// expires_in.
type AccessToken struct {
	Token     string        // the serialized JWT string
	ExpiresAt time.Time     // the UTC expiration time
	TTL       time.Duration // lifetime the token was issued with
}

// ExpiresIn returns the lifetime in whole seconds.
func (a AccessToken) ExpiresIn() int64 {
	return int64(a.TTL / time.Second)
}

// TokenIssuer signs and verifies HS256 access tokens.  Tokens are
// stateless: verification needs only the secret and the clock.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer builds an issuer for the given secret, iss claim and TTL.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// TTL returns the configured token lifetime.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Issue builds and signs a JWT for userID.  The claims carry the subject
// (sub), issuer (iss), issued-at (iat), not-before (nbf), expiration (exp)
// and a random token id (jti).
func (t *TokenIssuer) Issue(userID uint64) (AccessToken, error) {
	now := t.now().UTC()
	exp := now.Add(t.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, ExpiresAt: exp, TTL: t.ttl}, nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the
// user id from the subject claim.
func (t *TokenIssuer) Verify(raw string) (uint64, error) {
	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredToken
		}
		return 0, ErrInvalidToken
	}
	if !tok.Valid {
		return 0, ErrInvalidToken
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}
