package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultPageTokenTTL = time.Hour

// pageTokenClaims binds an index cursor to the fingerprint of the query
// that produced it, so a token replayed against a different query is
// rejected rather than returning a nonsense page.
type pageTokenClaims struct {
	jwt.RegisteredClaims
	QueryFingerprint string `json:"qfp"`
	Cursor           string `json:"cur"`
}

// PageTokenCodec signs and verifies opaque pagination tokens.
type PageTokenCodec struct {
	secret []byte
	ttl    time.Duration
	nowF   func() time.Time
}

// NewPageTokenCodec returns a codec signing tokens with secret. A zero ttl
// uses the default of one hour.
func NewPageTokenCodec(secret []byte, ttl time.Duration) *PageTokenCodec {
	if ttl <= 0 {
		ttl = defaultPageTokenTTL
	}
	return &PageTokenCodec{
		secret: secret,
		ttl:    ttl,
		nowF:   func() time.Time { return time.Now().UTC() },
	}
}

// Issue produces a signed token carrying cursor for the query identified
// by fingerprint.
func (c *PageTokenCodec) Issue(fingerprint, cursor string) (string, error) {
	now := c.nowF()
	claims := pageTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		QueryFingerprint: fingerprint,
		Cursor:           cursor,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Parse verifies token and returns its cursor. Any defect, a bad
// signature, expiry, or a fingerprint that does not match the current
// query, yields ErrInvalidPageToken.
func (c *PageTokenCodec) Parse(token, fingerprint string) (string, error) {
	var claims pageTokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidPageToken
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return c.nowF() }))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidPageToken
	}
	if claims.QueryFingerprint != fingerprint {
		return "", ErrInvalidPageToken
	}
	return claims.Cursor, nil
}
