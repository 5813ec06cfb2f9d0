// Package identity issues and verifies business tokens. A business token is
// an HS256 JWT carrying the tenant identity every attestation operation is
// scoped to.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const claimsCtxKey = "attestd_business_claims"

// BusinessClaims are the claims embedded in a business token.
type BusinessClaims struct {
	BusinessID string `json:"business_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies business tokens with a shared HMAC secret.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer. ttl 0 defaults to 24 hours.
func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl}
}

// Issue mints a token for the given business.
func (t *TokenIssuer) Issue(businessID string) (string, error) {
	now := time.Now()
	claims := BusinessClaims{
		BusinessID: businessID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   businessID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign business token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (t *TokenIssuer) Verify(tokenStr string) (*BusinessClaims, error) {
	claims := &BusinessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer))
	if err != nil {
		return nil, fmt.Errorf("parse business token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid business token")
	}
	if claims.BusinessID == "" {
		return nil, errors.New("business token missing business_id")
	}
	return claims, nil
}

// RequireBusiness returns a middleware that rejects requests without a valid
// business token and injects the claims into the request context.
func RequireBusiness(issuer *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := issuer.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid business token"})
			return
		}
		c.Set(claimsCtxKey, claims)
		c.Next()
	}
}

// BusinessFromCtx returns the verified claims injected by RequireBusiness,
// or nil when the request carried no valid token.
func BusinessFromCtx(c *gin.Context) *BusinessClaims {
	v, ok := c.Get(claimsCtxKey)
	if !ok {
		return nil
	}
	claims, ok := v.(*BusinessClaims)
	if !ok {
		return nil
	}
	return claims
}
