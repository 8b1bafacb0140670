package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const CtxClaims = "auth_claims"

// ClaimsFrom extracts the verified token claims set by RequireAuth.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(CtxClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// UserEmail returns the verified token email, or "" if unauthenticated.
func UserEmail(c *gin.Context) string {
	claims, ok := ClaimsFrom(c)
	if !ok {
		return ""
	}
	return strings.TrimSpace(claims.Email)
}
