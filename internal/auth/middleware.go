package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// Authenticate enforces bearer JWT access tokens signed with HS256.
func Authenticate(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(principalKey, claims.Principal())
		c.Next()
	}
}

// Require aborts with 403 unless the authenticated principal holds role.
func Require(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Authorize(CurrentPrincipal(c), role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "you do not have permission to access this resource"})
			return
		}
		c.Next()
	}
}

// CurrentPrincipal returns the principal stored by Authenticate, or the zero value.
func CurrentPrincipal(c *gin.Context) Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}
	}
	p, _ := v.(Principal)
	return p
}
