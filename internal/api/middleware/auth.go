// server/internal/api/middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"container-inspection-api-server/internal/auth"
	"container-inspection-api-server/internal/models"

	"github.com/gin-gonic/gin"
)

// Keys under which Authenticate stores the caller in the gin context.
const (
	KeyUserID      = "user_id"
	KeyUsername    = "username"
	KeyRole        = "user_role"
	KeyPermissions = "user_permissions"
	KeyClaims      = "claims"
)

// Authenticate checks the Bearer JWT and puts the caller into the context.
func Authenticate(issuer *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			return
		}

		claims, err := issuer.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(KeyUserID, claims.UserID)
		c.Set(KeyUsername, claims.Username)
		c.Set(KeyRole, claims.Role)
		c.Set(KeyPermissions, claims.Permissions)
		c.Set(KeyClaims, claims)

		c.Next()
	}
}

// Authorize lets the request through only for the listed roles.
func Authorize(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString(KeyRole)
		if userRole == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "User role not found in context"})
			return
		}

		for _, role := range allowedRoles {
			if role == userRole {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this resource"})
	}
}

// RequirePermission rejects callers whose token lacks perm. Admins pass.
func RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Claims not found in context"})
			return
		}
		if !claims.HasPermission(perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Missing permission " + perm})
			return
		}
		c.Next()
	}
}

// Claims returns the token claims Authenticate stored, or nil.
func Claims(c *gin.Context) *auth.JWTClaims {
	v, ok := c.Get(KeyClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.JWTClaims)
	return claims
}

// HasPermission is the handler-side check for permissions that depend on the
// request body, such as billing fields on an update.
func HasPermission(c *gin.Context, perm string) bool {
	if claims := Claims(c); claims != nil {
		return claims.HasPermission(perm)
	}
	return false
}

// IsAdmin reports whether the caller has the admin role.
func IsAdmin(c *gin.Context) bool {
	return c.GetString(KeyRole) == models.RoleAdmin
}
