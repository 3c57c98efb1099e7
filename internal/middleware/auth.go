package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"reinf/internal/auth"
	"reinf/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ctxUserID  = "userID"
	ctxIsAdmin = "isAdmin"

	accessTokenCookie = "access_token"
)

// AdminChecker reports whether a user currently holds the administrator flag
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Auth builds the authentication middlewares
type Auth struct {
	tokens *auth.TokenIssuer
	admins AdminChecker
}

func NewAuth(tokens *auth.TokenIssuer, admins AdminChecker) *Auth {
	return &Auth{tokens: tokens, admins: admins}
}

// SetTokenCookie stores the access token as an HttpOnly cookie
func SetTokenCookie(c *gin.Context, token string, expiresAt time.Time) {
	sameSite, secure := cookiePolicy()
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, token, int(time.Until(expiresAt).Seconds()), "/", "", secure, true)
}

// ClearTokenCookie removes the access token cookie
func ClearTokenCookie(c *gin.Context) {
	sameSite, secure := cookiePolicy()
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", secure, true)
}

// Production (cross-origin): SameSiteNoneMode + Secure
// Development (same-site):   SameSiteLaxMode
func cookiePolicy() (http.SameSite, bool) {
	if gin.Mode() == gin.ReleaseMode {
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteLaxMode, false
}

// RequireAuth validates the access token (cookie first, then Bearer header)
// and stores the user id in the context.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		claims, err := a.tokens.Validate(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
			return
		}

		c.Set(ctxUserID, claims.Subject)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth. The admin flag is re-read from the
// store on every request so a revoked administrator loses access at once.
func (a *Auth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := CurrentUserID(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		isAdmin, err := a.admins.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			// unknown profile behind a valid token
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found"))
			return
		}
		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: administrator only"))
			return
		}

		c.Set(ctxIsAdmin, true)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user's id
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(ctxUserID)
	if !exists {
		return uuid.Nil, errors.New("User ID not found in context")
	}
	idStr, ok := raw.(string)
	if !ok {
		return uuid.Nil, errors.New("Invalid User ID format")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, errors.New("Invalid User ID format")
	}
	return id, nil
}

func extractToken(c *gin.Context) (string, error) {
	if token, err := c.Cookie(accessTokenCookie); err == nil && token != "" {
		return token, nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errors.New("Authorization is missing")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("Invalid authorization format. Expected 'Bearer <token>'")
	}
	return parts[1], nil
}
