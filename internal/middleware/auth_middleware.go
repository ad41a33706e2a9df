package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/pkg/auth"
)

// Ключи контекста Gin, под которыми middleware сохраняет клеймы токена
const (
	ContextUserID      = "user_id"
	ContextSessionID   = "token_session_id"
	ContextDisplayName = "display_name"
)

// AuthMiddleware проверяет гостевые токены на защищенных маршрутах
type AuthMiddleware struct {
	tokenService *auth.TokenService
}

// NewAuthMiddleware создает новый middleware аутентификации
func NewAuthMiddleware(tokenService *auth.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokenService: tokenService}
}

// RequireAuth проверяет гостевой токен в заголовке Authorization
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required", "error_type": "token_missing"})
			c.Abort()
			return
		}

		// Проверяем формат заголовка Bearer {token}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": "token_format"})
			c.Abort()
			return
		}

		claims, err := m.tokenService.ParseToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": "token_invalid"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextSessionID, claims.SessionID)
		c.Set(ContextDisplayName, claims.DisplayName)
		c.Next()
	}
}

// OptionalAuth извлекает клеймы, если токен есть, но не требует его.
// Анонимный вызов проходит дальше без user_id в контексте.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.Next()
			return
		}

		if claims, err := m.tokenService.ParseToken(parts[1]); err == nil {
			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextSessionID, claims.SessionID)
			c.Set(ContextDisplayName, claims.DisplayName)
		}
		c.Next()
	}
}
