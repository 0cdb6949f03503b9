package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	tokenContextKey      = "form_session_token"
	fromHeaderContextKey = "form_session_from_header"
)

// Middleware validates the form session and stores the token in the context.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, fromHeader := s.extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrTokenRequired.Error()})
			return
		}
		if err := s.Validate(c.Request.Context(), token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(tokenContextKey, token)
		c.Set(fromHeaderContextKey, fromHeader)
		c.Next()
	}
}

// TokenFromContext retrieves the form session captured by the middleware.
func TokenFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(tokenContextKey)
	if !ok {
		return "", false
	}
	token, ok := val.(string)
	return token, ok && token != ""
}

func (s *Service) extractToken(c *gin.Context) (string, bool) {
	if token := c.GetHeader(s.headerName); token != "" {
		return token, true
	}
	if token, err := c.Cookie(s.cookieName); err == nil && token != "" {
		return token, false
	}
	return "", false
}
