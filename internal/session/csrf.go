package session

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrCSRFMismatch rejects a cookie-borne form session whose mutation lacks
// the matching form_csrf cookie and X-Form-CSRF header pair.
var ErrCSRFMismatch = errors.New("form session cookie needs a matching X-Form-CSRF header")

var csrfSafeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// CSRFMiddleware guards form mutations made with the session cookie. Stations
// that send the session in X-Form-Session pass through. Run it after
// Middleware.
func (s *Service) CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if csrfSafeMethods[c.Request.Method] || c.GetBool(fromHeaderContextKey) {
			c.Next()
			return
		}
		if !s.csrfMatches(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": ErrCSRFMismatch.Error()})
			return
		}
		c.Next()
	}
}

func (s *Service) csrfMatches(c *gin.Context) bool {
	sent := c.GetHeader(s.csrfHeaderName)
	issued, err := c.Cookie(s.csrfCookieName)
	if err != nil || sent == "" || issued == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sent), []byte(issued)) == 1
}
