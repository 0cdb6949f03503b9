package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reportforms/internal/storage/storagetest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := NewService(storagetest.Open(t), time.Hour)
	sess, err := svc.Issue(context.Background())
	require.NoError(t, err)

	r := gin.New()
	g := r.Group("/", svc.Middleware(), svc.CSRFMiddleware())
	handler := func(c *gin.Context) {
		token, _ := TokenFromContext(c)
		c.String(http.StatusOK, token)
	}
	g.GET("/ping", handler)
	g.POST("/ping", handler)
	return r, svc, sess.Token
}

func TestMiddlewareRejectsMissingSession(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), ErrTokenRequired.Error())
}

func TestMiddlewareHeaderSessionSkipsCSRF(t *testing.T) {
	r, svc, token := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.Header.Set(svc.HeaderName(), token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, token, w.Body.String())
}

func TestMiddlewareCookieSessionRequiresCSRF(t *testing.T) {
	r, svc, token := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.AddCookie(&http.Cookie{Name: svc.CookieName(), Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "reads need no csrf token")

	req = httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.AddCookie(&http.Cookie{Name: svc.CookieName(), Value: token})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Contains(t, w.Body.String(), ErrCSRFMismatch.Error())

	req = httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.AddCookie(&http.Cookie{Name: svc.CookieName(), Value: token})
	req.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: "abc"})
	req.Header.Set(svc.CSRFHeaderName(), "abd")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code, "mismatched pair")

	req = httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.AddCookie(&http.Cookie{Name: svc.CookieName(), Value: token})
	req.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: "abc"})
	req.Header.Set(svc.CSRFHeaderName(), "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareRejectsUnknownSession(t *testing.T) {
	r, svc, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(svc.HeaderName(), "nope")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), ErrInvalidToken.Error())
}
