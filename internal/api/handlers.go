package api

import (
	"net/http"
	"time"

	"reportforms/internal/forms"
	"reportforms/internal/pdf"
	"reportforms/internal/service/report"
	"reportforms/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultMaxBodyBytes = 20 << 20

// Handler wires HTTP routes to the report service.
type Handler struct {
	reports   *report.Service
	sessions  *session.Service
	converter pdf.Converter
	maxBody   int64
	logger    *zap.Logger
}

// NewHandler constructs a Handler. converter serves the standalone
// /api/convert-pdf endpoint and may be nil.
func NewHandler(reports *report.Service, sessions *session.Service, converter pdf.Converter, maxBody int64, logger *zap.Logger) *Handler {
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		reports:   reports,
		sessions:  sessions,
		converter: converter,
		maxBody:   maxBody,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.Any("/convert-pdf", h.convertPDF)
	api.POST("/sessions", h.issueSession)
	api.GET("/apps", h.listApps)

	authed := api.Group("", h.sessions.Middleware(), h.sessions.CSRFMiddleware())
	authed.DELETE("/sessions/current", h.revokeSession)

	apps := authed.Group("/apps/:app")
	apps.GET("/fields", h.getFields)
	apps.PUT("/fields/:field", h.saveField)
	apps.POST("/fields/:field/validate", h.validateField)
	apps.DELETE("/fields", h.clearFields)
	apps.GET("/scenarios", h.listScenarios)
	apps.POST("/scenarios/:scenario", h.applyScenario)
	apps.GET("/attachments", h.listAttachments)
	apps.POST("/attachments", h.addAttachments)
	apps.DELETE("/attachments/:index", h.removeAttachment)
	apps.POST("/documents", h.generateDocument)
	apps.GET("/documents/:id", h.downloadDocument)
	apps.POST("/documents/:id/pdf", h.downloadPDF)
	apps.DELETE("/documents/:id/pdf", h.cancelPDF)
	apps.GET("/clipboard", h.clipboard)
	apps.GET("/mail", h.mailLink)
	apps.GET("/sheet", h.sheetLink)
}

func (h *Handler) issueSession(c *gin.Context) {
	sess, err := h.sessions.Issue(c.Request.Context())
	if err != nil {
		h.logger.Error("issue session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue session failed"})
		return
	}
	csrfToken, err := h.sessions.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue session failed"})
		return
	}
	h.setSessionCookies(c, sess.Token, csrfToken)
	c.JSON(http.StatusCreated, gin.H{
		"token":      sess.Token,
		"csrf_token": csrfToken,
		"expires_at": sess.ExpiresAt,
	})
}

func (h *Handler) revokeSession(c *gin.Context) {
	token, _ := session.TokenFromContext(c)
	if err := h.sessions.Revoke(c.Request.Context(), token); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.reports.PurgeSession(c.Request.Context(), token); err != nil {
		h.logger.Warn("purge session data failed", zap.Error(err))
	}
	h.clearSessionCookies(c)
	c.Status(http.StatusNoContent)
}

type appInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	HasTemplate bool   `json:"has_template"`
	HasGallery  bool   `json:"has_gallery"`
	HasMail     bool   `json:"has_mail"`
	HasSheet    bool   `json:"has_sheet"`
	Fields      []any  `json:"fields"`
}

func (h *Handler) listApps(c *gin.Context) {
	apps := h.reports.Apps()
	out := make([]appInfo, 0, len(apps))
	for _, app := range apps {
		out = append(out, describeApp(app))
	}
	c.JSON(http.StatusOK, gin.H{"apps": out})
}

func describeApp(app *forms.App) appInfo {
	info := appInfo{
		ID:          app.ID,
		Name:        app.Name,
		HasTemplate: app.HasTemplate,
		HasGallery:  app.HasGallery,
		HasMail:     app.HasMail,
		HasSheet:    app.HasSheet,
		Fields:      make([]any, 0, len(app.Fields)),
	}
	for _, f := range app.Fields {
		info.Fields = append(info.Fields, gin.H{"id": f.ID, "kind": f.Kind})
	}
	return info
}

func (h *Handler) setSessionCookies(c *gin.Context, token, csrfToken string) {
	ttl := int(h.sessions.TTL() / time.Second)
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.sessions.CookieName(),
		Value:    token,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.sessions.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearSessionCookies(c *gin.Context) {
	for _, name := range []string{h.sessions.CookieName(), h.sessions.CSRFCookieName()} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.sessions.CookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}
