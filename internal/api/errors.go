package api

import (
	"context"
	"errors"
	"net/http"

	"reportforms/internal/compose"
	"reportforms/internal/docx"
	"reportforms/internal/forms"
	"reportforms/internal/gallery"
	"reportforms/internal/pdf"
	"reportforms/internal/service/artifact"
	"reportforms/internal/service/report"
	"reportforms/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors to status codes.
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		verr    *compose.ValidationError
		terr    *docx.TemplateError
		cfgErr  *pdf.ConfigError
		convErr *pdf.ConversionError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Message, "field": verr.Field})
	case errors.As(err, &terr):
		details := make([]string, len(terr.Errors))
		for i, e := range terr.Errors {
			details[i] = e.Error()
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "template error", "details": details})
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": cfgErr.Error(), "details": cfgErr.Missing})
	case errors.As(err, &convErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": convErr.Message, "details": convErr.Details})
	case errors.Is(err, report.ErrUnknownApp),
		errors.Is(err, report.ErrUnknownScenario),
		errors.Is(err, report.ErrNotConverting),
		errors.Is(err, artifact.ErrNotFound),
		errors.Is(err, gallery.ErrNoAttachment),
		errors.Is(err, forms.ErrUnknownMailScenario):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, report.ErrUnsupported), errors.Is(err, compose.ErrNoTemplate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, gallery.ErrNotImage):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	case errors.Is(err, forms.ErrInvalidCaseNumber):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "field": "nOc"})
	case errors.Is(err, report.ErrNothingToCopy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, pdf.ErrEmptyInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, worker.ErrDispatcherBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
	case errors.Is(err, report.ErrPDFUnavailable), errors.Is(err, worker.ErrDispatcherClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "conversion timed out"})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusConflict, gin.H{"error": "conversion cancelled"})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
