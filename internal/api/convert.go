package api

import (
	"errors"
	"io"
	"net/http"

	"reportforms/internal/models"
	"reportforms/internal/pdf"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func setCORSHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Credentials", "true")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET,OPTIONS,PATCH,DELETE,POST,PUT")
	c.Header("Access-Control-Allow-Headers",
		"X-CSRF-Token, X-Requested-With, Accept, Accept-Version, Content-Length, Content-MD5, Content-Type, Date, X-Api-Version")
}

// convertPDF is the standalone bridge: the request body is a Word document,
// the response the converted PDF.
func (h *Handler) convertPDF(c *gin.Context) {
	setCORSHeaders(c)
	switch c.Request.Method {
	case http.MethodOptions:
		c.Status(http.StatusOK)
		return
	case http.MethodPost:
	default:
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
		return
	}
	if h.converter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pdf conversion is not configured"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed", "details": err.Error()})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": pdf.ErrEmptyInput.Error()})
		return
	}

	out, err := h.converter.Convert(c.Request.Context(), body)
	if err != nil {
		h.logger.Warn("standalone conversion failed", zap.Int("bytes", len(body)), zap.Error(err))
		var convErr *pdf.ConversionError
		switch {
		case errors.As(err, &convErr):
			c.JSON(http.StatusInternalServerError, gin.H{"error": convErr.Message, "details": convErr.Details})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "details": err.Error()})
		}
		return
	}
	c.Header("Content-Disposition", "attachment; filename=documento.pdf")
	c.Data(http.StatusOK, models.MimePDF, out)
}
