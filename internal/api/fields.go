package api

import (
	"net/http"

	"reportforms/internal/session"

	"github.com/gin-gonic/gin"
)

type fieldRequest struct {
	Value string `json:"value"`
}

func (h *Handler) getFields(c *gin.Context) {
	token, _ := session.TokenFromContext(c)
	values, err := h.reports.Fields(c.Request.Context(), token, c.Param("app"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fields": values})
}

func (h *Handler) saveField(c *gin.Context) {
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	token, _ := session.TokenFromContext(c)
	res, err := h.reports.SaveField(c.Request.Context(), token, c.Param("app"), c.Param("field"), req.Value)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) validateField(c *gin.Context) {
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.reports.ValidateField(c.Param("app"), c.Param("field"), req.Value)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) clearFields(c *gin.Context) {
	token, _ := session.TokenFromContext(c)
	if err := h.reports.Clear(c.Request.Context(), token, c.Param("app")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listScenarios(c *gin.Context) {
	scenarios, err := h.reports.Scenarios(c.Param("app"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": scenarios})
}

func (h *Handler) applyScenario(c *gin.Context) {
	token, _ := session.TokenFromContext(c)
	results, err := h.reports.ApplyScenario(c.Request.Context(), token, c.Param("app"), c.Param("scenario"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fields": results})
}
