package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"reportforms/internal/models"
	"reportforms/internal/session"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listAttachments(c *gin.Context) {
	token, _ := session.TokenFromContext(c)
	thumbs, err := h.reports.Attachments(token, c.Param("app"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": thumbs})
}

// addAttachments accepts dropped files (multipart "file" parts), a pasted
// data URL ({"data_url": ...}) or a raw image body read from the clipboard.
func (h *Handler) addAttachments(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	payloads, err := readImagePayloads(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(payloads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image received"})
		return
	}

	token, _ := session.TokenFromContext(c)
	app := c.Param("app")
	added := 0
	for _, p := range payloads {
		_, isNew, err := h.reports.AddAttachment(token, app, p)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if isNew {
			added++
		}
	}
	thumbs, err := h.reports.Attachments(token, app)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"added": added, "attachments": thumbs})
}

func readImagePayloads(c *gin.Context) ([][]byte, error) {
	switch c.ContentType() {
	case "multipart/form-data":
		form, err := c.MultipartForm()
		if err != nil {
			return nil, err
		}
		var out [][]byte
		for _, fh := range form.File["file"] {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, err
			}
			out = append(out, data)
		}
		return out, nil
	case "application/json":
		var req struct {
			DataURL string `json:"data_url"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, err
		}
		if req.DataURL == "" {
			return nil, nil
		}
		return [][]byte{[]byte(req.DataURL)}, nil
	default:
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, nil
		}
		return [][]byte{data}, nil
	}
}

func (h *Handler) removeAttachment(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attachment index"})
		return
	}
	token, _ := session.TokenFromContext(c)
	if err := h.reports.RemoveAttachment(token, c.Param("app"), index); err != nil {
		h.respondError(c, err)
		return
	}
	thumbs, err := h.reports.Attachments(token, c.Param("app"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": thumbs})
}

func (h *Handler) generateDocument(c *gin.Context) {
	token, _ := session.TokenFromContext(c)
	doc, err := h.reports.Generate(c.Request.Context(), token, c.Param("app"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) downloadDocument(c *gin.Context) {
	token, _ := session.TokenFromContext(c)
	art, data, err := h.reports.Download(c.Request.Context(), token, c.Param("app"), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	sendFile(c, art.FileName, models.MimeDocx, data)
}

func (h *Handler) downloadPDF(c *gin.Context) {
	token, _ := session.TokenFromContext(c)
	name, data, err := h.reports.ConvertPDF(c.Request.Context(), token, c.Param("app"), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	sendFile(c, name, models.MimePDF, data)
}

func (h *Handler) cancelPDF(c *gin.Context) {
	token, _ := session.TokenFromContext(c)
	if err := h.reports.CancelPDF(token, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) clipboard(c *gin.Context) {
	token, _ := session.TokenFromContext(c)
	text, contentType, err := h.reports.Clipboard(c.Request.Context(), token, c.Param("app"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, []byte(text))
}

func (h *Handler) mailLink(c *gin.Context) {
	token, _ := session.TokenFromContext(c)
	link, err := h.reports.MailURL(c.Request.Context(), token, c.Param("app"), c.Query("type"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": link})
}

func (h *Handler) sheetLink(c *gin.Context) {
	token, _ := session.TokenFromContext(c)
	link, err := h.reports.SheetURL(c.Request.Context(), token, c.Param("app"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": link})
}

func sendFile(c *gin.Context, name, contentType string, data []byte) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Data(http.StatusOK, contentType, data)
}
