package models

import "time"

const (
	MimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePDF  = "application/pdf"
)

// Artifact represents a generated document kept on disk until it expires.
type Artifact struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"-"`
	App        string    `json:"app"`
	Title      string    `json:"title"`
	FileName   string    `json:"file_name"`
	StoredPath string    `json:"-"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
