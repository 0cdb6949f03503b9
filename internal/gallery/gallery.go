// Package gallery keeps the images attached to an accident report.
package gallery

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"sync"

	"reportforms/internal/models"
)

const (
	MaxDocWidth  = 680
	MaxDocHeight = 800

	fallbackWidth  = 500
	fallbackHeight = 300

	// EMUPerPixel converts 96 dpi pixels to Office English Metric Units.
	EMUPerPixel = 9525
)

var (
	ErrNotImage     = errors.New("payload is not a supported image")
	ErrNoAttachment = errors.New("attachment not found")
)

// Thumbnail is one rendered gallery entry.
type Thumbnail struct {
	Index  int    `json:"index"`
	Src    string `json:"src"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Gallery is an ordered list of attachments deduplicated by content.
type Gallery struct {
	mu    sync.Mutex
	items []models.Attachment
	seen  map[[sha256.Size]byte]struct{}
}

func New() *Gallery {
	return &Gallery{seen: make(map[[sha256.Size]byte]struct{})}
}

// Ingest decodes an uploaded payload, raw bytes or a data URL, and adds it.
// It reports whether the image was new.
func (g *Gallery) Ingest(payload []byte) (models.Attachment, bool, error) {
	data := payload
	if bytes.HasPrefix(payload, []byte("data:")) {
		decoded, err := DecodeDataURL(string(payload))
		if err != nil {
			return models.Attachment{}, false, err
		}
		data = decoded
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return models.Attachment{}, false, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	mime := "image/" + format
	att := models.Attachment{
		Src:      "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
		Data:     data,
		MimeType: mime,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}
	return att, g.Add(att), nil
}

// Add appends the attachment unless identical bytes are already present.
func (g *Gallery) Add(att models.Attachment) bool {
	key := sha256.Sum256(att.Data)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, dup := g.seen[key]; dup {
		return false
	}
	g.seen[key] = struct{}{}
	g.items = append(g.items, att)
	return true
}

// Remove deletes the entry at index together with its dedup entry.
func (g *Gallery) Remove(index int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if index < 0 || index >= len(g.items) {
		return fmt.Errorf("%w: index %d", ErrNoAttachment, index)
	}
	delete(g.seen, sha256.Sum256(g.items[index].Data))
	g.items = append(g.items[:index], g.items[index+1:]...)
	return nil
}

func (g *Gallery) Clear() {
	g.mu.Lock()
	g.items = nil
	g.seen = make(map[[sha256.Size]byte]struct{})
	g.mu.Unlock()
}

func (g *Gallery) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.items)
}

// Items returns a copy of the attachments in insertion order.
func (g *Gallery) Items() []models.Attachment {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.Attachment, len(g.items))
	copy(out, g.items)
	return out
}

// Render rebuilds the thumbnail list from scratch.
func (g *Gallery) Render() []Thumbnail {
	items := g.Items()
	out := make([]Thumbnail, len(items))
	for i, it := range items {
		out[i] = Thumbnail{Index: i, Src: it.Src, Width: it.Width, Height: it.Height}
	}
	return out
}

// ClampSize fits intrinsic dimensions into the document's printable box.
// Width is limited first, then height; each step keeps the aspect ratio.
// Unknown dimensions fall back to 500x300.
func ClampSize(w, h int) (float64, float64) {
	if w <= 0 || h <= 0 {
		return fallbackWidth, fallbackHeight
	}
	fw, fh := float64(w), float64(h)
	if fw > MaxDocWidth {
		ratio := MaxDocWidth / fw
		fw = MaxDocWidth
		fh *= ratio
	}
	if fh > MaxDocHeight {
		ratio := MaxDocHeight / fh
		fh = MaxDocHeight
		fw *= ratio
	}
	return fw, fh
}

// EMU converts a pixel length to English Metric Units.
func EMU(px float64) int64 {
	return int64(px*EMUPerPixel + 0.5)
}

// DecodeDataURL returns the payload of a base64 data URL.
func DecodeDataURL(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "data:") {
		return nil, ErrNotImage
	}
	meta, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: expected base64 data URL", ErrNotImage)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return data, nil
}
