package gallery

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, c)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestClampSize(t *testing.T) {
	cases := []struct {
		w, h         int
		wantW, wantH float64
	}{
		{1000, 400, 680, 272},
		{400, 1000, 320, 800},
		{600, 500, 600, 500},
		{0, 0, 500, 300},
		{2000, 4000, 400, 800},
	}
	for _, tc := range cases {
		w, h := ClampSize(tc.w, tc.h)
		assert.InDelta(t, tc.wantW, w, 1e-9, "width for %dx%d", tc.w, tc.h)
		assert.InDelta(t, tc.wantH, h, 1e-9, "height for %dx%d", tc.w, tc.h)
	}
}

func TestClampSizeStaysInBox(t *testing.T) {
	for w := 1; w < 5000; w += 97 {
		for h := 1; h < 5000; h += 89 {
			cw, ch := ClampSize(w, h)
			if cw > MaxDocWidth+1e-9 || ch > MaxDocHeight+1e-9 {
				t.Fatalf("ClampSize(%d,%d) = (%f,%f) escapes box", w, h, cw, ch)
			}
		}
	}
}

func TestEMU(t *testing.T) {
	assert.Equal(t, int64(6477000), EMU(680))
	assert.Equal(t, int64(2590800), EMU(272))
}

func TestIngestDeduplicates(t *testing.T) {
	g := New()
	raw := pngBytes(t, 40, 20, color.White)

	att, added, err := g.Ingest(raw)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 40, att.Width)
	assert.Equal(t, 20, att.Height)
	assert.Equal(t, "image/png", att.MimeType)

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
	_, added, err = g.Ingest([]byte(dataURL))
	require.NoError(t, err)
	assert.False(t, added, "same bytes via data URL must not duplicate")
	assert.Equal(t, 1, g.Len())

	_, added, err = g.Ingest(pngBytes(t, 40, 20, color.Black))
	require.NoError(t, err)
	assert.True(t, added)

	thumbs := g.Render()
	require.Len(t, thumbs, 2)
	assert.Equal(t, 1, thumbs[1].Index)
	assert.Equal(t, att.Src, thumbs[0].Src)
}

func TestRemoveForgetsContent(t *testing.T) {
	g := New()
	raw := pngBytes(t, 10, 10, color.White)
	_, _, err := g.Ingest(raw)
	require.NoError(t, err)

	require.NoError(t, g.Remove(0))
	assert.ErrorIs(t, g.Remove(0), ErrNoAttachment)

	_, added, err := g.Ingest(raw)
	require.NoError(t, err)
	assert.True(t, added, "removed image can be attached again")

	g.Clear()
	assert.Zero(t, g.Len())
}

func TestIngestRejectsNonImages(t *testing.T) {
	g := New()
	_, _, err := g.Ingest([]byte("not an image"))
	assert.ErrorIs(t, err, ErrNotImage)
	_, _, err = g.Ingest([]byte("data:text/plain,hello"))
	assert.ErrorIs(t, err, ErrNotImage)
	assert.Zero(t, g.Len())
}
