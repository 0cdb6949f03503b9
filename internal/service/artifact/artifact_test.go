package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reportforms/internal/models"
	"reportforms/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(storagetest.Open(t), t.TempDir(), time.Minute, zap.NewNop())
}

func TestSaveAndRead(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	art, err := svc.Save(ctx, "sess", "acidentes", "6A0001/2026", "6A0001-2026.docx", models.MimeDocx, []byte("docx"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), art.Size)
	assert.Equal(t, ".docx", filepath.Ext(art.StoredPath))
	assert.Equal(t, art.CreatedAt.Add(time.Minute), art.ExpiresAt)

	got, data, err := svc.Read(ctx, "sess", art.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("docx"), data)
	assert.Equal(t, "6A0001-2026.docx", got.FileName)
	assert.Equal(t, "acidentes", got.App)
}

func TestGetChecksOwnership(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	art, err := svc.Save(ctx, "owner", "ocorrencias", "t", "t.docx", models.MimeDocx, []byte("x"))
	require.NoError(t, err)
	_, err = svc.Get(ctx, "intruder", art.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, "owner", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredArtifactsAreHiddenAndCleaned(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	art, err := svc.Save(ctx, "sess", "acidentes", "t", "t.docx", models.MimeDocx, []byte("x"))
	require.NoError(t, err)
	keep, err := svc.Save(ctx, "other", "acidentes", "t", "t.docx", models.MimeDocx, []byte("y"))
	require.NoError(t, err)

	// only the first is old enough
	_, err = svc.db.Exec(`UPDATE artifacts SET expires_at = ? WHERE id = ?`, time.Now().UTC().Add(-time.Second), art.ID)
	require.NoError(t, err)

	_, err = svc.Get(ctx, "sess", art.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, statErr := os.Stat(art.StoredPath)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Dir(art.StoredPath))
	assert.True(t, os.IsNotExist(statErr), "empty session directory pruned")

	_, _, err = svc.Read(ctx, "other", keep.ID)
	assert.NoError(t, err)
}

func TestDeleteSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	art, err := svc.Save(ctx, "sess", "acidentes", "t", "t.pdf", models.MimePDF, []byte("%PDF"))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteSession(ctx, "sess"))

	_, err = svc.Get(ctx, "sess", art.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, statErr := os.Stat(art.StoredPath)
	assert.True(t, os.IsNotExist(statErr))
}
