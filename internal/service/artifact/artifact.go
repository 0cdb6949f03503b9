package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"reportforms/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultTTL = 30 * time.Minute

var ErrNotFound = errors.New("document not found or expired")

// Service keeps generated documents on disk until they expire. The format
// choice (Word or PDF) arrives as a second request, so the bytes must outlive
// the compose call.
type Service struct {
	db     *sql.DB
	dir    string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewService(db *sql.DB, dir string, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "reportforms")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, dir: dir, ttl: ttl, logger: logger, now: time.Now}
}

// Save writes the document under <dir>/<session>/<id><ext> and records it.
func (s *Service) Save(ctx context.Context, session, app, title, fileName, mimeType string, data []byte) (*models.Artifact, error) {
	if session == "" {
		return nil, errors.New("session required")
	}
	id := uuid.NewString()
	destDir := filepath.Join(s.dir, session)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	destPath := filepath.Join(destDir, id+filepath.Ext(fileName))
	if err := os.WriteFile(destPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}

	now := s.now().UTC()
	art := &models.Artifact{
		ID:         id,
		SessionID:  session,
		App:        app,
		Title:      title,
		FileName:   fileName,
		StoredPath: destPath,
		MimeType:   mimeType,
		Size:       int64(len(data)),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, session_token, app, title, file_name, stored_path, mime_type, size, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		art.ID, art.SessionID, art.App, art.Title, art.FileName, art.StoredPath, art.MimeType, art.Size, art.CreatedAt, art.ExpiresAt,
	)
	if err != nil {
		_ = os.Remove(destPath)
		return nil, fmt.Errorf("record artifact: %w", err)
	}
	return art, nil
}

// Get returns the artifact when it belongs to the session and has not expired.
func (s *Service) Get(ctx context.Context, session, id string) (*models.Artifact, error) {
	var art models.Artifact
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_token, app, title, file_name, stored_path, mime_type, size, created_at, expires_at
		 FROM artifacts WHERE id = ? AND session_token = ?`, id, session,
	).Scan(&art.ID, &art.SessionID, &art.App, &art.Title, &art.FileName, &art.StoredPath,
		&art.MimeType, &art.Size, &art.CreatedAt, &art.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query artifact: %w", err)
	}
	if !s.now().UTC().Before(art.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &art, nil
}

// Read returns the artifact and its bytes.
func (s *Service) Read(ctx context.Context, session, id string) (*models.Artifact, []byte, error) {
	art, err := s.Get(ctx, session, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(art.StoredPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("read artifact: %w", err)
	}
	return art, data, nil
}

// DeleteSession removes every artifact of the session.
func (s *Service) DeleteSession(ctx context.Context, session string) error {
	if session == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE session_token = ?`, session); err != nil {
		return fmt.Errorf("delete session artifacts: %w", err)
	}
	if err := os.RemoveAll(filepath.Join(s.dir, session)); err != nil {
		return fmt.Errorf("remove session artifacts: %w", err)
	}
	return nil
}

// CleanupExpired deletes expired artifacts and returns how many were removed.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stored_path FROM artifacts WHERE expires_at <= ?`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("query expired artifacts: %w", err)
	}

	type fileRow struct {
		id   string
		path string
	}
	var files []fileRow
	for rows.Next() {
		var fr fileRow
		if err := rows.Scan(&fr.id, &fr.path); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan expired artifact: %w", err)
		}
		files = append(files, fr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate expired artifacts: %w", err)
	}

	removed := 0
	for _, f := range files {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("remove artifact failed", zap.String("path", f.path), zap.Error(err))
			continue
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, f.id); err != nil {
			s.logger.Warn("delete artifact record failed", zap.String("id", f.id), zap.Error(err))
			continue
		}
		removed++

		// prune empty directories
		_ = os.Remove(filepath.Dir(f.path))
	}
	return removed, nil
}

func (s *Service) TTL() time.Duration { return s.ttl }
