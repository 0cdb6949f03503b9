package session

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"reportforms/internal/models"
)

var (
	ErrTokenRequired = errors.New("form session required")
	ErrInvalidToken  = errors.New("invalid form session")
	ErrTokenExpired  = errors.New("form session expired")
)

// Service issues, validates, and revokes form sessions. A form session stands
// for one operator workstation and scopes every stored field under it.
type Service struct {
	db             *sql.DB
	ttl            time.Duration
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string
}

func NewService(db *sql.DB, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Service{
		db:             db,
		ttl:            ttl,
		cookieName:     "form_session",
		headerName:     "X-Form-Session",
		csrfCookieName: "form_csrf",
		csrfHeaderName: "X-Form-CSRF",
	}
}

// Issue mints a new random session token and persists it.
func (s *Service) Issue(ctx context.Context) (*models.FormSession, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)
	var lastErr error
	for i := 0; i < 5; i++ {
		token, err := generateToken()
		if err != nil {
			return nil, err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO form_sessions (token, created_at, expires_at) VALUES (?, ?, ?)`,
			token, now, expiresAt,
		)
		if err == nil {
			return &models.FormSession{Token: token, CreatedAt: now, ExpiresAt: expiresAt}, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("issue form session: %w", lastErr)
}

// Validate checks the token exists and has not expired.
func (s *Service) Validate(ctx context.Context, token string) error {
	if token == "" {
		return ErrTokenRequired
	}
	var expires time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at FROM form_sessions WHERE token = ?`, token,
	).Scan(&expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup form session: %w", err)
	}
	if time.Now().UTC().After(expires) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM form_sessions WHERE token = ?`, token)
		return ErrTokenExpired
	}
	return nil
}

func (s *Service) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM form_sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("revoke form session: %w", err)
	}
	return nil
}

// PurgeExpired deletes sessions past their expiry and returns their tokens.
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT token FROM form_sessions WHERE expires_at <= ?`, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		tokens = append(tokens, token)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}
	for _, token := range tokens {
		if err := s.Revoke(ctx, token); err != nil {
			return nil, err
		}
	}
	return tokens, nil
}

func (s *Service) NewCSRFToken() (string, error) {
	return generateToken()
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *Service) CookieName() string     { return s.cookieName }
func (s *Service) HeaderName() string     { return s.headerName }
func (s *Service) CSRFCookieName() string { return s.csrfCookieName }
func (s *Service) CSRFHeaderName() string { return s.csrfHeaderName }
func (s *Service) TTL() time.Duration     { return s.ttl }
