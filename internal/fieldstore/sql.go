package fieldstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLBackend persists fields in the form_fields table.
type SQLBackend struct {
	db     *sql.DB
	driver string
}

func NewSQLBackend(db *sql.DB, driver string) *SQLBackend {
	return &SQLBackend{db: db, driver: strings.ToLower(driver)}
}

func (b *SQLBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx, `SELECT value FROM form_fields WHERE field_key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get field: %w", err)
	}
	return value, true, nil
}

func (b *SQLBackend) Set(ctx context.Context, key, value string) error {
	stmt := `INSERT INTO form_fields (field_key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(field_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if b.driver == "mysql" {
		stmt = `INSERT INTO form_fields (field_key, value, updated_at) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`
	}
	if _, err := b.db.ExecContext(ctx, stmt, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set field: %w", err)
	}
	return nil
}

func (b *SQLBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	if _, err := b.db.ExecContext(ctx, `DELETE FROM form_fields WHERE field_key IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete fields: %w", err)
	}
	return nil
}

func (b *SQLBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT field_key FROM form_fields WHERE field_key LIKE ? ESCAPE '!' ORDER BY field_key`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan field key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// escapeLike uses '!' as escape character; a backslash would need different
// quoting in sqlite and mysql.
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
