// Package fieldstore persists form field values under a per-origin, per-app
// namespace so a reload restores the operator's draft.
package fieldstore

import (
	"context"
	"fmt"
	"strings"

	"reportforms/internal/models"
)

// Store is a Backend view restricted to one namespace.
type Store struct {
	backend   Backend
	namespace string
	cipher    *Cipher
	sensitive map[string]bool
}

type Option func(*Store)

// WithCipher encrypts the named fields at rest. A nil cipher is ignored.
func WithCipher(c *Cipher, fields ...string) Option {
	return func(s *Store) {
		if c == nil {
			return
		}
		s.cipher = c
		for _, f := range fields {
			s.sensitive[f] = true
		}
	}
}

// Namespace builds the key prefix for an origin and app.
func Namespace(origin, app string) string {
	return origin + ":" + app + ":"
}

func New(backend Backend, namespace string, opts ...Option) *Store {
	s := &Store{backend: backend, namespace: namespace, sensitive: make(map[string]bool)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Namespace() string { return s.namespace }

// Get returns the stored value and whether it was present.
func (s *Store) Get(ctx context.Context, id string) (string, bool, error) {
	raw, ok, err := s.backend.Get(ctx, s.namespace+id)
	if err != nil || !ok {
		return "", ok, err
	}
	if s.cipher != nil && s.sensitive[id] {
		plain, err := s.cipher.Open(raw)
		if err != nil {
			return "", false, fmt.Errorf("open %s: %w", id, err)
		}
		return plain, true, nil
	}
	return raw, true, nil
}

func (s *Store) Set(ctx context.Context, id, value string) error {
	if s.cipher != nil && s.sensitive[id] && value != "" {
		sealed, err := s.cipher.Seal(value)
		if err != nil {
			return fmt.Errorf("seal %s: %w", id, err)
		}
		value = sealed
	}
	return s.backend.Set(ctx, s.namespace+id, value)
}

// SetField persists a field value normalised by kind: text is trimmed and
// booleans are stored as the literals "true" / "false".
func (s *Store) SetField(ctx context.Context, kind models.FieldKind, id, value string) (string, error) {
	value = Normalize(kind, value)
	if err := s.Set(ctx, id, value); err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) Remove(ctx context.Context, id string) error {
	return s.backend.Delete(ctx, s.namespace+id)
}

// ClearAll removes every key of this namespace and nothing else.
func (s *Store) ClearAll(ctx context.Context) error {
	keys, err := s.backend.Keys(ctx, s.namespace)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.backend.Delete(ctx, keys...)
}

// All returns every stored field of the namespace keyed by field id.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	keys, err := s.backend.Keys(ctx, s.namespace)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		id := strings.TrimPrefix(k, s.namespace)
		v, ok, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = v
		}
	}
	return out, nil
}

// Normalize applies the persistence rules for a field kind.
func Normalize(kind models.FieldKind, value string) string {
	switch kind {
	case models.KindBool:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "on", "yes":
			return "true"
		default:
			return "false"
		}
	case models.KindHTML:
		return value
	default:
		return strings.TrimSpace(value)
	}
}
