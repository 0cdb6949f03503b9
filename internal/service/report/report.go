// Package report drives the form apps for each operator workstation: field
// autosave and validation, scenarios, the gallery, document generation and
// the outputs derived from it.
package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reportforms/internal/compose"
	"reportforms/internal/config"
	"reportforms/internal/fieldstore"
	"reportforms/internal/forms"
	"reportforms/internal/service/artifact"
	"reportforms/internal/session"

	"go.uber.org/zap"
)

var (
	ErrUnknownApp      = errors.New("unknown app")
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrUnsupported     = errors.New("operation not supported by this app")
	ErrNothingToCopy   = errors.New("nothing to copy yet")
	ErrPDFUnavailable  = errors.New("pdf conversion is not configured")
	ErrNotConverting   = errors.New("no conversion in progress")
)

const defaultConvertTimeout = 2 * time.Minute

// Converter runs conversions fairly per session.
type Converter interface {
	Convert(ctx context.Context, sessionKey string, input []byte) ([]byte, error)
	CancelSession(sessionKey string)
}

// SessionPurger removes expired form sessions.
type SessionPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) ([]string, error)
}

type Service struct {
	cfg       *config.Config
	backend   fieldstore.Backend
	cipher    *fieldstore.Cipher
	composer  *compose.Composer
	artifacts *artifact.Service
	states    *session.StateManager
	converter Converter
	logger    *zap.Logger
	timeout   time.Duration

	mu          sync.Mutex
	inflight    map[string]*conversion
	inflightSeq uint64
}

type Deps struct {
	Config    *config.Config
	Backend   fieldstore.Backend
	Cipher    *fieldstore.Cipher
	Composer  *compose.Composer
	Artifacts *artifact.Service
	States    *session.StateManager
	Converter Converter
	Logger    *zap.Logger
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := d.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	timeout := defaultConvertTimeout
	if cfg.BasicConfig.ConvertTimeout > 0 {
		timeout = time.Duration(cfg.BasicConfig.ConvertTimeout) * time.Second
	}
	states := d.States
	if states == nil {
		states = session.NewStateManager(nil, logger)
	}
	return &Service{
		cfg:       cfg,
		backend:   d.Backend,
		cipher:    d.Cipher,
		composer:  d.Composer,
		artifacts: d.Artifacts,
		states:    states,
		converter: d.Converter,
		logger:    logger,
		timeout:   timeout,
		inflight:  make(map[string]*conversion),
	}
}

// App resolves an app id.
func (s *Service) App(id string) (*forms.App, error) {
	app, ok := forms.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownApp, id)
	}
	return app, nil
}

func (s *Service) Apps() []*forms.App { return forms.All() }

func (s *Service) store(token string, app *forms.App) *fieldstore.Store {
	return fieldstore.New(s.backend, fieldstore.Namespace(token, app.ID),
		fieldstore.WithCipher(s.cipher, app.SensitiveFields()...))
}

// Fields restores every stored value of the app.
func (s *Service) Fields(ctx context.Context, token, appID string) (map[string]string, error) {
	app, err := s.App(appID)
	if err != nil {
		return nil, err
	}
	values, err := s.store(token, app).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	return values, nil
}

// SaveField persists the trimmed input and validates it. Upper-casing only
// shows in the result and at generation; the stored value is what the
// operator typed. Fields the app does not know are validated as unset and
// not stored.
func (s *Service) SaveField(ctx context.Context, token, appID, fieldID, value string) (forms.Result, error) {
	app, err := s.App(appID)
	if err != nil {
		return forms.Result{}, err
	}
	field, ok := app.Field(fieldID)
	if !ok {
		return app.Validate(fieldID, value), nil
	}
	stored, err := s.store(token, app).SetField(ctx, field.Kind, fieldID, value)
	if err != nil {
		return forms.Result{}, fmt.Errorf("save field %s: %w", fieldID, err)
	}
	res := app.Validate(fieldID, stored)
	res.Value = app.Prepare(fieldID, stored)
	return res, nil
}

// ValidateField runs the blur validation without persisting.
func (s *Service) ValidateField(appID, fieldID, value string) (forms.Result, error) {
	app, err := s.App(appID)
	if err != nil {
		return forms.Result{}, err
	}
	return app.Validate(fieldID, value), nil
}

// Clear wipes the app's fields, gallery and summary.
func (s *Service) Clear(ctx context.Context, token, appID string) error {
	app, err := s.App(appID)
	if err != nil {
		return err
	}
	if err := s.store(token, app).ClearAll(ctx); err != nil {
		return fmt.Errorf("clear fields: %w", err)
	}
	s.states.Reset(ctx, token, app.ID)
	return nil
}

func (s *Service) Scenarios(appID string) ([]forms.Scenario, error) {
	app, err := s.App(appID)
	if err != nil {
		return nil, err
	}
	return app.Scenarios(), nil
}

// ApplyScenario clears the form and sets every mapped field through the
// same path as a manual edit.
func (s *Service) ApplyScenario(ctx context.Context, token, appID, scenarioID string) ([]forms.Result, error) {
	app, err := s.App(appID)
	if err != nil {
		return nil, err
	}
	sc, ok := app.Scenario(scenarioID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, scenarioID)
	}
	if err := s.Clear(ctx, token, app.ID); err != nil {
		return nil, err
	}
	results := make([]forms.Result, 0, len(sc.Fields))
	for _, a := range sc.Fields {
		res, err := s.SaveField(ctx, token, app.ID, a.Field, a.Value)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	s.logger.Debug("scenario applied",
		zap.String("app", app.ID),
		zap.String("scenario", sc.ID),
		zap.Int("fields", len(results)),
	)
	return results, nil
}

// PurgeSession removes everything stored for a form session.
func (s *Service) PurgeSession(ctx context.Context, token string) error {
	var errs []error
	for _, app := range forms.All() {
		if err := s.store(token, app).ClearAll(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", app.ID, err))
		}
	}
	if s.artifacts != nil {
		if err := s.artifacts.DeleteSession(ctx, token); err != nil {
			errs = append(errs, err)
		}
	}
	if s.converter != nil {
		s.converter.CancelSession(token)
	}
	s.cancelSessionConversions(token)
	s.states.Drop(ctx, token)
	return errors.Join(errs...)
}
