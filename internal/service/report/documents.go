package report

import (
	"context"
	"fmt"
	"strings"

	"reportforms/internal/compose"
	"reportforms/internal/forms"
	"reportforms/internal/gallery"
	"reportforms/internal/models"
	"reportforms/internal/service/artifact"

	"go.uber.org/zap"
)

// Document is the outcome of a generation.
type Document struct {
	Artifact *models.Artifact `json:"artifact"`
	Title    string           `json:"title"`
	Summary  []string         `json:"summary"`
	TSV      string           `json:"tsv"`
}

func (s *Service) galleryFor(token string, app *forms.App) (*gallery.Gallery, error) {
	if !app.HasGallery {
		return nil, fmt.Errorf("%w: %s has no gallery", ErrUnsupported, app.ID)
	}
	return s.states.Get(token, app.ID).Gallery(), nil
}

// AddAttachment ingests an image payload (raw bytes or data URL).
func (s *Service) AddAttachment(token, appID string, payload []byte) (models.Attachment, bool, error) {
	app, err := s.App(appID)
	if err != nil {
		return models.Attachment{}, false, err
	}
	g, err := s.galleryFor(token, app)
	if err != nil {
		return models.Attachment{}, false, err
	}
	return g.Ingest(payload)
}

func (s *Service) RemoveAttachment(token, appID string, index int) error {
	app, err := s.App(appID)
	if err != nil {
		return err
	}
	g, err := s.galleryFor(token, app)
	if err != nil {
		return err
	}
	return g.Remove(index)
}

func (s *Service) Attachments(token, appID string) ([]gallery.Thumbnail, error) {
	app, err := s.App(appID)
	if err != nil {
		return nil, err
	}
	g, err := s.galleryFor(token, app)
	if err != nil {
		return nil, err
	}
	return g.Render(), nil
}

// Generate composes the app's document from the stored fields and gallery
// and keeps it as an artifact for download.
func (s *Service) Generate(ctx context.Context, token, appID string) (*Document, error) {
	app, err := s.App(appID)
	if err != nil {
		return nil, err
	}
	if !app.HasTemplate {
		return nil, fmt.Errorf("%w: %s", compose.ErrNoTemplate, app.ID)
	}
	values, err := s.store(token, app).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	st := s.states.Get(token, app.ID)
	var images []models.Attachment
	if app.HasGallery {
		images = st.Gallery().Items()
	}

	res, err := s.composer.Compose(ctx, app, values, images)
	if err != nil {
		return nil, err
	}
	art, err := s.artifacts.Save(ctx, token, app.ID, res.Title(), res.FileName(".docx"), models.MimeDocx, res.Document)
	if err != nil {
		return nil, err
	}
	st.SetResult(art.ID, res.Summary)
	s.logger.Info("document generated",
		zap.String("app", app.ID),
		zap.String("title", res.Title()),
		zap.String("artifact", art.ID),
	)
	return &Document{
		Artifact: art,
		Title:    res.Title(),
		Summary:  res.Summary,
		TSV:      res.SummaryTSV(),
	}, nil
}

// Download returns a generated Word document.
func (s *Service) Download(ctx context.Context, token, appID, id string) (*models.Artifact, []byte, error) {
	if _, err := s.App(appID); err != nil {
		return nil, nil, err
	}
	art, data, err := s.artifacts.Read(ctx, token, id)
	if err != nil {
		return nil, nil, err
	}
	if art.App != appID {
		return nil, nil, artifact.ErrNotFound
	}
	return art, data, nil
}

// Clipboard returns the text the app copies: the summary row as tab-separated
// cells, or the sanitised alert HTML.
func (s *Service) Clipboard(ctx context.Context, token, appID string) (text, contentType string, err error) {
	app, err := s.App(appID)
	if err != nil {
		return "", "", err
	}
	if app.ID == forms.Alertas {
		html, _, err := s.store(token, app).Get(ctx, forms.EditorField)
		if err != nil {
			return "", "", fmt.Errorf("load alert: %w", err)
		}
		html = forms.SanitizeHTML(html)
		if strings.TrimSpace(html) == "" {
			return "", "", ErrNothingToCopy
		}
		return html, "text/html; charset=utf-8", nil
	}
	summary := s.states.Get(token, app.ID).Summary()
	if len(summary) == 0 {
		return "", "", ErrNothingToCopy
	}
	return strings.Join(summary, "\t"), "text/plain; charset=utf-8", nil
}

// MailURL builds the webmail compose link for a mail scenario.
func (s *Service) MailURL(ctx context.Context, token, appID, scenario string) (string, error) {
	app, err := s.App(appID)
	if err != nil {
		return "", err
	}
	if !app.HasMail {
		return "", fmt.Errorf("%w: %s has no e-mail draft", ErrUnsupported, app.ID)
	}
	values, err := s.store(token, app).All(ctx)
	if err != nil {
		return "", fmt.Errorf("load fields: %w", err)
	}
	return forms.MailComposeURL(s.cfg.Mail, scenario, values)
}

// SheetURL links to the spreadsheet row of the current case number.
func (s *Service) SheetURL(ctx context.Context, token, appID string) (string, error) {
	app, err := s.App(appID)
	if err != nil {
		return "", err
	}
	if !app.HasSheet {
		return "", fmt.Errorf("%w: %s has no spreadsheet", ErrUnsupported, app.ID)
	}
	nOc, _, err := s.store(token, app).Get(ctx, "nOc")
	if err != nil {
		return "", fmt.Errorf("load case number: %w", err)
	}
	return forms.SheetURL(s.cfg.Sheet, app.CasePrefix, forms.Upper(strings.TrimSpace(nOc)))
}
