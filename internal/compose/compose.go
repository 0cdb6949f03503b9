// Package compose turns stored field values into a finished Word document.
package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"reportforms/internal/config"
	"reportforms/internal/docx"
	"reportforms/internal/forms"
	"reportforms/internal/gallery"
	"reportforms/internal/models"

	"go.uber.org/zap"
)

var ErrNoTemplate = errors.New("app has no document template")

// ValidationError reports the first required field that is missing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// TemplateSource loads the template bytes of an app.
type TemplateSource interface {
	Load(ctx context.Context, app string) ([]byte, error)
}

// FileTemplates reads templates from the paths in the apps config section.
type FileTemplates struct {
	cfg *config.Config
}

func NewFileTemplates(cfg *config.Config) *FileTemplates {
	return &FileTemplates{cfg: cfg}
}

func (f *FileTemplates) Load(_ context.Context, app string) ([]byte, error) {
	path := f.cfg.App(app).TemplatePath
	if path == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoTemplate, app)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	return data, nil
}

// Result is a composed document with its derived metadata.
type Result struct {
	Draft    *models.Draft
	Document []byte
	Summary  []string
}

func (r *Result) Title() string { return r.Draft.Title }

// FileName returns the download name for the given extension (".docx").
func (r *Result) FileName(ext string) string { return FileName(r.Draft.Title, ext) }

// SummaryTSV joins the summary cells for pasting into a spreadsheet.
func (r *Result) SummaryTSV() string { return strings.Join(r.Summary, "\t") }

// FileName makes a title safe to use as a file name.
func FileName(title, ext string) string {
	return strings.ReplaceAll(title, "/", "-") + ext
}

type Composer struct {
	templates TemplateSource
	cfg       *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

func New(templates TemplateSource, cfg *config.Config, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{templates: templates, cfg: cfg, logger: logger, now: time.Now}
}

// BuildDraft normalises the values, enforces the required-field gate and
// applies defaults. No template is touched.
func (c *Composer) BuildDraft(app *forms.App, values map[string]string, images []models.Attachment) (*models.Draft, error) {
	prepared := make(map[string]string, len(app.Fields))
	for _, f := range app.Fields {
		if v, ok := values[f.ID]; ok {
			prepared[f.ID] = app.Prepare(f.ID, v)
		}
	}
	if req, ok := app.CheckRequired(prepared); !ok {
		return nil, &ValidationError{Field: req.Field, Message: req.Message}
	}
	for _, d := range app.Defaults {
		if strings.TrimSpace(prepared[d.Field]) == "" {
			prepared[d.Field] = d.Value
		}
	}

	rawDate := prepared["date"]
	year := forms.Year(c.cfg.App(app.ID).YearSuffix, rawDate, c.now())
	d := &models.Draft{
		App:         app.ID,
		Values:      prepared,
		DisplayDate: forms.DisplayDate(rawDate),
		ShortDate:   forms.ShortDate(rawDate),
		Year:        year,
		Images:      images,
	}
	if n := prepared["nOc"]; n != "" {
		d.CaseNumber = n + "/" + year
		prepared["nOc"] = d.CaseNumber
	}
	if _, ok := prepared["date"]; ok {
		prepared["date"] = d.DisplayDate
	}
	d.Title = app.Title(d)
	return d, nil
}

// Compose builds the draft and binds it into the app's template. The
// template is only loaded once the required-field gate has passed.
func (c *Composer) Compose(ctx context.Context, app *forms.App, values map[string]string, images []models.Attachment) (*Result, error) {
	if !app.HasTemplate {
		return nil, fmt.Errorf("%w: %s", ErrNoTemplate, app.ID)
	}
	d, err := c.BuildDraft(app, values, images)
	if err != nil {
		return nil, err
	}
	tmpl, err := c.templates.Load(ctx, app.ID)
	if err != nil {
		return nil, err
	}

	data := make(map[string]any, len(d.Values)+1)
	for k, v := range d.Values {
		data[k] = v
	}
	if app.HasGallery {
		fotos := make([]map[string]any, 0, len(images))
		for _, img := range images {
			w, h := gallery.ClampSize(img.Width, img.Height)
			fotos = append(fotos, map[string]any{"imagem": docx.Image{
				Data:   img.Data,
				Ext:    imageExt(img.MimeType),
				Width:  gallery.EMU(w),
				Height: gallery.EMU(h),
			}})
		}
		data["fotos"] = fotos
	}

	doc, err := docx.Render(tmpl, data)
	if err != nil {
		c.logger.Warn("template binding failed", zap.String("app", app.ID), zap.Error(err))
		return nil, err
	}
	c.logger.Debug("document composed",
		zap.String("app", app.ID),
		zap.String("title", d.Title),
		zap.Int("images", len(images)),
		zap.Int("bytes", len(doc)),
	)
	return &Result{Draft: d, Document: doc, Summary: app.SummaryRow(d)}, nil
}

func imageExt(mime string) string {
	_, ext, ok := strings.Cut(mime, "/")
	if !ok || ext == "" {
		return "png"
	}
	return ext
}
