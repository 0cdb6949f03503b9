package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reportforms/internal/compose"
	"reportforms/internal/config"
	"reportforms/internal/forms"
	"reportforms/internal/gallery"
	"reportforms/internal/pdf"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var renderOpts struct {
	app         string
	values      string
	template    string
	out         string
	images      []string
	pdfEndpoint string
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Compose a document offline from a JSON values file",
	Long: `Binds the values of a JSON object ({"nOc": "6A1234", ...}) into the app's
Word template and writes the document. With --pdf-endpoint the document is
also converted through a running convert-pdf bridge.`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

func init() {
	f := renderCmd.Flags()
	f.StringVar(&renderOpts.app, "app", forms.Acidentes, "app id")
	f.StringVar(&renderOpts.values, "values", "", "JSON file with field values")
	f.StringVar(&renderOpts.template, "template", "", "Word template (default: the app's configured template)")
	f.StringVarP(&renderOpts.out, "out", "o", "", "output directory or .docx path (default: current directory)")
	f.StringSliceVar(&renderOpts.images, "image", nil, "image to embed (repeatable)")
	f.StringVar(&renderOpts.pdfEndpoint, "pdf-endpoint", "", "convert-pdf bridge URL")
	_ = renderCmd.MarkFlagRequired("values")
}

type fileTemplate string

func (p fileTemplate) Load(context.Context, string) ([]byte, error) {
	data, err := os.ReadFile(string(p))
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	return data, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	app, ok := forms.Lookup(renderOpts.app)
	if !ok {
		return fmt.Errorf("unknown app %q", renderOpts.app)
	}

	cfg := &config.Config{}
	if resolveConfigPath() != "" {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
	}
	var templates compose.TemplateSource = compose.NewFileTemplates(cfg)
	if renderOpts.template != "" {
		templates = fileTemplate(renderOpts.template)
	}

	raw, err := os.ReadFile(renderOpts.values)
	if err != nil {
		return fmt.Errorf("read values: %w", err)
	}
	var values map[string]string
	if err := json.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("decode values: %w", err)
	}

	g := gallery.New()
	for _, path := range renderOpts.images {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		if _, _, err := g.Ingest(data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	ctx := cmd.Context()
	res, err := compose.New(templates, cfg, logger).Compose(ctx, app, values, g.Items())
	if err != nil {
		var verr *compose.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%s (%s)", verr.Message, verr.Field)
		}
		return err
	}

	docxPath := outputPath(renderOpts.out, res.FileName(".docx"))
	if err := os.WriteFile(docxPath, res.Document, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.Title())
	fmt.Fprintln(out, docxPath)
	if len(res.Summary) > 0 {
		fmt.Fprintln(out, res.SummaryTSV())
	}

	if renderOpts.pdfEndpoint == "" {
		return nil
	}
	bridge := pdf.NewBridge(renderOpts.pdfEndpoint, &http.Client{Timeout: 2 * time.Minute})
	pdfBytes, err := bridge.Convert(ctx, res.Document)
	if err != nil {
		return fmt.Errorf("convert pdf: %w", err)
	}
	pdfPath := strings.TrimSuffix(docxPath, filepath.Ext(docxPath)) + ".pdf"
	if err := os.WriteFile(pdfPath, pdfBytes, 0o644); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	logger.Info("pdf written", zap.String("path", pdfPath), zap.Int("bytes", len(pdfBytes)))
	fmt.Fprintln(out, pdfPath)
	return nil
}

// outputPath resolves --out: a .docx path is used as is, anything else is a
// directory for the generated file name.
func outputPath(out, name string) string {
	if strings.EqualFold(filepath.Ext(out), ".docx") {
		return out
	}
	if out == "" {
		out = "."
	}
	return filepath.Join(out, name)
}
