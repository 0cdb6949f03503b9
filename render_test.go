package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reportforms/internal/docx/docxtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeRenderFixtures(t *testing.T, values map[string]string) (dir, valuesPath, templatePath string) {
	t.Helper()
	dir = t.TempDir()
	raw, err := json.Marshal(values)
	require.NoError(t, err)
	valuesPath = filepath.Join(dir, "values.json")
	require.NoError(t, os.WriteFile(valuesPath, raw, 0o644))
	templatePath = filepath.Join(dir, "template.docx")
	tmpl := docxtest.BuildTemplate(t, docxtest.Paragraph("{nOc}")+docxtest.Paragraph("{ocorrencia} em {date}"))
	require.NoError(t, os.WriteFile(templatePath, tmpl, 0o644))
	return dir, valuesPath, templatePath
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	renderOpts.images = nil
	renderOpts.pdfEndpoint = ""
	renderOpts.out = ""
	renderOpts.template = ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	logger = zap.NewNop()
	return out.String(), err
}

func TestRenderOcorrencia(t *testing.T) {
	t.Setenv(envConfig, "")
	dir, valuesPath, templatePath := writeRenderFixtures(t, map[string]string{
		"nOc": "6c0042", "date": "2025-12-24", "ocorrencia": "queda de passageiro",
		"inicio": "08:00", "logradouro": "rua b", "numero": "5", "bairro": "centro",
		"inicioFato": "relato", "cco": "maria",
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(append([]byte("%PDF "), body[:2]...))
	}))
	defer srv.Close()

	out, err := runRoot(t, "render", "--app", "ocorrencias", "--values", valuesPath,
		"--template", templatePath, "--out", dir, "--pdf-endpoint", srv.URL)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.True(t, strings.HasPrefix(lines[0], "6C0042/2025"))

	doc, err := os.ReadFile(lines[1])
	require.NoError(t, err)
	text, err := docxtest.Text(doc)
	require.NoError(t, err)
	assert.Contains(t, text, "QUEDA DE PASSAGEIRO em 24/12/2025")

	pdfPath := lines[len(lines)-1]
	assert.Equal(t, ".pdf", filepath.Ext(pdfPath))
	pdfBytes, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF PK", string(pdfBytes))
}

func TestRenderReportsMissingField(t *testing.T) {
	t.Setenv(envConfig, "")
	_, valuesPath, templatePath := writeRenderFixtures(t, map[string]string{"nOc": "6A0001"})
	_, err := runRoot(t, "render", "--app", "acidentes", "--values", valuesPath, "--template", templatePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(ocorrencia)")
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "x/out.docx", outputPath("x/out.docx", "t.docx"))
	assert.Equal(t, filepath.Join(".", "t.docx"), outputPath("", "t.docx"))
	assert.Equal(t, filepath.Join("dir", "t.docx"), outputPath("dir", "t.docx"))
}
