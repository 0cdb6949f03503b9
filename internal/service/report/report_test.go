package report

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"reportforms/internal/compose"
	"reportforms/internal/config"
	"reportforms/internal/docx/docxtest"
	"reportforms/internal/fieldstore"
	"reportforms/internal/forms"
	"reportforms/internal/models"
	"reportforms/internal/service/artifact"
	"reportforms/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticTemplates struct{ data []byte }

func (s staticTemplates) Load(context.Context, string) ([]byte, error) { return s.data, nil }

type fakeConverter struct {
	mu        sync.Mutex
	block     bool
	started   chan struct{}
	cancelled []string
}

func (f *fakeConverter) Convert(ctx context.Context, _ string, input []byte) ([]byte, error) {
	if f.block {
		close(f.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return append([]byte("%PDF-"), input[:2]...), nil
}

func (f *fakeConverter) CancelSession(key string) {
	f.mu.Lock()
	f.cancelled = append(f.cancelled, key)
	f.mu.Unlock()
}

type testEnv struct {
	svc     *Service
	backend *fieldstore.MemoryBackend
	conv    *fakeConverter
	cfg     *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		BasicConfig: config.BasicConfig{ConvertTimeout: 5},
		Mail: config.MailConfig{
			CC:        []string{"cc@example.com"},
			Groups:    map[string][]string{"cco": {"cco@example.com"}},
			Scenarios: map[string][]string{"sem-danos": {"cco"}},
		},
		Sheet: config.SheetConfig{ID: "sheet", GID: "7"},
	}
	tmpl := docxtest.BuildTemplate(t, docxtest.Paragraph("{nOc} - {date} - {victimName}")+
		docxtest.Paragraph("{#fotos}{%imagem}{/fotos}"))
	backend := fieldstore.NewMemoryBackend()
	conv := &fakeConverter{started: make(chan struct{})}
	svc := NewService(Deps{
		Config:    cfg,
		Backend:   backend,
		Composer:  compose.New(staticTemplates{data: tmpl}, cfg, zap.NewNop()),
		Artifacts: artifact.NewService(storagetest.Open(t), t.TempDir(), time.Minute, zap.NewNop()),
		Converter: conv,
		Logger:    zap.NewNop(),
	})
	return &testEnv{svc: svc, backend: backend, conv: conv, cfg: cfg}
}

func fillRequired(t *testing.T, svc *Service, token string) {
	t.Helper()
	values := map[string]string{
		"nOc": "6a1234", "ocorrencia": "colisão", "coletivo": "66123", "linha": "1234-5",
		"date": "2026-03-05", "time": "10:00", "logradouro": "rua a", "numero": "10",
		"bairro": "centro", "inicioFato": "relato", "desfecho": "fim", "driverName": "joão",
		"driverCpf": "000", "driverSituation": "ileso", "cco": "maria", "matricula": "123",
	}
	for id, v := range values {
		_, err := svc.SaveField(context.Background(), token, forms.Acidentes, id, v)
		require.NoError(t, err)
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestSaveFieldPersistsAndValidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.SaveField(ctx, "tok", forms.Acidentes, "nOc", " 6a12 ")
	require.NoError(t, err)
	assert.Equal(t, "6A12", res.Value)
	assert.False(t, res.Valid)
	assert.Equal(t, models.ValidityInvalid, res.Validity)

	res, err = env.svc.SaveField(ctx, "tok", forms.Acidentes, "nOc", "6a1234")
	require.NoError(t, err)
	assert.True(t, res.Valid)

	values, err := env.svc.Fields(ctx, "tok", forms.Acidentes)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"nOc": "6a1234"}, values)

	// other workstation sees nothing
	values, err = env.svc.Fields(ctx, "other", forms.Acidentes)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestSaveFieldStoresTypedText(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.SaveField(ctx, "tok", forms.Acidentes, "logradouro", "  rua a ")
	require.NoError(t, err)
	assert.Equal(t, "RUA A", res.Value)

	values, err := env.svc.Fields(ctx, "tok", forms.Acidentes)
	require.NoError(t, err)
	assert.Equal(t, "rua a", values["logradouro"])
}

func TestSaveFieldUnknownIsNoop(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.svc.SaveField(context.Background(), "tok", forms.Acidentes, "nope", "x")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, models.ValidityUnset, res.Validity)
	keys, err := env.backend.Keys(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = env.svc.SaveField(context.Background(), "tok", "unknown-app", "nOc", "x")
	assert.ErrorIs(t, err, ErrUnknownApp)
}

func TestSensitiveFieldsEncrypted(t *testing.T) {
	env := newTestEnv(t)
	c, err := fieldstore.NewCipher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	env.svc.cipher = c
	ctx := context.Background()

	_, err = env.svc.SaveField(ctx, "tok", forms.Acidentes, "driverCpf", "123.456.789-00")
	require.NoError(t, err)
	raw, ok, err := env.backend.Get(ctx, fieldstore.Namespace("tok", forms.Acidentes)+"driverCpf")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, raw, "123.456")

	values, err := env.svc.Fields(ctx, "tok", forms.Acidentes)
	require.NoError(t, err)
	assert.Equal(t, "123.456.789-00", values["driverCpf"])
}

func TestApplyScenarioClearsFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.SaveField(ctx, "tok", forms.Acidentes, "nOc", "6A0001")
	require.NoError(t, err)
	_, _, err = env.svc.AddAttachment("tok", forms.Acidentes, pngBytes(t, 4, 4))
	require.NoError(t, err)

	results, err := env.svc.ApplyScenario(ctx, "tok", forms.Acidentes, "avaria-coletivo")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	values, err := env.svc.Fields(ctx, "tok", forms.Acidentes)
	require.NoError(t, err)
	_, hasCase := values["nOc"]
	assert.False(t, hasCase, "scenario starts from a clean form")
	assert.Equal(t, "GARAGEM UNIÃO", values["logradouro"])
	thumbs, err := env.svc.Attachments("tok", forms.Acidentes)
	require.NoError(t, err)
	assert.Empty(t, thumbs)

	_, err = env.svc.ApplyScenario(ctx, "tok", forms.Acidentes, "missing")
	assert.ErrorIs(t, err, ErrUnknownScenario)
}

func TestGenerateDownloadAndClipboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fillRequired(t, env.svc, "tok")
	_, added, err := env.svc.AddAttachment("tok", forms.Acidentes, pngBytes(t, 1000, 400))
	require.NoError(t, err)
	require.True(t, added)

	_, _, err = env.svc.Clipboard(ctx, "tok", forms.Acidentes)
	assert.ErrorIs(t, err, ErrNothingToCopy)

	doc, err := env.svc.Generate(ctx, "tok", forms.Acidentes)
	require.NoError(t, err)
	assert.Equal(t, "6A1234/2026 - 05.03 - 1234-5 - 66123 - COLISÃO - RUA A", doc.Title)
	assert.Equal(t, "6A1234-2026 - 05.03 - 1234-5 - 66123 - COLISÃO - RUA A.docx", doc.Artifact.FileName)

	art, data, err := env.svc.Download(ctx, "tok", forms.Acidentes, doc.Artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Artifact.ID, art.ID)
	text, err := docxtest.Text(data)
	require.NoError(t, err)
	assert.Contains(t, text, "6A1234/2026 - 05/03/2026 - NÃO HOUVE")
	media, err := docxtest.ReadPart(data, "word/media/rf_image1.png")
	require.NoError(t, err)
	assert.NotEmpty(t, media)

	_, _, err = env.svc.Download(ctx, "other", forms.Acidentes, doc.Artifact.ID)
	assert.ErrorIs(t, err, artifact.ErrNotFound)
	_, _, err = env.svc.Download(ctx, "tok", forms.Ocorrencias, doc.Artifact.ID)
	assert.ErrorIs(t, err, artifact.ErrNotFound)

	clip, ctype, err := env.svc.Clipboard(ctx, "tok", forms.Acidentes)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(doc.Summary, "\t"), clip)
	assert.Contains(t, ctype, "text/plain")
}

func TestGenerateValidationError(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Generate(context.Background(), "tok", forms.Acidentes)
	var verr *compose.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "nOc", verr.Field)

	_, err = env.svc.Generate(context.Background(), "tok", forms.Alertas)
	assert.ErrorIs(t, err, compose.ErrNoTemplate)
}

func TestAlertClipboardIsSanitised(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.svc.SaveField(ctx, "tok", forms.Alertas, forms.EditorField,
		`<p class="ql-align-center">Alerta<script>alert(1)</script></p>`)
	require.NoError(t, err)

	html, ctype, err := env.svc.Clipboard(ctx, "tok", forms.Alertas)
	require.NoError(t, err)
	assert.Contains(t, ctype, "text/html")
	assert.Contains(t, html, "Alerta")
	assert.NotContains(t, html, "script")
}

func TestAttachmentsRequireGallery(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.svc.AddAttachment("tok", forms.Ocorrencias, pngBytes(t, 2, 2))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, added, err := env.svc.AddAttachment("tok", forms.Acidentes, pngBytes(t, 2, 2))
	require.NoError(t, err)
	assert.True(t, added)
	_, added, err = env.svc.AddAttachment("tok", forms.Acidentes, pngBytes(t, 2, 2))
	require.NoError(t, err)
	assert.False(t, added)
	require.NoError(t, env.svc.RemoveAttachment("tok", forms.Acidentes, 0))
	thumbs, err := env.svc.Attachments("tok", forms.Acidentes)
	require.NoError(t, err)
	assert.Empty(t, thumbs)
}

func TestConvertPDF(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fillRequired(t, env.svc, "tok")
	doc, err := env.svc.Generate(ctx, "tok", forms.Acidentes)
	require.NoError(t, err)

	name, pdf, err := env.svc.ConvertPDF(ctx, "tok", forms.Acidentes, doc.Artifact.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".pdf"))
	assert.Equal(t, "%PDF-PK", string(pdf))

	assert.ErrorIs(t, env.svc.CancelPDF("tok", doc.Artifact.ID), ErrNotConverting)
}

func TestCancelPDF(t *testing.T) {
	env := newTestEnv(t)
	env.conv.block = true
	ctx := context.Background()
	fillRequired(t, env.svc, "tok")
	doc, err := env.svc.Generate(ctx, "tok", forms.Acidentes)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, _, err := env.svc.ConvertPDF(ctx, "tok", forms.Acidentes, doc.Artifact.ID)
		errCh <- err
	}()
	<-env.conv.started
	require.NoError(t, env.svc.CancelPDF("tok", doc.Artifact.ID))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatalf("conversion not cancelled")
	}
}

func TestMailAndSheetLinks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fillRequired(t, env.svc, "tok")

	link, err := env.svc.MailURL(ctx, "tok", forms.Acidentes, "sem-danos")
	require.NoError(t, err)
	assert.Contains(t, link, "to=cco%40example.com")
	assert.Contains(t, link, "su=6A1234+-+05.03")

	_, err = env.svc.MailURL(ctx, "tok", forms.Acidentes, "nope")
	assert.ErrorIs(t, err, forms.ErrUnknownMailScenario)
	_, err = env.svc.MailURL(ctx, "tok", forms.Ocorrencias, "sem-danos")
	assert.ErrorIs(t, err, ErrUnsupported)

	sheet, err := env.svc.SheetURL(ctx, "tok", forms.Acidentes)
	require.NoError(t, err)
	assert.Contains(t, sheet, "range=B1236")
}

func TestPurgeSessionAndSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fillRequired(t, env.svc, "tok")
	_, err := env.svc.SaveField(ctx, "keep", forms.Ocorrencias, "nOc", "6C0001")
	require.NoError(t, err)
	doc, err := env.svc.Generate(ctx, "tok", forms.Acidentes)
	require.NoError(t, err)

	env.svc.Sweep(ctx, purgerFunc(func(context.Context, time.Time) ([]string, error) {
		return []string{"tok"}, nil
	}))

	values, err := env.svc.Fields(ctx, "tok", forms.Acidentes)
	require.NoError(t, err)
	assert.Empty(t, values)
	_, _, err = env.svc.Download(ctx, "tok", forms.Acidentes, doc.Artifact.ID)
	assert.ErrorIs(t, err, artifact.ErrNotFound)
	assert.Equal(t, []string{"tok"}, env.conv.cancelled)

	values, err = env.svc.Fields(ctx, "keep", forms.Ocorrencias)
	require.NoError(t, err)
	assert.Equal(t, "6C0001", values["nOc"])
}

type purgerFunc func(context.Context, time.Time) ([]string, error)

func (f purgerFunc) PurgeExpired(ctx context.Context, now time.Time) ([]string, error) {
	return f(ctx, now)
}
