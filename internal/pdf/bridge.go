package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"reportforms/internal/models"
)

// Bridge posts documents to a /api/convert-pdf endpoint.
type Bridge struct {
	endpoint string
	http     *http.Client
}

func NewBridge(endpoint string, httpClient *http.Client) *Bridge {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Bridge{endpoint: endpoint, http: httpClient}
}

func (b *Bridge) Convert(ctx context.Context, docx []byte) ([]byte, error) {
	if len(docx) == 0 {
		return nil, ErrEmptyInput
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(docx))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", models.MimeDocx)

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("convert request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read conversion response: %w", err)
	}
	if resp.StatusCode/100 == 2 {
		return data, nil
	}

	cerr := &ConversionError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		cerr.Message = body.Error
		cerr.Details = body.Details
	}
	return nil, cerr
}
