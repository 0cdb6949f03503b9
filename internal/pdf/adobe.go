package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"reportforms/internal/config"
	"reportforms/internal/models"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL      = "https://pdf-services.adobe.io"
	defaultPollInterval = time.Second
	// refresh the access token a little before it expires
	tokenSlack = time.Minute
)

// AdobeClient converts documents with the Adobe PDF Services REST API.
type AdobeClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	pollInterval time.Duration
	http         *http.Client
	logger       *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

// NewAdobeClient builds a client from the pdf_services config section.
func NewAdobeClient(cfg config.PDFServicesConfig, httpClient *http.Client, logger *zap.Logger) *AdobeClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	poll := time.Duration(cfg.PollInterval) * time.Millisecond
	if poll <= 0 {
		poll = defaultPollInterval
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdobeClient{
		baseURL:      base,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		pollInterval: poll,
		http:         httpClient,
		logger:       logger,
		now:          time.Now,
	}
}

// Convert uploads the document, runs a createpdf job and downloads the result.
func (c *AdobeClient) Convert(ctx context.Context, docx []byte) ([]byte, error) {
	if len(docx) == 0 {
		return nil, ErrEmptyInput
	}
	var missing []string
	if c.clientID == "" {
		missing = append(missing, "ADOBE_CLIENT_ID")
	}
	if c.clientSecret == "" {
		missing = append(missing, "ADOBE_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Missing: missing}
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	assetID, err := c.upload(ctx, token, docx)
	if err != nil {
		return nil, err
	}
	location, err := c.createJob(ctx, token, assetID)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("pdf job created", zap.String("asset_id", assetID))
	downloadURI, err := c.poll(ctx, token, location)
	if err != nil {
		return nil, err
	}
	return c.download(ctx, downloadURI)
}

func (c *AdobeClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{"client_id": {c.clientID}, "client_secret": {c.clientSecret}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if _, err := c.doJSON(req, "token", &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &ConversionError{Status: http.StatusBadGateway, Message: "token request returned no access token"}
	}
	c.token = out.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(out.ExpiresIn)*time.Second - tokenSlack)
	return c.token, nil
}

func (c *AdobeClient) authorize(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-API-Key", c.clientID)
}

func (c *AdobeClient) upload(ctx context.Context, token string, docx []byte) (string, error) {
	body, _ := json.Marshal(map[string]string{"mediaType": models.MimeDocx})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/assets", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.authorize(req, token)
	req.Header.Set("Content-Type", "application/json")

	var asset struct {
		UploadURI string `json:"uploadUri"`
		AssetID   string `json:"assetID"`
	}
	if _, err := c.doJSON(req, "asset", &asset); err != nil {
		return "", err
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPut, asset.UploadURI, bytes.NewReader(docx))
	if err != nil {
		return "", err
	}
	put.Header.Set("Content-Type", models.MimeDocx)
	if _, err := c.doJSON(put, "upload", nil); err != nil {
		return "", err
	}
	return asset.AssetID, nil
}

func (c *AdobeClient) createJob(ctx context.Context, token, assetID string) (string, error) {
	body, _ := json.Marshal(map[string]string{"assetID": assetID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/operation/createpdf", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.authorize(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doJSON(req, "createpdf", nil)
	if err != nil {
		return "", err
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", &ConversionError{Status: http.StatusBadGateway, Message: "createpdf returned no job location"}
	}
	return location, nil
}

func (c *AdobeClient) poll(ctx context.Context, token, location string) (string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return "", err
		}
		c.authorize(req, token)

		var status struct {
			Status string `json:"status"`
			Asset  struct {
				DownloadURI string `json:"downloadUri"`
			} `json:"asset"`
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if _, err := c.doJSON(req, "status", &status); err != nil {
			return "", err
		}
		switch status.Status {
		case "done":
			return status.Asset.DownloadURI, nil
		case "failed":
			return "", &ConversionError{
				Status:  http.StatusBadGateway,
				Message: "pdf conversion failed",
				Details: strings.TrimSpace(status.Error.Code + " " + status.Error.Message),
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *AdobeClient) download(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download pdf: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &ConversionError{Status: resp.StatusCode, Message: "download failed", Details: snippet(data)}
	}
	return data, nil
}

// doJSON executes req and decodes a 2xx JSON body into out when out is set.
func (c *AdobeClient) doJSON(req *http.Request, step string, out any) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", step, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s response: %w", step, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &ConversionError{Status: resp.StatusCode, Message: step + " request failed", Details: snippet(data)}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", step, err)
		}
	}
	return resp, nil
}

func snippet(b []byte) string {
	const max = 512
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max]
	}
	return s
}
