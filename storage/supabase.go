package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseConfig configures the Supabase Storage client.
type SupabaseConfig struct {
	URL        string
	ServiceKey string
	Bucket     string
	HTTPClient *http.Client
}

// SupabaseStore talks to the Supabase Storage REST API with the service key.
type SupabaseStore struct {
	baseURL    string
	storageURL string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

func NewSupabaseStore(cfg SupabaseConfig) (*SupabaseStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	base := strings.TrimRight(cfg.URL, "/")
	return &SupabaseStore{
		baseURL:    base,
		storageURL: base + "/storage/v1",
		serviceKey: cfg.ServiceKey,
		bucket:     cfg.Bucket,
		httpClient: httpClient,
	}, nil
}

func (s *SupabaseStore) Bucket() string {
	return s.bucket
}

func (s *SupabaseStore) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	cleaned, err := CleanObjectPath(objectPath)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	urlStr := fmt.Sprintf("%s/object/%s/%s", s.storageURL, escapePath(s.bucket), escapePath(cleaned))
	headers := map[string]string{
		"Content-Type": contentType,
		"x-upsert":     "true",
	}

	respBody, statusCode, err := s.request(ctx, http.MethodPost, urlStr, data, headers)
	if err != nil {
		return err
	}
	if statusCode >= 400 {
		return parseError(respBody, statusCode)
	}
	return nil
}

func (s *SupabaseStore) PublicURL(objectPath string) string {
	return BuildPublicURL(s.baseURL, s.bucket, objectPath)
}

func (s *SupabaseStore) Download(ctx context.Context, objectPath string) ([]byte, error) {
	cleaned, err := CleanObjectPath(objectPath)
	if err != nil {
		return nil, err
	}
	urlStr := fmt.Sprintf("%s/object/%s/%s", s.storageURL, escapePath(s.bucket), escapePath(cleaned))

	respBody, statusCode, err := s.request(ctx, http.MethodGet, urlStr, nil, nil)
	if err != nil {
		return nil, err
	}
	if statusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", objectPath, ErrObjectNotFound)
	}
	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}
	return respBody, nil
}

func (s *SupabaseStore) request(ctx context.Context, method, urlStr string, body []byte, headers map[string]string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// APIError is an error response from Supabase Storage.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("storage error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("storage error %d: %s", e.StatusCode, e.Code)
}

func parseError(body []byte, statusCode int) error {
	apiErr := &APIError{StatusCode: statusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || (apiErr.Message == "" && apiErr.Code == "") {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
