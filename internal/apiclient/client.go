package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const (
	requestTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
	maxLoggedBody     = 500
)

var (
	// ErrNotConfigured short-circuits every operation when base URL or API
	// key is missing.
	ErrNotConfigured = errors.New("MLS API is not configured")
	// ErrUnavailable marks connection errors, timeouts and 5xx responses
	// that survived the retry loop.
	ErrUnavailable = errors.New("MLS API unavailable")
	// ErrClientError marks 4xx responses, which are never retried.
	ErrClientError = errors.New("MLS API rejected the request")
)

// Client wraps the external MLS REST API behind one base URL and API key.
// GET/POST/PUT/DELETE retry automatically on connection errors, timeouts
// and 5xx responses with exponential backoff; 4xx responses fail
// immediately.
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	baseDelay  time.Duration
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL, apiKey string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// SetRetryPolicy overrides the attempt cap and backoff base delay.
func (c *Client) SetRetryPolicy(maxRetries int, baseDelay time.Duration) {
	if maxRetries > 0 {
		c.maxRetries = maxRetries
	}
	if baseDelay > 0 {
		c.baseDelay = baseDelay
	}
}

// IsConfigured requires both a base URL and an API key.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

func (c *Client) buildURL(endpoint string) string {
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := c.buildURL(endpoint)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	return c.doWithRetry(ctx, http.MethodGet, reqURL, nil, "")
}

func (c *Client) Post(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return c.doWithRetry(ctx, http.MethodPost, c.buildURL(endpoint), body, "application/json")
}

func (c *Client) Put(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return c.doWithRetry(ctx, http.MethodPut, c.buildURL(endpoint), body, "application/json")
}

func (c *Client) Delete(ctx context.Context, endpoint string) ([]byte, error) {
	return c.doWithRetry(ctx, http.MethodDelete, c.buildURL(endpoint), nil, "")
}

// Upload sends a multipart request carrying one file field plus auxiliary
// form fields.
func (c *Client) Upload(ctx context.Context, endpoint, fileField, fileName string, fileData []byte, extra map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fileField, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(fileData); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	for key, value := range extra {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to build multipart body: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	return c.doWithRetry(ctx, http.MethodPost, c.buildURL(endpoint), buf.Bytes(), writer.FormDataContentType())
}

// doWithRetry performs up to maxRetries attempts with the base delay
// doubling between each. The request body is rebuilt from the buffered
// bytes on every attempt.
func (c *Client) doWithRetry(ctx context.Context, method, reqURL string, body []byte, contentType string) ([]byte, error) {
	if !c.IsConfigured() {
		c.logger.Warn("MLS API is not configured (api_url or api_key missing)")
		return nil, ErrNotConfigured
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		c.logger.WithFields(logrus.Fields{
			"method":  method,
			"url":     reqURL,
			"attempt": attempt,
			"max":     c.maxRetries,
		}).Info("API request")

		data, retryable, err := c.doOnce(ctx, method, reqURL, body, contentType)
		if err == nil {
			return data, nil
		}
		if !retryable {
			return nil, err
		}

		lastErr = err
		c.logger.WithError(err).WithFields(logrus.Fields{
			"method":  method,
			"url":     reqURL,
			"attempt": attempt,
			"max":     c.maxRetries,
		}).Warn("API request failed")

		if attempt < c.maxRetries {
			delay := c.baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	c.logger.WithError(lastErr).WithFields(logrus.Fields{
		"method": method,
		"url":    reqURL,
	}).Error("API request failed after all attempts")
	return nil, fmt.Errorf("%s %s failed after %d attempts: %w", method, reqURL, c.maxRetries, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, reqURL string, body []byte, contentType string) (data []byte, retryable bool, err error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		logged := respBody
		if len(logged) > maxLoggedBody {
			logged = logged[:maxLoggedBody]
		}
		c.logger.WithFields(logrus.Fields{
			"method": method,
			"url":    reqURL,
			"status": resp.StatusCode,
			"body":   string(logged),
		}).Error("API request rejected")
		return nil, false, fmt.Errorf("%w: status %d", ErrClientError, resp.StatusCode)
	}

	// Empty-body success is an empty object, not an error.
	if resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return []byte("{}"), false, nil
	}
	return respBody, false, nil
}
