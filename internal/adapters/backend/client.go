package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mikey/mailview/internal/core"
	"go.uber.org/zap"
)

// maxResponseBytes bounds how much of a backend response is read
const maxResponseBytes = 64 << 20

// StatusError is returned for non-2xx backend responses
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// ClientConfig holds configuration for the backend client
type ClientConfig struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	DefaultFolder string
}

// Client fetches emails from the webmail REST backend
type Client struct {
	baseURL       *url.URL
	token         string
	defaultFolder string
	httpClient    *http.Client
	logger        *zap.Logger
}

// NewClient creates a new backend client
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend base URL %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.DefaultFolder == "" {
		cfg.DefaultFolder = "all"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:       base,
		token:         cfg.Token,
		defaultFolder: cfg.DefaultFolder,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}, nil
}

// ListEmails returns the emails in folder. "all" lists every folder.
func (c *Client) ListEmails(ctx context.Context, folder string) (*core.EmailList, error) {
	if folder == "" {
		folder = c.defaultFolder
	}

	var body emailListResponse
	if err := c.do(ctx, http.MethodGet, "/api/emails", url.Values{"folder": {folder}}, &body); err != nil {
		return nil, err
	}

	list := &core.EmailList{
		Emails:       make([]*core.Email, 0, len(body.Emails)),
		FolderCounts: body.FolderCounts,
	}
	for i := range body.Emails {
		list.Emails = append(list.Emails, body.Emails[i].toEmail())
	}

	c.logger.Debug("Listed emails from backend",
		zap.String("folder", folder),
		zap.Int("count", len(list.Emails)))
	return list, nil
}

// GetEmail finds one email by ID. The backend has no single-email endpoint,
// so the folder listing is searched.
func (c *Client) GetEmail(ctx context.Context, id string, folder string) (*core.Email, error) {
	list, err := c.ListEmails(ctx, folder)
	if err != nil {
		return nil, err
	}
	for _, email := range list.Emails {
		if email.ID == id {
			return email, nil
		}
	}
	return nil, core.ErrEmailNotFound
}

// MarkRead flags an email as read. A 404 means the backend has no such email.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodPut, "/api/emails/"+url.PathEscape(id)+"/read", nil, nil)
	if hasStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %w", core.ErrEmailNotFound, err)
	}
	return err
}

// HealthCheck checks if the backend is available
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, nil); err != nil {
		return fmt.Errorf("backend health check failed: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var detail errorResponse
		if json.Unmarshal(body, &detail) == nil {
			statusErr.Detail = detail.Detail
		}
		c.logger.Warn("Backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// IsUnauthorized reports whether err is a 401 or 403 from the backend
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized) || hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
