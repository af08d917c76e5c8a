package pve

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort       = 8006
	DefaultTimeout    = 30 * time.Second
	DefaultAuthScheme = "PVEAPIToken"

	maxErrorBody = 8 << 10
)

type ClientConfig struct {
	Host        string
	Port        int
	Scheme      string // auth scheme, PVEAPIToken unless overridden
	TokenID     string
	TokenSecret string
	VerifyTLS   bool
	Timeout     time.Duration

	// BaseURL overrides Host/Port, mostly for tests.
	BaseURL string
}

// Client wraps the api2/json endpoints with API token auth. It is stateless
// per request apart from the shared *http.Client.
type Client struct {
	cfg        ClientConfig
	baseURL    string
	authHeader string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg ClientConfig, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.TokenID) == "" || strings.TrimSpace(cfg.TokenSecret) == "" {
		return nil, errors.New("pve: token_id and token_secret are required")
	}
	if cfg.Scheme == "" {
		cfg.Scheme = DefaultAuthScheme
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	raw := cfg.BaseURL
	if raw == "" {
		if strings.TrimSpace(cfg.Host) == "" {
			return nil, errors.New("pve: host is required")
		}
		raw = "https://" + net.JoinHostPort(strings.TrimSpace(cfg.Host), strconv.Itoa(cfg.Port))
	}
	baseURL, err := normalizeBaseURL(raw)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		cfg:        cfg,
		baseURL:    baseURL,
		authHeader: fmt.Sprintf("%s=%s=%s", cfg.Scheme, strings.TrimSpace(cfg.TokenID), strings.TrimSpace(cfg.TokenSecret)),
		logger:     logger,
	}

	if httpClient != nil {
		c.httpClient = httpClient
	} else {
		c.httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if !cfg.VerifyTLS {
		c.httpClient = cloneHTTPClientWithInsecureSkipVerify(c.httpClient, cfg.Timeout)
	}

	return c, nil
}

// BaseURL returns the normalized api2/json root.
func (c *Client) BaseURL() string { return c.baseURL }

// Close releases idle keep-alive connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, form url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, form)
}

func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// getInto decodes the data member into out and rejects a missing payload.
func (c *Client) getInto(ctx context.Context, path string, out interface{}) error {
	data, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		return &ParseError{Method: http.MethodGet, Path: path, Err: errors.New("response data is empty")}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ParseError{Method: http.MethodGet, Path: path, Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, joinBaseURL(c.baseURL, path), body)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("pve request failed", "method", method, "path", path, "error", err)
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer res.Body.Close()

	c.logger.Debug("pve request", "method", method, "path", path, "status", res.StatusCode, "took", time.Since(start))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &ProtocolError{
			Method:     method,
			Path:       path,
			StatusCode: res.StatusCode,
			Message:    errorMessage(b, res.Status),
		}
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, &TransportError{Method: method, Path: path, Err: err}
		}
		return nil, &ParseError{Method: method, Path: path, Err: err}
	}
	return env.Data, nil
}

// errorMessage pulls a readable message out of an error body when there is one.
func errorMessage(body []byte, status string) string {
	var payload struct {
		Message string            `json:"message"`
		Errors  map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		var parts []string
		if m := strings.TrimSpace(payload.Message); m != "" {
			parts = append(parts, m)
		}
		for field, msg := range payload.Errors {
			parts = append(parts, field+": "+strings.TrimSpace(msg))
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" && !strings.HasPrefix(msg, "{") {
		return msg
	}
	return status
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("pve: invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("pve: invalid base url %q (missing scheme/host)", raw)
	}
	u.Fragment = ""
	u.RawQuery = ""

	u.Path = strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(u.Path, "/api2/json") {
		u.Path = u.Path + "/api2/json"
	}
	return u.String(), nil
}

func joinBaseURL(base string, p string) string {
	base = strings.TrimRight(base, "/")
	p = "/" + strings.TrimLeft(p, "/")
	return base + p
}

func cloneHTTPClientWithInsecureSkipVerify(in *http.Client, timeout time.Duration) *http.Client {
	if in != nil && in.Timeout > 0 {
		timeout = in.Timeout
	}

	var transport *http.Transport
	if in != nil && in.Transport != nil {
		if t, ok := in.Transport.(*http.Transport); ok {
			transport = t.Clone()
		}
	}
	if transport == nil {
		if t, ok := http.DefaultTransport.(*http.Transport); ok {
			transport = t.Clone()
		} else {
			transport = &http.Transport{}
		}
	}
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	}
	transport.TLSClientConfig.InsecureSkipVerify = true

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
