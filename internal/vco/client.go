package vco

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"vcprobe/internal/config"

	"go.uber.org/zap"
)

// sessionCookie is the cookie the Orchestrator sets on successful login.
const sessionCookie = "velocloud.session"

// tokenExpiredCode is the JSON-RPC error code the Orchestrator returns
// when the session token has expired.
const tokenExpiredCode = -32000

// Client represents the VeloCloud Orchestrator API client
type Client struct {
	config     *config.VCOConfig
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
	loggedIn   bool
}

// Enterprise is one tenant returned by the enterprise discovery calls
type Enterprise struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Interval is the time window of a metrics query, in epoch milliseconds
type Interval struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// apiError is the error envelope the Orchestrator wraps failures in
type apiError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient creates a new Orchestrator API client
func NewClient(cfg *config.VCOConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("vco config cannot be nil")
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Insecure,
		},
	}

	if cfg.Proxy.URL != "" {
		proxyURL, err := url.Parse(cfg.Proxy.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		if cfg.Proxy.Username != "" && cfg.Proxy.Password != "" {
			auth := base64.StdEncoding.EncodeToString(
				[]byte(cfg.Proxy.Username + ":" + cfg.Proxy.Password))
			transport.ProxyConnectHeader = http.Header{
				"Proxy-Authorization": []string{"Basic " + auth},
			}
		}
	}

	// The session cookie lives in the jar; every authenticated call
	// carries it from here.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	httpClient := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   time.Duration(cfg.Timeout) * time.Second,
	}

	// Host may carry a scheme already (useful against test servers)
	baseURL := cfg.Host
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/") + "/portal/rest"

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger,
	}, nil
}

// Login authenticates against the Orchestrator and establishes the
// session cookie. Operator credentials go to /login/operatorLogin,
// enterprise credentials to /login/enterpriseLogin.
func (c *Client) Login(ctx context.Context) error {
	loginPath := "/login/enterpriseLogin"
	if c.config.Operator {
		loginPath = "/login/operatorLogin"
	}

	loginData := map[string]string{
		"username": c.config.Username,
		"password": c.config.Password,
	}

	jsonData, err := json.Marshal(loginData)
	if err != nil {
		return fmt.Errorf("failed to marshal login data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+loginPath, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("login failed with status %d: %s", resp.StatusCode, string(body))
	}

	// The Orchestrator answers 200 even to bad credentials; the session
	// cookie is the actual success signal.
	if !hasSessionCookie(resp.Cookies()) {
		return fmt.Errorf("login response did not set %s cookie (invalid credentials?)", sessionCookie)
	}

	c.loggedIn = true
	c.logger.Info("Authentication successful", zap.String("endpoint", loginPath))

	return nil
}

// Logout invalidates the session, best effort. Errors are logged and
// swallowed.
func (c *Client) Logout(ctx context.Context) {
	if !c.loggedIn {
		return
	}
	c.loggedIn = false

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/logout", nil)
	if err != nil {
		c.logger.Warn("Failed to create logout request", zap.Error(err))
		return
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Logout request failed", zap.Error(err))
		return
	}
	resp.Body.Close()

	c.logger.Info("Logged out", zap.Int("status", resp.StatusCode))
}

// GetAggregateEdgeLinkMetrics queries aggregate edge link metrics for
// one enterprise over the given window and returns the raw response
// body for shape inspection by the caller.
func (c *Client) GetAggregateEdgeLinkMetrics(ctx context.Context, enterpriseID int, interval Interval, metrics []string) (json.RawMessage, error) {
	body := map[string]interface{}{
		"enterpriseId": enterpriseID,
		"interval":     interval,
	}
	if len(metrics) > 0 {
		body["metrics"] = metrics
	}
	return c.post(ctx, "/monitoring/getAggregateEdgeLinkMetrics", body)
}

// GetNetworkEnterprises lists the enterprises visible to an operator
// session.
func (c *Client) GetNetworkEnterprises(ctx context.Context) ([]Enterprise, error) {
	return c.listEnterprises(ctx, "/network/getNetworkEnterprises")
}

// GetEnterpriseProxyEnterprises lists the enterprises managed by a
// partner (MSP) session.
func (c *Client) GetEnterpriseProxyEnterprises(ctx context.Context) ([]Enterprise, error) {
	return c.listEnterprises(ctx, "/enterpriseProxy/getEnterpriseProxyEnterprises")
}

func (c *Client) listEnterprises(ctx context.Context, endpoint string) ([]Enterprise, error) {
	data, err := c.post(ctx, endpoint, map[string]interface{}{"with": []string{}})
	if err != nil {
		return nil, err
	}

	var enterprises []Enterprise
	if err := json.Unmarshal(data, &enterprises); err != nil {
		if msg, ok := APIErrorMessage(data); ok {
			return nil, fmt.Errorf("%s failed: %s", endpoint, msg)
		}
		return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}

	return enterprises, nil
}

// post performs an authenticated POST. An expired session triggers one
// re-login and one replay; a second expiry is terminal.
func (c *Client) post(ctx context.Context, endpoint string, body interface{}) (json.RawMessage, error) {
	if !c.loggedIn {
		return nil, fmt.Errorf("not authenticated")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	data, expired, err := c.doPost(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}
	if !expired {
		return data, nil
	}

	c.logger.Warn("Session token expired, reauthenticating", zap.String("endpoint", endpoint))
	c.loggedIn = false
	if err := c.Login(ctx); err != nil {
		return nil, fmt.Errorf("reauthentication failed: %w", err)
	}

	data, expired, err = c.doPost(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, fmt.Errorf("session expired again after reauthentication")
	}

	return data, nil
}

func (c *Client) doPost(ctx context.Context, endpoint string, payload []byte) (data []byte, expired bool, err error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response body: %w", err)
	}

	if sessionExpired(resp.StatusCode, data) {
		return data, true, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(data))
	}

	return data, false, nil
}

// sessionExpired reports whether a response signals an expired session
// token. The Orchestrator uses either a 401/403 status or a 200 whose
// body carries the JSON-RPC token error.
func sessionExpired(status int, body []byte) bool {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return true
	}
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil || e.Error == nil {
		return false
	}
	return e.Error.Code == tokenExpiredCode || strings.Contains(e.Error.Message, "tokenError")
}

// APIErrorMessage extracts the message from an Orchestrator error
// envelope, if the body is one.
func APIErrorMessage(body []byte) (string, bool) {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil || e.Error == nil {
		return "", false
	}
	return e.Error.Message, true
}

func hasSessionCookie(cookies []*http.Cookie) bool {
	for _, ck := range cookies {
		if ck.Name == sessionCookie && ck.Value != "" {
			return true
		}
	}
	return false
}
