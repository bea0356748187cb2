package builtin

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patterncore/pattern/tool"
)

// WebRequestInput defines the parameters for making HTTP requests.
type WebRequestInput struct {
	URL     string            `json:"url" jsonschema:"required,description=The URL to request"`
	Method  string            `json:"method,omitempty" jsonschema:"description=HTTP method,default=GET,enum=GET|POST|PUT|DELETE|PATCH|HEAD|OPTIONS"`
	Headers map[string]string `json:"headers,omitempty" jsonschema:"description=HTTP headers as key-value pairs"`
	Body    string            `json:"body,omitempty" jsonschema:"description=Request body (for POST PUT PATCH)"`
}

// WebRequestConfig bounds what web_request is allowed to reach.
type WebRequestConfig struct {
	Timeout         time.Duration
	MaxRequestSize  int64
	MaxResponseSize int64
	AllowedDomains  []string
	DeniedDomains   []string
	AllowedMethods  []string
	AllowRedirects  bool
	MaxRedirects    int
	UserAgent       string
}

func defaultWebRequestConfig() *WebRequestConfig {
	return &WebRequestConfig{
		Timeout:         30 * time.Second,
		MaxRequestSize:  1048576,
		MaxResponseSize: 10485760,
		AllowRedirects:  true,
		MaxRedirects:    10,
		UserAgent:       "pattern/1.0",
	}
}

// NewWebRequest builds the web_request tool: outbound HTTP access for an
// agent, bounded by domain, method, and size policy.
func NewWebRequest(cfg *WebRequestConfig) (tool.Tool, error) {
	if cfg == nil {
		cfg = defaultWebRequestConfig()
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !cfg.AllowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		},
	}

	return tool.New[WebRequestInput](tool.Config{
		Name:        "web_request",
		Description: "Make HTTP requests to external APIs and web services. Supports all HTTP methods, custom headers, and request bodies.",
		Rule:        tool.UsageContinues,
	}, func(_ tool.Context, in WebRequestInput) (map[string]any, error) {
		if err := validateWebRequest(cfg, in); err != nil {
			return nil, err
		}
		return webRequestCall(cfg, client, in)
	})
}

func validateWebRequest(cfg *WebRequestConfig, in WebRequestInput) error {
	parsedURL, err := url.Parse(in.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if err := validateDomain(cfg, parsedURL.Host); err != nil {
		return err
	}

	method := "GET"
	if in.Method != "" {
		method = strings.ToUpper(in.Method)
	}
	if err := validateMethod(cfg, method); err != nil {
		return err
	}

	if int64(len(in.Body)) > cfg.MaxRequestSize {
		return fmt.Errorf("request body too large: %d bytes (max: %d)", len(in.Body), cfg.MaxRequestSize)
	}
	return nil
}

func webRequestCall(cfg *WebRequestConfig, client *http.Client, in WebRequestInput) (map[string]any, error) {
	method := "GET"
	if in.Method != "" {
		method = strings.ToUpper(in.Method)
	}

	var body io.Reader
	if in.Body != "" {
		body = bytes.NewReader([]byte(in.Body))
	}

	req, err := http.NewRequest(method, in.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	for k, v := range in.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, cfg.MaxResponseSize+1)
	respBody, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(respBody)) > cfg.MaxResponseSize {
		return nil, fmt.Errorf("response too large: exceeds %d bytes", cfg.MaxResponseSize)
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			respHeaders[k] = v[0]
		}
	}

	return map[string]any{
		"success":      resp.StatusCode >= 200 && resp.StatusCode < 300,
		"content":      string(respBody),
		"url":          in.URL,
		"method":       method,
		"status_code":  resp.StatusCode,
		"status":       resp.Status,
		"headers":      respHeaders,
		"content_type": resp.Header.Get("Content-Type"),
		"size":         len(respBody),
	}, nil
}

func validateDomain(cfg *WebRequestConfig, host string) error {
	if len(cfg.AllowedDomains) == 0 && len(cfg.DeniedDomains) == 0 {
		return nil
	}
	for _, denied := range cfg.DeniedDomains {
		if matchesDomain(host, denied) {
			return fmt.Errorf("domain not allowed: %s (matches deny rule: %s)", host, denied)
		}
	}
	if len(cfg.AllowedDomains) > 0 {
		for _, allowed := range cfg.AllowedDomains {
			if matchesDomain(host, allowed) {
				return nil
			}
		}
		return fmt.Errorf("domain not allowed: %s (not in allowed list)", host)
	}
	return nil
}

func validateMethod(cfg *WebRequestConfig, method string) error {
	if len(cfg.AllowedMethods) == 0 {
		return nil
	}
	for _, allowed := range cfg.AllowedMethods {
		if strings.EqualFold(method, allowed) {
			return nil
		}
	}
	return fmt.Errorf("HTTP method not allowed: %s (allowed: %v)", method, cfg.AllowedMethods)
}

func matchesDomain(host, pattern string) bool {
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	if host == pattern {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(host, pattern[1:])
	}
	return false
}
