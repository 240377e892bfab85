// Package httpclient is the shared HTTP helper used by the admin and student
// API modules. It attaches the bearer token, encodes JSON, and maps failed
// responses to *Error values with a human readable message.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is used when Options.BaseURL is empty.
const DefaultBaseURL = "http://127.0.0.1:5000"

// Profile selects how responses are interpreted.
type Profile int

const (
	// ProfileDesktop treats the HTTP status as authoritative.
	ProfileDesktop Profile = iota
	// ProfileMiniProgram unwraps {code, data} envelopes before looking at
	// the HTTP status and prefixes every path with /api.
	ProfileMiniProgram
)

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

// Token implements TokenSource.
func (f TokenFunc) Token() string { return f() }

// Options configures a Client.
type Options struct {
	BaseURL string
	// BaseURLOverride is consulted on every call; a non-empty result wins
	// over BaseURL.
	BaseURLOverride func() string
	Timeout         time.Duration
	Tokens          TokenSource
	// OnUnauthorized runs when the server rejects the session.
	OnUnauthorized func(ctx context.Context)
	StatusMessages map[int]string
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Client performs JSON requests against one backend.
type Client struct {
	profile Profile
	prefix  string
	opts    Options
	http    *http.Client
	logger  *zap.Logger
}

// NewDesktop builds a client for the admin console.
func NewDesktop(opts Options) *Client {
	return newClient(ProfileDesktop, "", opts)
}

// NewMiniProgram builds a client for the student app. Calls time out after
// 15 seconds unless Options.Timeout says otherwise.
func NewMiniProgram(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return newClient(ProfileMiniProgram, "/api", opts)
}

func newClient(profile Profile, prefix string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.StatusMessages == nil {
		opts.StatusMessages = DefaultStatusMessages
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{profile: profile, prefix: prefix, opts: opts, http: httpClient, logger: opts.Logger}
}

// Profile reports the response handling profile.
func (c *Client) Profile() Profile { return c.profile }

// URL resolves path against the base URL. Absolute URLs are returned as is.
func (c *Client) URL(path string) string {
	if isAbsoluteURL(path) {
		return path
	}
	base := c.opts.BaseURL
	if c.opts.BaseURLOverride != nil {
		if override := strings.TrimRight(c.opts.BaseURLOverride(), "/"); override != "" {
			base = override
		}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + c.prefix + path
}

// Token returns the bearer token the client would send, or "".
func (c *Client) Token() string {
	if c.opts.Tokens == nil {
		return ""
	}
	return c.opts.Tokens.Token()
}

// CallOption tweaks a single call.
type CallOption func(*call)

type call struct {
	auth          bool
	headers       http.Header
	failureFormat string
}

// WithoutAuth suppresses the Authorization header.
func WithoutAuth() CallOption {
	return func(c *call) { c.auth = false }
}

// WithHeader adds a request header.
func WithHeader(key, value string) CallOption {
	return func(c *call) { c.headers.Set(key, value) }
}

// WithFailureFormat overrides the fallback message used when a failed
// response has no message. The format receives the status code.
func WithFailureFormat(format string) CallOption {
	return func(c *call) { c.failureFormat = format }
}

func newCall(opts []CallOption) *call {
	cl := &call{auth: true, headers: http.Header{}}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// Get issues a GET with query parameters.
func (c *Client) Get(ctx context.Context, path string, query Query, out interface{}, opts ...CallOption) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out, opts...)
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}, opts ...CallOption) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out, opts...)
}

// Put sends body as JSON.
func (c *Client) Put(ctx context.Context, path string, body, out interface{}, opts ...CallOption) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out, opts...)
}

// Patch sends body as JSON.
func (c *Client) Patch(ctx context.Context, path string, body, out interface{}, opts ...CallOption) error {
	return c.Do(ctx, http.MethodPatch, path, nil, body, out, opts...)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out interface{}, opts ...CallOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out, opts...)
}

// Do performs one JSON request and decodes the successful payload into out.
func (c *Client) Do(ctx context.Context, method, path string, query Query, body, out interface{}, opts ...CallOption) error {
	cl := newCall(opts)

	target := c.URL(path)
	if encoded := query.Encode(); encoded != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + encoded
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.applyHeaders(req, cl)

	status, raw, _, err := c.send(req)
	if err != nil {
		return err
	}
	return c.handle(ctx, path, status, raw, out, cl, false)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout > 0 {
		return context.WithTimeout(ctx, c.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Client) applyHeaders(req *http.Request, cl *call) {
	if cl.auth && c.opts.Tokens != nil {
		if token := c.opts.Tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for key, values := range cl.headers {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}
}

func (c *Client) send(req *http.Request) (int, []byte, http.Header, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("http request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Error(err),
		)
		return 0, nil, nil, transportError(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, transportError(err)
	}
	c.logger.Debug("http request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	return resp.StatusCode, raw, resp.Header, nil
}

// transportError keeps the transport's own message, minus the method and URL
// prefix net/http adds. Timeouts read as 请求超时.
func transportError(err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Message: DefaultStatusMessages[http.StatusRequestTimeout], Err: err}
	}
	cause := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		cause = urlErr.Err
	}
	msg := msgNetwork
	if cause != nil && cause.Error() != "" {
		msg = cause.Error()
	}
	return &Error{Message: msg, Err: err}
}

func (c *Client) handle(ctx context.Context, path string, status int, raw []byte, out interface{}, cl *call, upload bool) error {
	body := decodeObject(raw)
	if c.profile == ProfileMiniProgram {
		return c.handleMini(ctx, path, status, raw, body, out, cl, upload)
	}
	return c.handleDesktop(ctx, status, raw, body, out, cl)
}

func (c *Client) handleDesktop(ctx context.Context, status int, raw []byte, body map[string]interface{}, out interface{}, cl *call) error {
	if status >= 200 && status < 300 {
		return decodeInto(raw, out)
	}
	format := "请求失败: %d"
	var fallback string
	if cl.failureFormat != "" {
		fallback = fmt.Sprintf(cl.failureFormat, status)
	} else {
		fallback = statusFallback(c.opts.StatusMessages, status, format)
	}
	apiErr := &Error{Status: status, Message: messageOr(body, fallback), Body: body}
	if code, ok := bizCode(body); ok {
		apiErr.Code = code
	}
	if status == http.StatusUnauthorized {
		c.unauthorized(ctx)
	}
	return apiErr
}

func (c *Client) handleMini(ctx context.Context, path string, status int, raw []byte, body map[string]interface{}, out interface{}, cl *call, upload bool) error {
	failFormat := "请求失败(%d)"
	if upload {
		failFormat = "上传失败(%d)"
	}
	if cl.failureFormat != "" {
		failFormat = cl.failureFormat
	}

	if code, ok := bizCode(body); ok {
		switch code {
		case http.StatusOK:
			if data, present := rawField(raw, "data"); present {
				return decodeInto(data, out)
			}
			return decodeInto(raw, out)
		case http.StatusUnauthorized:
			c.unauthorized(ctx)
			return &Error{Status: status, Code: code, Message: messageOr(body, msgSessionExpired), Body: body}
		default:
			return &Error{Status: status, Code: code, Message: messageOr(body, fmt.Sprintf(failFormat, code)), Body: body}
		}
	}

	if status >= 200 && status < 300 {
		return decodeInto(raw, out)
	}
	if status == http.StatusUnauthorized {
		if !upload && strings.Contains(path, "/auth/login") {
			return &Error{Status: status, Message: messageOr(body, msgBadCredentials), Body: body}
		}
		c.unauthorized(ctx)
		return &Error{Status: status, Message: messageOr(body, msgSessionExpired), Body: body}
	}
	return &Error{Status: status, Message: messageOr(body, fmt.Sprintf(failFormat, status)), Body: body}
}

func (c *Client) unauthorized(ctx context.Context) {
	if c.opts.OnUnauthorized != nil {
		c.opts.OnUnauthorized(ctx)
	}
}

func isAbsoluteURL(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func decodeObject(raw []byte) map[string]interface{} {
	var body map[string]interface{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	return body
}

// bizCode returns the numeric "code" field of an envelope.
func bizCode(body map[string]interface{}) (int, bool) {
	if body == nil {
		return 0, false
	}
	v, ok := body["code"].(float64)
	if !ok {
		return 0, false
	}
	return int(v), true
}

func rawField(raw []byte, key string) (json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	v, ok := fields[key]
	if !ok || string(v) == "null" {
		return nil, false
	}
	return v, true
}

func decodeInto(raw []byte, out interface{}) error {
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
