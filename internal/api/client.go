// Package api talks to the network backend. Every call returns a Result
// instead of an error so callers always get the same shape back, whether the
// server answered, nothing answered, or the request never left.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"network/internal/middleware"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 10 << 20

// Result is the uniform outcome of a request. On success Data holds the
// response body. On failure ErrorMessage describes it and, when the server
// answered, ErrorData holds its error payload.
type Result struct {
	Data         []byte
	ErrorMessage string
	ErrorData    []byte
	Kind         FailureKind
	Status       int
	cause        error
}

func (r Result) OK() bool {
	return r.Kind == FailureNone
}

// Err returns nil for a successful Result and an *Error otherwise.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &Error{
		Kind:    r.Kind,
		Message: r.ErrorMessage,
		Status:  r.Status,
		Data:    r.ErrorData,
		cause:   r.cause,
	}
}

// Decode unmarshals Data into v.
func (r Result) Decode(v any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type Options struct {
	BaseURL        string
	CSRFCookieName string
	CSRFHeaderName string
	UserAgent      string
	// Timeout of 0 leaves the transport defaults in place.
	Timeout   time.Duration
	Jar       http.CookieJar
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client issues requests against one backend. Each Client owns a single
// cancellation handle; Abort cancels every in-flight request made through
// this Client and no other.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	jar := opts.Jar
	if jar == nil {
		jar, err = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cookieName := opts.CSRFCookieName
	if cookieName == "" {
		cookieName = "csrftoken"
	}
	headerName := opts.CSRFHeaderName
	if headerName == "" {
		headerName = "X-CSRFToken"
	}

	transport := middleware.Chain(
		opts.Transport,
		middleware.RequestIDMiddleware,
		middleware.UserAgentMiddleware(opts.UserAgent),
		middleware.CSRFMiddleware(cookieName, headerName),
		middleware.LoggingMiddleware(logger),
	)

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		baseURL: base,
		http: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   opts.Timeout,
		},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Clone returns a Client sharing transport and cookies but with its own
// cancellation handle.
func (c *Client) Clone() *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		baseURL: c.baseURL,
		http:    c.http,
		logger:  c.logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Abort cancels all in-flight requests of this Client. Requests issued after
// Abort fail immediately.
func (c *Client) Abort() {
	c.cancel()
}

func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// SetCookies stores cookies for the backend, e.g. a session id and CSRF
// token obtained outside this client.
func (c *Client) SetCookies(cookies ...*http.Cookie) {
	c.http.Jar.SetCookies(c.baseURL, cookies)
}

// Cookie returns the value of the named cookie held for the backend.
func (c *Client) Cookie(name string) (string, bool) {
	for _, cookie := range c.http.Jar.Cookies(c.baseURL) {
		if cookie.Name == name {
			return cookie.Value, true
		}
	}
	return "", false
}

func (c *Client) Get(ctx context.Context, path string) Result {
	return c.Request(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) Result {
	return c.Request(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) Result {
	return c.Request(ctx, http.MethodPut, path, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) Result {
	return c.Request(ctx, http.MethodPatch, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) Result {
	return c.Request(ctx, http.MethodDelete, path, nil)
}

// Request sends one request. body may be nil, a *Multipart form, or any
// value that encodes to JSON. Request never panics and never returns an
// error; failures are classified in the Result.
func (c *Client) Request(ctx context.Context, method, path string, body any) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.ctx.Err(); err != nil {
		return Result{
			Kind:         FailureRequest,
			ErrorMessage: requestErrorMessage(err),
			cause:        err,
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return Result{
			Kind:         FailureRequest,
			ErrorMessage: requestErrorMessage(err),
			cause:        err,
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("no response", "method", method, "path", path, "error", err)
		return Result{
			Kind:         FailureNoResponse,
			ErrorMessage: noResponseMessage(err),
			cause:        err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Result{
			Kind:         FailureNoResponse,
			Status:       resp.StatusCode,
			ErrorMessage: noResponseMessage(err),
			cause:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("error status", "method", method, "path", path, "status", resp.StatusCode)
		return Result{
			Kind:         FailureServerResponded,
			Status:       resp.StatusCode,
			ErrorMessage: serverRespondedMessage(resp.StatusCode),
			ErrorData:    data,
		}
	}

	return Result{Data: data, Status: resp.StatusCode}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	target := c.baseURL.ResolveReference(ref)

	var (
		reader      io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case *Multipart:
		buf, ct, err := b.encode()
		if err != nil {
			return nil, err
		}
		reader, contentType = buf, ct
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader, contentType = bytes.NewReader(raw), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), target.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}
