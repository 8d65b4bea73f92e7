// Package wsclient talks to a Moodle site: it downloads pluginfile URLs
// and calls REST web-service functions.
//
// Transport failures are reported as common.ErrNetwork. HTTP error
// statuses and Moodle exception payloads are reported as *ServerError,
// which matches common.ErrServer.
package wsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/telemetry"
)

const restPath = "/webservice/rest/server.php"

// ServerError is returned when the site answered but refused the request.
type ServerError struct {
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *ServerError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("server error %s: %s", e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("server error: HTTP %d", e.StatusCode)
}

func (e *ServerError) Unwrap() error {
	return common.ErrServer
}

// IsInvalidToken reports whether the site rejected the web-service token.
func (e *ServerError) IsInvalidToken() bool {
	return e.ErrorCode == "invalidtoken"
}

// exception is the JSON body Moodle returns instead of a result.
type exception struct {
	Exception string `json:"exception"`
	ErrorCode string `json:"errorcode"`
	Message   string `json:"message"`
	// pluginfile.php reports errors with "error" instead of "message".
	Error string `json:"error"`
}

type Client struct {
	http *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default traced client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func New(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout:   5 * time.Minute,
			Transport: telemetry.Transport(nil),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s %s: %v", common.ErrNetwork, req.Method, redact(req.URL), stripURL(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		serr := &ServerError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var ex exception
		if json.Unmarshal(body, &ex) == nil && ex.ErrorCode != "" {
			serr.ErrorCode, serr.Message = ex.ErrorCode, firstNonEmpty(ex.Message, ex.Error)
		}
		return nil, serr
	}
	return resp, nil
}

// Download fetches url and returns its body. Moodle answers some failed
// pluginfile requests with 200 and a JSON exception; those are detected
// and reported as *ServerError.
func (c *Client) Download(ctx context.Context, fileURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid download url: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", common.ErrNetwork, redact(req.URL), stripURL(err))
		}
		if serr := parseException(resp.StatusCode, body); serr != nil {
			return nil, serr
		}
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	return resp.Body, nil
}

// Call invokes wsFunction on the site and decodes the JSON result into out
// (which may be nil).
func (c *Client) Call(ctx context.Context, siteURL, token, wsFunction string, params url.Values, out any) error {
	endpoint := strings.TrimRight(siteURL, "/") + restPath + "?" + url.Values{
		"moodlewsrestformat": {"json"},
		"wsfunction":         {wsFunction},
	}.Encode()

	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("wstoken", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("invalid site url: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", common.ErrNetwork, wsFunction, err)
	}
	if serr := parseException(resp.StatusCode, body); serr != nil {
		return serr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", wsFunction, err)
	}
	return nil
}

// Ping checks that siteURL answers at all; any HTTP status counts.
func (c *Client) Ping(ctx context.Context, siteURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, siteURL, nil)
	if err != nil {
		return fmt.Errorf("invalid site url: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ping %s: %v", common.ErrNetwork, redact(req.URL), stripURL(err))
	}
	_ = resp.Body.Close()
	return nil
}

func parseException(status int, body []byte) *ServerError {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var ex exception
	if err := json.Unmarshal(trimmed, &ex); err != nil || (ex.Exception == "" && ex.ErrorCode == "") {
		return nil
	}
	return &ServerError{StatusCode: status, ErrorCode: ex.ErrorCode, Message: firstNonEmpty(ex.Message, ex.Error)}
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}

// redact hides the token in logged URLs.
func redact(u *url.URL) string {
	cp := *u
	q := cp.Query()
	for _, k := range []string{"token", "wstoken"} {
		if q.Has(k) {
			q.Set(k, "xxx")
		}
	}
	cp.RawQuery = q.Encode()
	return cp.String()
}

// stripURL drops the request URL that *url.Error carries, since it still
// holds the token.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

// AsServerError unwraps err into a *ServerError.
func AsServerError(err error) (*ServerError, bool) {
	var serr *ServerError
	ok := errors.As(err, &serr)
	return serr, ok
}
