package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sraza-onshape/OnshapeExperiments/pkg/log"
)

type (
	// Client forwards a request to the CAD platform's REST API
	Client interface {
		Do(context.Context, *Request) (*Response, error)
	}

	// Request is a platform call: a verb, a path relative to the API root
	// (query string included) and an optional JSON body
	Request struct {
		Verb string
		Path string
		Body any
	}

	// Response is the raw outcome of an outbound call
	Response struct {
		Status      int
		ContentType string
		Body        []byte
	}

	// HTTPClient performs JSON requests with a bounded timeout
	HTTPClient struct {
		httpClient *http.Client
	}

	// Authorizer decorates an outbound request with credentials
	Authorizer func(*http.Request)
)

const (
	userAgent        = "Release-Export-Relay/1.0"
	maxErrorBodySize = 512
)

var (
	ErrHTTPStatus      = errors.New("outbound request returned HTTP error")
	ErrInvalidRequest  = errors.New("invalid platform request")
	ErrRequestTimedOut = errors.New("outbound request timed out")
)

// NewHTTPClient creates an HTTPClient whose calls fail after timeout
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PostJSON sends body to url as JSON
func (c *HTTPClient) PostJSON(
	ctx context.Context, url string, body any,
) (*Response, error) {
	return c.Send(ctx, http.MethodPost, url, body, nil)
}

// Send performs the request. A non-2xx reply returns both the Response and
// an error wrapping ErrHTTPStatus, so callers may still relay the body
func (c *HTTPClient) Send(
	ctx context.Context, method, url string, body any, auth Authorizer,
) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			slog.Error("Failed to marshal outbound request",
				slog.String("url", url),
				log.Error(err))
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		slog.Error("Failed to create HTTP request",
			slog.String("url", url),
			log.Error(err))
		return nil, err
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if auth != nil {
		auth(httpReq)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	dur := time.Since(start)

	if err != nil {
		slog.Error("HTTP request failed",
			slog.String("method", method),
			slog.String("url", url),
			slog.Duration("duration", dur),
			log.Error(err))
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s %s", ErrRequestTimedOut, method, url)
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Failed to read response body",
			slog.String("url", url),
			log.Error(err))
		return nil, err
	}

	res := &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
	}

	if !res.OK() {
		slog.Error("HTTP error",
			slog.String("method", method),
			slog.String("url", url),
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", truncate(respBody)))
		return res, fmt.Errorf("%w: HTTP %d: %s",
			ErrHTTPStatus, resp.StatusCode, truncate(respBody))
	}

	slog.Debug("HTTP request completed",
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status_code", resp.StatusCode),
		slog.Duration("duration", dur))
	return res, nil
}

// OK reports whether the response carries a 2xx status
func (r *Response) OK() bool {
	return r.Status >= http.StatusOK && r.Status < http.StatusMultipleChoices
}

// JSON parses the response body
func (r *Response) JSON() gjson.Result {
	return gjson.ParseBytes(r.Body)
}

func (r *Request) validate() error {
	if r == nil || r.Verb == "" || r.Path == "" {
		return ErrInvalidRequest
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodySize {
		return s[:maxErrorBodySize] + "..."
	}
	return s
}
