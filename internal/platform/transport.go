package platform

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type (
	// FlowProxy reaches the platform through a proxy Flow that holds the
	// platform credentials
	FlowProxy struct {
		http *HTTPClient
		url  string
	}

	// Direct calls the platform API with basic-auth API keys
	Direct struct {
		http      *HTTPClient
		baseURL   string
		accessKey string
		secretKey string
	}

	flowProxyRequest struct {
		HTTPVerb             string `json:"httpVerb"`
		RequestURLParameters string `json:"requestUrlParameters"`
		OnshapeRequestBody   any    `json:"onshapeRequestBody"`
	}
)

var (
	_ Client = (*FlowProxy)(nil)
	_ Client = (*Direct)(nil)
)

// NewFlowProxy creates a Client that posts every request to flowURL
func NewFlowProxy(c *HTTPClient, flowURL string) *FlowProxy {
	return &FlowProxy{
		http: c,
		url:  flowURL,
	}
}

// NewDirect creates a Client that calls the platform API at baseURL
func NewDirect(c *HTTPClient, baseURL, accessKey, secretKey string) *Direct {
	return &Direct{
		http:      c,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		accessKey: accessKey,
		secretKey: secretKey,
	}
}

func (p *FlowProxy) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	// the proxy Flow expects an object even when there is no body
	body := req.Body
	if body == nil {
		body = struct{}{}
	}
	return p.http.PostJSON(ctx, p.url, &flowProxyRequest{
		HTTPVerb:             strings.ToUpper(req.Verb),
		RequestURLParameters: strings.TrimPrefix(req.Path, "/"),
		OnshapeRequestBody:   body,
	})
}

func (d *Direct) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%s", d.baseURL, strings.TrimPrefix(req.Path, "/"))
	return d.http.Send(ctx, strings.ToUpper(req.Verb), url, req.Body,
		func(r *http.Request) {
			r.SetBasicAuth(d.accessKey, d.secretKey)
		},
	)
}
