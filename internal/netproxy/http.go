package netproxy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// HTTPProxy drives a network-proxy's kill endpoint over a plain HTTP POST,
// the same minimal net/http-only approach the teacher repository's
// internal/rpc.Client took for its JSON-RPC calls (that package is not part
// of this module): no retry logic, no connection-pool tuning, just a direct
// request per operation.
type HTTPProxy struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProxy(baseURL string) *HTTPProxy {
	return &HTTPProxy{baseURL: baseURL, client: &http.Client{}}
}

func (p *HTTPProxy) Kill(ctx context.Context, clientIP, guestIP string) error {
	endpoint := fmt.Sprintf("%s/kill?src=%s&dst=%s", p.baseURL, url.QueryEscape(clientIP), url.QueryEscape(guestIP))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("netproxy: build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("netproxy: kill %s<->%s: %w", clientIP, guestIP, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("netproxy: kill %s<->%s: status %s", clientIP, guestIP, resp.Status)
	}
	return nil
}
