package docker

import (
	"context"
	"net"
	"net/http"
	"time"
)

// =============================================================================
// Readiness Probes
// =============================================================================

// Prober performs the active half of a health contract against a started
// service's host-mapped port.
type Prober interface {
	ProbeTCP(ctx context.Context, address string) bool
	ProbeHTTP(ctx context.Context, url string) bool
}

// NetProber probes over the host network stack.
type NetProber struct {
	Timeout time.Duration
	client  *http.Client
}

// NewNetProber creates a prober with the given per-probe timeout.
func NewNetProber(timeout time.Duration) *NetProber {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &NetProber{
		Timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
			// A redirect already proves the service is answering.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// ProbeTCP reports whether a TCP connection to the address succeeds.
func (p *NetProber) ProbeTCP(ctx context.Context, address string) bool {
	dialer := net.Dialer{Timeout: p.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ProbeHTTP reports whether a GET to the URL returns a 2xx or 3xx status.
func (p *NetProber) ProbeHTTP(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}
