package fetch

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Reach is the outcome of a reachability probe.
type Reach int

const (
	Unreachable Reach = iota
	ReachableHTTP
	ReachableHTTPS
)

func (r Reach) String() string {
	switch r {
	case ReachableHTTPS:
		return "https"
	case ReachableHTTP:
		return "http"
	default:
		return "unreachable"
	}
}

// DefaultProbeTimeout bounds each scheme attempt of a probe.
const DefaultProbeTimeout = 5 * time.Second

// Probe issues HEAD https://domain and, failing that, HEAD http://domain.
// Only a 200 counts. Errors are logged and reported as Unreachable.
func (c *Client) Probe(ctx context.Context, domain string, timeout time.Duration) Reach {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	if c.headOK(ctx, "https://"+domain, timeout) {
		return ReachableHTTPS
	}
	if c.headOK(ctx, "http://"+domain, timeout) {
		return ReachableHTTP
	}
	return Unreachable
}

func (c *Client) headOK(ctx context.Context, rawURL string, timeout time.Duration) bool {
	resp, err := c.Head(ctx, rawURL, timeout)
	if err != nil {
		slog.Debug("Probe failed", "url", rawURL, "error", err)
		return false
	}
	return resp.StatusCode == http.StatusOK
}

// Prober adapts a Client to a fixed probe timeout.
type Prober struct {
	Client  *Client
	Timeout time.Duration
}

func (p Prober) Probe(ctx context.Context, domain string) Reach {
	return p.Client.Probe(ctx, domain, p.Timeout)
}
