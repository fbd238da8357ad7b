package script

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// FetchConfig bounds the outbound HTTP capability handed to scripts
type FetchConfig struct {
	Timeout time.Duration
	Rate    float64 // requests per second, shared by every execution
	Burst   int
	MaxBody int64
}

// Fetcher performs the HTTP requests behind the script-visible fetch
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	maxBody int64
}

type fetchRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   string
}

type fetchResponse struct {
	URL        string
	Status     int
	StatusText string
	Header     http.Header
	Body       []byte
}

func NewFetcher(cfg FetchConfig) *Fetcher {
	if cfg.Rate <= 0 {
		cfg.Rate = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = 5 << 20
	}

	return &Fetcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		maxBody: cfg.MaxBody,
	}
}

// Do waits for the shared rate limiter and then performs the request.
// Only http and https targets are allowed.
func (f *Fetcher) Do(ctx context.Context, req fetchRequest) (*fetchResponse, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid fetch url: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("fetch: unsupported scheme %q", target.Scheme)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}
	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target.Redacted(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read fetch response: %w", err)
	}
	if int64(len(data)) > f.maxBody {
		return nil, fmt.Errorf("fetch response exceeds %d bytes", f.maxBody)
	}

	return &fetchResponse{
		URL:        resp.Request.URL.String(),
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Header:     resp.Header,
		Body:       data,
	}, nil
}
