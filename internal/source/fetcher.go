package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/valpere/hadithfeed/internal/hadith"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultDelay   = time.Second

	maxBodySize = 10 * 1024 * 1024
	userAgent   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"
)

// Options configures a remote client. Zero values fall back to defaults.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Delay is the minimum spacing between two requests to the origin.
	// A negative value disables throttling.
	Delay      time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// fetcher issues throttled GETs against one origin. The limiter is shared by
// every call made through the same fetcher.
type fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	headers map[string]string
	logger  *zap.Logger
}

func newFetcher(opts Options, headers map[string]string) *fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &fetcher{
		client:  client,
		limiter: newLimiter(opts.Delay),
		headers: headers,
		logger:  logger,
	}
}

func newLimiter(delay time.Duration) *rate.Limiter {
	if delay == 0 {
		delay = DefaultDelay
	}
	if delay < 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// get waits for the origin's politeness slot and fetches url. A 404 maps to
// ErrNotFound; every other failure wraps ErrTransient.
func (f *fetcher) get(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: throttle wait: %v", ErrTransient, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrTransient, err)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	f.logger.Debug("fetching", zap.String("url", url))

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: request timeout: %v", ErrTransient, err)
		}
		return nil, fmt.Errorf("%w: request failed: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrTransient, resp.StatusCode)
	}

	if resp.ContentLength > maxBodySize {
		return nil, fmt.Errorf("%w: content length %d exceeds %d bytes", ErrMalformed, resp.ContentLength, maxBodySize)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: body read timeout: %v", ErrTransient, err)
		}
		return nil, fmt.Errorf("%w: failed to read body: %v", ErrTransient, err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformed, maxBodySize)
	}

	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// newResult stamps status and latency onto the outcome of one fetch.
func newResult(origin hadith.Origin, start time.Time, frag *Fragment, err error) Result {
	if err != nil {
		frag = nil
	}
	return Result{
		Origin:   origin,
		Status:   statusOf(err),
		Fragment: frag,
		Err:      err,
		Latency:  time.Since(start),
	}
}
