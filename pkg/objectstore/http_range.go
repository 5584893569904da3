package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nova-retail/catalogsync/core"
)

// HTTPRangeClient issues HEAD and ranged GET requests against a signed
// URL, the shape material preparation and body processing use to stream
// the material feed without ever loading it fully into memory.
type HTTPRangeClient struct {
	HTTPClient *http.Client
	Logger     core.Logger
}

// NewHTTPRangeClient builds a client with the given timeout.
func NewHTTPRangeClient(timeout time.Duration, logger core.Logger) *HTTPRangeClient {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &HTTPRangeClient{
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

// Head issues a HEAD request and reports Content-Length plus whether the
// server is expected to honor ranges (Accept-Ranges: bytes).
func (c *HTTPRangeClient) Head(ctx context.Context, url string) (HeadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return HeadResult{}, fmt.Errorf("objectstore: build head request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return HeadResult{}, fmt.Errorf("objectstore: head request: %w", err)
	}
	defer resp.Body.Close()

	size, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	return HeadResult{
		TotalBytes:   size,
		RangeCapable: resp.Header.Get("Accept-Ranges") == "bytes",
	}, nil
}

// GetRange issues a Range: bytes=start-end request. The caller must
// inspect StatusCode — 206 (honored), 200 (ignored, full body returned),
// and 416 (past EOF) are all valid responses the body-processing state
// machine classifies differently.
func (c *HTTPRangeClient) GetRange(ctx context.Context, url string, start, end int64) (RangeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RangeResult{}, fmt.Errorf("objectstore: build range request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return RangeResult{}, fmt.Errorf("objectstore: range request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return RangeResult{}, fmt.Errorf("objectstore: read range body: %w", err)
	}

	contentLen, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	return RangeResult{
		StatusCode:   resp.StatusCode,
		Body:         body,
		ContentRange: resp.Header.Get("Content-Range"),
		ContentLen:   contentLen,
	}, nil
}
