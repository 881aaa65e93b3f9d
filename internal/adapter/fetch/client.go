// Package fetch is the image-loading boundary: it retrieves raster and legend
// files and decodes them into pixel-addressable images.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	// Decoders for every format a raster or legend may be published in.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
)

// defaultMaxImageBytes bounds a single download or file read.
const defaultMaxImageBytes = 64 << 20

// Client fetches images over HTTP(S) and from the local filesystem.
// It implements imagestore.Fetcher.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	maxBytes   int64
}

// NewClient creates an image client with a per-request timeout.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:   logger,
		maxBytes: defaultMaxImageBytes,
	}
}

// Fetch loads url and decodes it. Locations without an http or https scheme
// are read from disk; "file://" prefixes are stripped.
func (c *Client) Fetch(ctx context.Context, url string) (domain.Image, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		data, err = c.get(ctx, url)
	} else {
		data, err = c.readFile(strings.TrimPrefix(url, "file://"))
	}
	if err != nil {
		return nil, &domain.ImageLoadError{URL: url, Err: err}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.ImageLoadError{URL: url, Err: fmt.Errorf("decode: %w", err)}
	}
	c.logger.Debug("image loaded", "url", url, "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return domain.NewImage(img), nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("image server error: status %d: %s", resp.StatusCode, body)
	}

	data, err := c.readAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

func (c *Client) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.readAll(f)
}

// readAll reads r to the end and fails instead of truncating when it holds
// more than c.maxBytes.
func (c *Client) readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, c.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", c.maxBytes)
	}
	return data, nil
}
