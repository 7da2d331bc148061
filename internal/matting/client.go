package matting

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aliskhannn/bg-remover/internal/errs"
)

const (
	defaultEndpoint    = "https://api.remove.bg/v1.0/removebg"
	defaultSize        = "auto"
	defaultHTTPTimeout = 60 * time.Second

	// maxErrorBody bounds how much of an error response ends up in diagnostics.
	maxErrorBody = 256
)

// Client calls the third-party background removal API. It never retries.
type Client struct {
	apiKey     string
	endpoint   string
	size       string
	httpClient *http.Client
}

// Option customizes the matting client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithEndpoint overrides the API endpoint (useful for tests/mocks).
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithSize overrides the output size hint sent with every request.
func WithSize(size string) Option {
	return func(c *Client) {
		if size = strings.TrimSpace(size); size != "" {
			c.size = size
		}
	}
}

// NewClient constructs a matting API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		endpoint:   defaultEndpoint,
		size:       defaultSize,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// RemoveBackground asks the API to remove the background of the image at
// imageURL and returns the processed image bytes.
func (c *Client) RemoveBackground(ctx context.Context, imageURL string) ([]byte, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return nil, errs.Wrap(errs.ErrInvalidInput, "matting", "image url is required", nil)
	}

	body, contentType, err := c.buildForm(imageURL)
	if err != nil {
		return nil, errs.Wrap(errs.ErrUpstream, "matting", "build request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrUpstream, "matting", "build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.ErrUpstream, "matting", "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrUpstream, "matting", "read body", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errs.Wrap(errs.ErrUpstream, "matting",
			fmt.Sprintf("http %d: %s", resp.StatusCode, snippet(data)), nil)
	}

	if len(data) == 0 {
		return nil, errs.Wrap(errs.ErrUpstream, "matting", "empty response body", nil)
	}

	return data, nil
}

func (c *Client) buildForm(imageURL string) (io.Reader, string, error) {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	if err := w.WriteField("image_url", imageURL); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("size", c.size); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return buf, w.FormDataContentType(), nil
}

// snippet returns at most maxErrorBody bytes of valid UTF-8 from body,
// cut on a rune boundary.
func snippet(body []byte) string {
	s := strings.ToValidUTF8(strings.TrimSpace(string(body)), "?")
	s = strings.ReplaceAll(s, "\x00", "")
	if len(s) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}
