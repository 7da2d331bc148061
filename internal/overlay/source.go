package overlay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aliskhannn/bg-remover/internal/errs"
)

const defaultHTTPTimeout = 15 * time.Second

// Source downloads the watermark tile from a fixed URL. The tile is fetched
// on every call; nothing is cached.
type Source struct {
	url        string
	httpClient *http.Client
}

// NewSource creates a Source for the given URL. A nil client selects a
// default client with a timeout.
func NewSource(url string, client *http.Client) *Source {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Source{url: strings.TrimSpace(url), httpClient: client}
}

// Fetch returns the raw bytes of the overlay image.
func (s *Source) Fetch(ctx context.Context) ([]byte, error) {
	if s.url == "" {
		return nil, errs.Wrap(errs.ErrInvalidInput, "overlay", "overlay url is not configured", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrUpstream, "overlay", "build request", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.ErrUpstream, "overlay", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errs.Wrap(errs.ErrUpstream, "overlay", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrUpstream, "overlay", "read body", err)
	}
	if len(data) == 0 {
		return nil, errs.Wrap(errs.ErrUpstream, "overlay", "empty overlay image", nil)
	}

	return data, nil
}
