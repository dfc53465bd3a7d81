package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// DownloadError reports a non-success transport status while fetching a
// document. It is surfaced before any extraction starts.
type DownloadError struct {
	URL        string
	StatusCode int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download document: status %d from %s", e.StatusCode, e.URL)
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// FetchDocument downloads the raw document bytes from a URL-like locator.
func FetchDocument(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DownloadError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// SourceFromURL derives the source identifier (the file name) from a document
// locator.
func SourceFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return rawURL
	}
	return path.Base(u.Path)
}
