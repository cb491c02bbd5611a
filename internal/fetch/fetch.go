// Package fetch downloads documentation pages over HTTP and parses them
// into structured documents for segmentation.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docpilot/internal/logging"
	"docpilot/internal/types"
)

// maxBodyBytes caps how much of a page is read. Documentation pages
// beyond this are truncated, not rejected.
const maxBodyBytes = 10 << 20

// Fetcher downloads and parses documentation pages.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	retryDelay time.Duration
}

// NewFetcher creates a Fetcher with the given timeout and retry policy.
func NewFetcher(timeout time.Duration, maxRetries int, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if userAgent == "" {
		userAgent = "docpilot/1.0"
	}
	return &Fetcher{
		client:     &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		maxRetries: maxRetries,
		retryDelay: time.Second,
	}
}

// ValidateURL rejects URLs that are not absolute http(s) URLs.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q (want http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

// Fetch downloads the page at pageURL and parses it into a Document.
// Server errors and transport failures are retried with backoff; client
// errors are not.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (types.Document, error) {
	if err := ValidateURL(pageURL); err != nil {
		return types.Document{}, err
	}

	timer := logging.StartTimer(logging.CategoryFetch, "Fetch")
	defer timer.Stop()

	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			delay := f.retryDelay * time.Duration(1<<uint(attempt-1))
			logging.Get(logging.CategoryFetch).Warn("Retrying %s in %v (attempt %d/%d): %v",
				pageURL, delay, attempt, f.maxRetries, lastErr)
			select {
			case <-ctx.Done():
				return types.Document{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		doc, retryable, err := f.fetchOnce(ctx, pageURL)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return types.Document{}, fmt.Errorf("failed to fetch %s: %w", pageURL, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, pageURL string) (types.Document, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return types.Document{}, false, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return types.Document{}, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return types.Document{}, true, fmt.Errorf("server returned %s", resp.Status)
	default:
		return types.Document{}, false, fmt.Errorf("server returned %s", resp.Status)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "text/plain") {
		return types.Document{}, false, fmt.Errorf("unsupported content type %q", ct)
	}

	doc, err := ParseHTML(io.LimitReader(resp.Body, maxBodyBytes), pageURL)
	if err != nil {
		return types.Document{}, false, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	logging.Get(logging.CategoryFetch).Info("Fetched %s: %q, %d sections", pageURL, doc.Title, len(doc.Sections))
	return doc, false, nil
}
