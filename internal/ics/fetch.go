package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	appLog "studycal/internal/log"
)

// MaxFeedBytes caps a downloaded feed.
const MaxFeedBytes = 5 << 20

var ErrFetch = errors.New("ics fetch failed")

// Source identifies where an ICS payload came from.
type Source struct {
	// ID is a short label for logs ("upload", "subscription").
	ID string
	// URL is the feed address; empty for uploaded payloads.
	URL string
}

// FetchResult is the outcome of fetching one feed.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool // true when a 304 or an upstream failure reused the cache
}

type cacheEntry struct {
	etag         string
	lastModified string
	body         []byte
	updatedAt    time.Time
}

// Fetcher downloads ICS feeds with conditional requests. Validators and
// bodies are cached in memory per URL for the life of the process.
type Fetcher struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewFetcher returns a Fetcher with the given request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		cache:  make(map[string]cacheEntry),
	}
}

// Fetch downloads src, honoring ETag / Last-Modified. On a network error or
// non-OK status it falls back to the cached body when one exists.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (FetchResult, error) {
	u, err := url.Parse(src.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return FetchResult{}, fmt.Errorf("%w: invalid url", ErrFetch)
	}

	f.mu.Lock()
	cached, hasCache := f.cache[src.URL]
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "text/calendar")
	if hasCache && cached.etag != "" {
		req.Header.Set("If-None-Match", cached.etag)
	}
	if hasCache && cached.lastModified != "" {
		req.Header.Set("If-Modified-Since", cached.lastModified)
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		if hasCache {
			appLog.Error("ics fetch network error, using cached body", err, "id", src.ID, "url", redactURL(src.URL))
			return FetchResult{Source: src, Body: cached.body, FromCache: true}, nil
		}
		return FetchResult{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, MaxFeedBytes+1))
		if err != nil {
			return FetchResult{}, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		if len(body) > MaxFeedBytes {
			return FetchResult{}, fmt.Errorf("%w: feed larger than %d bytes", ErrFetch, MaxFeedBytes)
		}

		f.mu.Lock()
		f.cache[src.URL] = cacheEntry{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
			body:         body,
			updatedAt:    time.Now().UTC(),
		}
		f.mu.Unlock()

		appLog.Info("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if !hasCache {
			return FetchResult{}, fmt.Errorf("%w: 304 without cached body", ErrFetch)
		}
		appLog.Debug("ics fetch not modified; using cache", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cached.body, FromCache: true}, nil

	default:
		if hasCache {
			appLog.Error("ics fetch non-OK, using cached body", errors.New(resp.Status), "id", src.ID, "url", redactURL(src.URL))
			return FetchResult{Source: src, Body: cached.body, FromCache: true}, nil
		}
		return FetchResult{}, fmt.Errorf("%w: %s", ErrFetch, resp.Status)
	}
}

// redactURL keeps scheme and host only; feed URLs often embed private tokens.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
