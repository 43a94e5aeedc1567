// Package ingest uploads a class-schedule PDF to the extraction service and
// returns the class lines it found.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	appLog "studycal/internal/log"
)

// FormField is the multipart field carrying the PDF.
const FormField = "pdf"

// MaxUploadBytes caps the PDF size accepted for forwarding.
const MaxUploadBytes = 10 << 20

var (
	ErrNotConfigured = errors.New("pdf ingestion not configured")
	ErrNotPDF        = errors.New("file is not a pdf")
	ErrTooLarge      = errors.New("pdf too large")
	ErrUpstream      = errors.New("ingestion service error")
)

// Client talks to the ingestion endpoint.
type Client struct {
	url  string
	http *http.Client
}

// NewClient returns a Client posting to url. An empty url yields a client
// whose Extract fails with ErrNotConfigured.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{url: url, http: &http.Client{Timeout: timeout}}
}

// Configured reports whether an endpoint is set.
func (c *Client) Configured() bool {
	return c != nil && c.url != ""
}

type response struct {
	ClassTimes []string `json:"classTimes"`
	Schedule   *struct {
		ClassTimes []string `json:"classTimes"`
	} `json:"schedule"`
	Error string `json:"error"`
}

// Extract uploads the PDF read from r under fileName and returns the class
// lines. Both {"classTimes": [...]} and {"schedule": {"classTimes": [...]}}
// replies are accepted.
func (c *Client) Extract(ctx context.Context, fileName string, r io.Reader) ([]string, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		return nil, fmt.Errorf("%w: %q", ErrNotPDF, fileName)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(FormField, filepath.Base(fileName))
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}

	var out response
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(out.Error)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstream, decodeErr)
	}

	lines := out.ClassTimes
	if len(lines) == 0 && out.Schedule != nil {
		lines = out.Schedule.ClassTimes
	}
	if lines == nil {
		lines = []string{}
	}

	appLog.Info("pdf ingested",
		"file", fileName,
		"bytes", len(data),
		"class_lines", len(lines),
		"elapsed", time.Since(started).String(),
	)
	return lines, nil
}
