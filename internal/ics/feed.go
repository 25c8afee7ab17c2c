package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "calcolumn/internal/log"
)

// feedMeta holds HTTP validators for one feed URL.
type feedMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FeedClient downloads ICS feeds with conditional requests, keeping the last
// good body on disk so that a failing or unchanged feed still renders.
type FeedClient struct {
	client   *http.Client
	cacheDir string
}

// NewFeedClient creates a feed client caching under cacheDir.
func NewFeedClient(cacheDir string) *FeedClient {
	if cacheDir == "" {
		cacheDir = "./cache/ics-cache"
	}
	return &FeedClient{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
	}
}

// Download returns the feed body and whether it came from the disk cache.
func (f *FeedClient) Download(ctx context.Context, feedURL string) ([]byte, bool, error) {
	if feedURL == "" {
		return nil, false, errors.New("ics: feed URL is empty")
	}

	dir := f.dirFor(feedURL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, false, err
	}
	meta, _ := readMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, false, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Error("ics feed unreachable, using cached body", err, "url", redactURL(feedURL))
			return cached, true, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, err
		}
		next := feedMeta{
			URL:          feedURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := writeCache(dir, next, body); err != nil {
			appLog.Error("ics cache write failed", err, "url", redactURL(feedURL))
		}
		return body, false, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return nil, false, errors.New("ics: 304 Not Modified without cached body")
		}
		return cached, true, nil

	default:
		if len(cached) > 0 {
			appLog.Error("ics feed returned non-OK, using cached body", errors.New(resp.Status), "url", redactURL(feedURL))
			return cached, true, nil
		}
		return nil, false, fmt.Errorf("ics: %s", resp.Status)
	}
}

func (f *FeedClient) dirFor(feedURL string) string {
	sum := sha256.Sum256([]byte(feedURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func readMeta(dir string) (feedMeta, error) {
	var meta feedMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

func writeCache(dir string, meta feedMeta, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only; feed URLs often embed secrets.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i < 0 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
