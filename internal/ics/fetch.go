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
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"hora/pkg/logx"
)

// Source is one ICS subscription.
type Source struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"` // tag category path for this feed
}

// Fetcher downloads ICS feeds with conditional requests (ETag and
// Last-Modified) backed by a disk cache, so a calendar host only ships
// bytes when something changed. Requests across feeds share one rate
// limiter.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	limiter  *rate.Limiter
	log      logx.Logger
}

// NewFetcher creates a fetcher caching under cacheDir.
func NewFetcher(cacheDir string, log logx.Logger) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
		// Calendar hosts throttle aggressive pollers; 1 rps with a small
		// burst keeps a multi-feed config polite.
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
		log:     log,
	}
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetch returns the feed body, either fresh or from cache on a 304 or
// network failure. fromCache reports which.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (body []byte, fromCache bool, err error) {
	if src.URL == "" {
		return nil, false, errors.New("ics: source URL is empty")
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	dir := f.cacheDirFor(src.URL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, false, err
	}
	meta, _ := f.loadMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
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
			f.log.Warn("feed fetch failed, serving cache",
				logx.String("feed", src.Name), logx.String("url", redactURL(src.URL)), logx.Err(err))
			return cached, true, nil
		}
		return nil, false, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, err
		}
		if err := f.saveCache(dir, cacheMeta{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}, body); err != nil {
			f.log.Warn("feed cache write failed",
				logx.String("feed", src.Name), logx.Err(err))
		}
		f.log.Debug("feed fetched",
			logx.String("feed", src.Name), logx.Int("bytes", len(body)))
		return body, false, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return nil, false, errors.New("ics: 304 with no cached body")
		}
		f.log.Debug("feed unchanged", logx.String("feed", src.Name))
		return cached, true, nil

	default:
		if len(cached) > 0 {
			f.log.Warn("feed returned non-OK, serving cache",
				logx.String("feed", src.Name), logx.Int("status", resp.StatusCode))
			return cached, true, nil
		}
		return nil, false, fmt.Errorf("ics: fetching %s: %s", src.Name, resp.Status)
	}
}

func (f *Fetcher) cacheDirFor(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

func (f *Fetcher) saveCache(dir string, meta cacheMeta, body []byte) error {
	// Body first, so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL strips path and query before logging; feed URLs routinely
// embed access tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(unparseable url)"
	}
	return u.Scheme + "://" + u.Host + "/..."
}
