package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("object storage is not configured")

// ObjectStore saves uploaded files and returns their public URL
type ObjectStore interface {
	Put(ctx context.Context, name, contentType string, body io.Reader) (string, error)
}

// SupabaseConfig points at a project's storage API
type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
	Timeout        time.Duration
}

// Supabase stores objects through the Supabase Storage REST API
type Supabase struct {
	cfg    SupabaseConfig
	client *http.Client
}

func NewSupabase(cfg SupabaseConfig) *Supabase {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Supabase{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Put uploads body as bucket/name and returns the object's public URL
func (s *Supabase) Put(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	if s.cfg.URL == "" || s.cfg.ServiceRoleKey == "" || s.cfg.Bucket == "" {
		return "", ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.cfg.URL, url.PathEscape(s.cfg.Bucket), url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.ServiceRoleKey)
	req.Header.Set("apikey", s.cfg.ServiceRoleKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("upload rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return s.PublicURL(name), nil
}

// PublicURL is where a stored object can be fetched without credentials
func (s *Supabase) PublicURL(name string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.cfg.URL, url.PathEscape(s.cfg.Bucket), url.PathEscape(name))
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectName builds "<unix-millis>-<sanitized name>" for an uploaded file
func ObjectName(original string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(original, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), base)
}
