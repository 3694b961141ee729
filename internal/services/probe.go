// Package services – GitLab probe
//
// This file implements HTTPProbe, the reachability and content check run
// before a repository is registered. It fetches the project page and looks
// for a marker that identifies a GitLab instance, so arbitrary URLs cannot
// be registered.
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultProbeMarker is the string a GitLab page is expected to contain.
	DefaultProbeMarker = "GitLab"
	// probeUserAgent identifies the probe to GitLab access logs.
	probeUserAgent = "gitlab-telegram-bot/1.0 (+registration probe)"
	// maxProbeBody caps how much of the page is read.
	maxProbeBody = 2 << 20
)

// HTTPProbe fetches a URL and checks it for a GitLab marker.
type HTTPProbe struct {
	Client *http.Client
	Marker string
}

// NewHTTPProbe returns a probe with the given timeout and marker. An empty
// marker falls back to DefaultProbeMarker.
func NewHTTPProbe(timeout time.Duration, marker string) *HTTPProbe {
	if strings.TrimSpace(marker) == "" {
		marker = DefaultProbeMarker
	}
	return &HTTPProbe{
		Client: &http.Client{Timeout: timeout},
		Marker: marker,
	}
}

// Probe returns nil when url serves a GitLab page.
//
// Errors:
//   - ErrUnreachable (wrapped) for non-2xx responses.
//   - ErrNotGitLab when the page lacks the marker.
//   - Any other error is a transport fault (DNS, refused, timeout).
func (p *HTTPProbe) Probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", probeUserAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return fmt.Errorf("reading page: %w", err)
	}
	if !p.hasMarker(body) {
		return ErrNotGitLab
	}
	return nil
}

// hasMarker looks at the places GitLab brands its pages (og:site_name,
// application-name, title) and falls back to the raw markup.
func (p *HTTPProbe) hasMarker(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		found := false
		doc.Find(`meta[property="og:site_name"], meta[name="application-name"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if content, ok := sel.Attr("content"); ok && strings.Contains(content, p.Marker) {
				found = true
				return false
			}
			return true
		})
		if found || strings.Contains(doc.Find("title").Text(), p.Marker) {
			return true
		}
	}
	return bytes.Contains(body, []byte(p.Marker))
}
