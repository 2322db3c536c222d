package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/japaniel/bsdetect/pkg/apperr"
)

// DefaultUserAgent identifies the service to the sites it reads.
const DefaultUserAgent = "Mozilla/5.0 (compatible; BullshitDetector/1.0; +https://bsdetect.org)"

// DefaultMaxBodyBytes bounds every download.
const DefaultMaxBodyBytes = 10 * 1024 * 1024

// Resource is a downloaded body.
type Resource struct {
	URL         *url.URL
	ContentType string
	Body        []byte
}

// Fetcher performs bounded GET requests.
type Fetcher struct {
	Client       *http.Client
	UserAgent    string
	MaxBodyBytes int64
}

// NewFetcher returns a Fetcher with its own client. Zero values select the
// defaults.
func NewFetcher(userAgent string, timeout time.Duration, maxBodyBytes int64) *Fetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Fetcher{
		Client:       &http.Client{Timeout: timeout},
		UserAgent:    userAgent,
		MaxBodyBytes: maxBodyBytes,
	}
}

// Fetch downloads an http or https URL. Failures are reported at the fetch
// stage.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Resource, error) {
	u, err := parseWebURL(rawURL)
	if err != nil {
		return nil, err
	}
	return f.get(ctx, u, apperr.CodeFetchFailed, apperr.StageFetch)
}

// Download is Fetch for user-supplied file references. It also accepts
// RFC 2397 data URLs. Failures are reported at the download stage.
func (f *Fetcher) Download(ctx context.Context, rawURL string) (*Resource, error) {
	if isDataURL(rawURL) {
		return f.decodeDataURL(rawURL)
	}
	u, err := parseWebURL(rawURL)
	if err != nil {
		return nil, err
	}
	return f.get(ctx, u, apperr.CodeDownloadFailed, apperr.StageDownload)
}

func (f *Fetcher) get(ctx context.Context, u *url.URL, code apperr.Code, stage apperr.Stage) (*Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, apperr.Upstreamf(code, stage, "create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, apperr.Upstream(code, stage, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Upstreamf(code, stage, "%s", resp.Status)
	}

	limit := f.maxBody()
	if resp.ContentLength > limit {
		return nil, apperr.Upstreamf(code, stage, "content length %d exceeds limit of %d bytes", resp.ContentLength, limit)
	}
	// Read one byte past the limit to tell "exactly at limit" from "too big".
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, apperr.Upstreamf(code, stage, "read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, apperr.Upstreamf(code, stage, "body exceeds limit of %d bytes", limit)
	}

	return &Resource{
		URL:         resp.Request.URL,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (f *Fetcher) client() *http.Client {
	if f.Client == nil {
		return http.DefaultClient
	}
	return f.Client
}

func (f *Fetcher) userAgent() string {
	if f.UserAgent == "" {
		return DefaultUserAgent
	}
	return f.UserAgent
}

func (f *Fetcher) maxBody() int64 {
	if f.MaxBodyBytes <= 0 {
		return DefaultMaxBodyBytes
	}
	return f.MaxBodyBytes
}

// parseWebURL accepts absolute http and https URLs only.
func parseWebURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" {
		return nil, apperr.Validation(apperr.CodeInvalidURL, apperr.StageInput, rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, apperr.Validation(apperr.CodeUnsupportedScheme, apperr.StageInput, u.Scheme)
	}
	if u.Host == "" {
		return nil, apperr.Validation(apperr.CodeInvalidURL, apperr.StageInput, rawURL)
	}
	return u, nil
}

func isDataURL(rawURL string) bool {
	return len(rawURL) >= 5 && strings.EqualFold(rawURL[:5], "data:")
}

// decodeDataURL handles data:[<mediatype>][;base64],<data>.
func (f *Fetcher) decodeDataURL(rawURL string) (*Resource, error) {
	meta, payload, ok := strings.Cut(rawURL[5:], ",")
	if !ok {
		return nil, apperr.Validation(apperr.CodeInvalidURL, apperr.StageInput, "data URL without payload")
	}

	isBase64 := false
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		isBase64 = true
		meta = meta[:len(meta)-len(";base64")]
	}
	if meta == "" {
		meta = "text/plain;charset=US-ASCII"
	}

	var body []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some clients drop the padding.
			decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
			if err != nil {
				return nil, apperr.Upstreamf(apperr.CodeDownloadFailed, apperr.StageDownload, "decode data URL: %w", err)
			}
		}
		body = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, apperr.Upstreamf(apperr.CodeDownloadFailed, apperr.StageDownload, "decode data URL: %w", err)
		}
		body = []byte(unescaped)
	}

	if int64(len(body)) > f.maxBody() {
		return nil, apperr.Validationf(apperr.CodeFileTooLarge, apperr.StageInput, "%d bytes exceeds limit of %d", len(body), f.maxBody())
	}
	return &Resource{ContentType: meta, Body: body}, nil
}

// String implements fmt.Stringer for log fields.
func (r *Resource) String() string {
	if r.URL == nil {
		return fmt.Sprintf("data (%s, %d bytes)", r.ContentType, len(r.Body))
	}
	return fmt.Sprintf("%s (%s, %d bytes)", r.URL, r.ContentType, len(r.Body))
}
