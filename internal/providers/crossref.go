package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// CrossRefBaseURL is the CrossRef REST API base URL.
	CrossRefBaseURL = "https://api.crossref.org"

	// CrossRefRateLimit follows the polite-pool guidance of staying well
	// under 50 requests per second.
	CrossRefRateLimit = 10.0
)

// CrossRefClient resolves citation counts through the CrossRef works
// endpoint. It can only operate on a DOI.
type CrossRefClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	mailto     string
}

// CrossRefOption configures a CrossRefClient.
type CrossRefOption func(*CrossRefClient)

// WithCrossRefBaseURL sets a custom base URL (for testing).
func WithCrossRefBaseURL(u string) CrossRefOption {
	return func(c *CrossRefClient) {
		c.baseURL = u
	}
}

// WithCrossRefHTTPClient sets a custom HTTP client.
func WithCrossRefHTTPClient(hc *http.Client) CrossRefOption {
	return func(c *CrossRefClient) {
		c.httpClient = hc
	}
}

// WithCrossRefMailto sets the polite-pool contact address sent with
// every request.
func WithCrossRefMailto(mailto string) CrossRefOption {
	return func(c *CrossRefClient) {
		c.mailto = mailto
	}
}

// NewCrossRefClient creates a CrossRef provider client.
func NewCrossRefClient(opts ...CrossRefOption) *CrossRefClient {
	c := &CrossRefClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(CrossRefRateLimit), 1),
		baseURL:    CrossRefBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CrossRefClient) Name() string {
	return "crossref"
}

func (c *CrossRefClient) RequiresDOI() bool {
	return true
}

// crossRefWork mirrors the subset of the works response this client
// reads. A missing is-referenced-by-count means zero, not not-found:
// CrossRef returns the record even when no citations are registered.
type crossRefWork struct {
	Message struct {
		DOI             string `json:"DOI"`
		ReferencedCount *int   `json:"is-referenced-by-count"`
	} `json:"message"`
}

func (c *CrossRefClient) FetchCitations(ctx context.Context, doi, title string, year int) (*CitationObservation, error) {
	if err := ValidateDOI(doi); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := fmt.Sprintf("%s/works/%s", c.baseURL, url.PathEscape(doi))
	if c.mailto != "" {
		reqURL += "?mailto=" + url.QueryEscape(c.mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return nil, &APIError{Provider: c.Name(), StatusCode: resp.StatusCode, Message: "unexpected status"}
	}

	return c.parseWork(resp.Body, doi)
}

// parseWork is the single normalization boundary for CrossRef responses.
func (c *CrossRefClient) parseWork(body io.Reader, doi string) (*CitationObservation, error) {
	var work crossRefWork
	if err := json.NewDecoder(body).Decode(&work); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	count := 0
	if work.Message.ReferencedCount != nil {
		count = *work.Message.ReferencedCount
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative citation count %d", ErrInvalidResponse, count)
	}

	return &CitationObservation{
		ProviderName:    c.Name(),
		Count:           count,
		ExternalPaperID: doi,
	}, nil
}
