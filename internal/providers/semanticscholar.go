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
	// SemanticScholarBaseURL is the Semantic Scholar Graph API base URL.
	SemanticScholarBaseURL = "https://api.semanticscholar.org/graph/v1"

	// SemanticScholarRateLimit keeps unauthenticated usage under the
	// documented 100 requests per 5 minutes.
	SemanticScholarRateLimit = 0.3
)

// SemanticScholarClient resolves citation counts through the Semantic
// Scholar graph API. It prefers a DOI lookup and falls back to a
// title search when no DOI is known.
type SemanticScholarClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	apiKey     string
}

// SemanticScholarOption configures a SemanticScholarClient.
type SemanticScholarOption func(*SemanticScholarClient)

// WithSemanticScholarBaseURL sets a custom base URL (for testing).
func WithSemanticScholarBaseURL(u string) SemanticScholarOption {
	return func(c *SemanticScholarClient) {
		c.baseURL = u
	}
}

// WithSemanticScholarHTTPClient sets a custom HTTP client.
func WithSemanticScholarHTTPClient(hc *http.Client) SemanticScholarOption {
	return func(c *SemanticScholarClient) {
		c.httpClient = hc
	}
}

// WithSemanticScholarAPIKey sets the API key; keyed clients get a much
// higher rate allowance.
func WithSemanticScholarAPIKey(key string) SemanticScholarOption {
	return func(c *SemanticScholarClient) {
		c.apiKey = key
		c.limiter = rate.NewLimiter(rate.Limit(1.0), 1)
	}
}

// NewSemanticScholarClient creates a Semantic Scholar provider client.
func NewSemanticScholarClient(opts ...SemanticScholarOption) *SemanticScholarClient {
	c := &SemanticScholarClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(SemanticScholarRateLimit), 1),
		baseURL:    SemanticScholarBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SemanticScholarClient) Name() string {
	return "semantic_scholar"
}

func (c *SemanticScholarClient) RequiresDOI() bool {
	return false
}

type semanticScholarPaper struct {
	PaperID       string `json:"paperId"`
	Title         string `json:"title"`
	Year          int    `json:"year"`
	CitationCount *int   `json:"citationCount"`
}

type semanticScholarSearch struct {
	Total int                    `json:"total"`
	Data  []semanticScholarPaper `json:"data"`
}

func (c *SemanticScholarClient) FetchCitations(ctx context.Context, doi, title string, year int) (*CitationObservation, error) {
	if doi != "" {
		if err := ValidateDOI(doi); err != nil {
			return nil, err
		}
		body, err := c.get(ctx, fmt.Sprintf("%s/paper/DOI:%s?fields=citationCount,paperId", c.baseURL, url.PathEscape(doi)))
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return c.parsePaper(body)
	}
	return c.searchByTitle(ctx, title)
}

func (c *SemanticScholarClient) searchByTitle(ctx context.Context, title string) (*CitationObservation, error) {
	if title == "" {
		return nil, ErrNotFound
	}
	reqURL := fmt.Sprintf("%s/paper/search?query=%s&fields=citationCount,paperId,title,year&limit=1",
		c.baseURL, url.QueryEscape(title))
	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return c.parseSearch(body)
}

func (c *SemanticScholarClient) get(ctx context.Context, reqURL string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, &APIError{Provider: c.Name(), StatusCode: resp.StatusCode, Message: "unexpected status"}
	}

	return resp.Body, nil
}

// parsePaper is the normalization boundary for single-paper responses.
// An absent citationCount means the paper is known with zero registered
// citations.
func (c *SemanticScholarClient) parsePaper(body io.Reader) (*CitationObservation, error) {
	var paper semanticScholarPaper
	if err := json.NewDecoder(body).Decode(&paper); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if paper.PaperID == "" {
		return nil, ErrNotFound
	}

	count := 0
	if paper.CitationCount != nil {
		count = *paper.CitationCount
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative citation count %d", ErrInvalidResponse, count)
	}

	return &CitationObservation{
		ProviderName:    c.Name(),
		Count:           count,
		ExternalPaperID: paper.PaperID,
	}, nil
}

// parseSearch normalizes a title-search response, taking the top match.
func (c *SemanticScholarClient) parseSearch(body io.Reader) (*CitationObservation, error) {
	var result semanticScholarSearch
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(result.Data) == 0 {
		return nil, ErrNotFound
	}

	top := result.Data[0]
	count := 0
	if top.CitationCount != nil {
		count = *top.CitationCount
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative citation count %d", ErrInvalidResponse, count)
	}

	return &CitationObservation{
		ProviderName:    c.Name(),
		Count:           count,
		ExternalPaperID: top.PaperID,
	}, nil
}
