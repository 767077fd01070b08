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
	// AltmetricBaseURL is the Altmetric details API base URL.
	AltmetricBaseURL = "https://api.altmetric.com"

	// AltmetricRateLimit honors the free-tier one request per second.
	AltmetricRateLimit = 1.0
)

// AltmetricClient fetches alternative-attention signals for a DOI. It is
// not a CitationSource; its output feeds the readership estimator.
type AltmetricClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	apiKey     string
}

// AltmetricOption configures an AltmetricClient.
type AltmetricOption func(*AltmetricClient)

// WithAltmetricBaseURL sets a custom base URL (for testing).
func WithAltmetricBaseURL(u string) AltmetricOption {
	return func(c *AltmetricClient) {
		c.baseURL = u
	}
}

// WithAltmetricHTTPClient sets a custom HTTP client.
func WithAltmetricHTTPClient(hc *http.Client) AltmetricOption {
	return func(c *AltmetricClient) {
		c.httpClient = hc
	}
}

// WithAltmetricAPIKey sets the API key appended to requests.
func WithAltmetricAPIKey(key string) AltmetricOption {
	return func(c *AltmetricClient) {
		c.apiKey = key
	}
}

// NewAltmetricClient creates an Altmetric provider client.
func NewAltmetricClient(opts ...AltmetricOption) *AltmetricClient {
	c := &AltmetricClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(AltmetricRateLimit), 1),
		baseURL:    AltmetricBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *AltmetricClient) Name() string {
	return "altmetric"
}

type altmetricDetails struct {
	Score         float64 `json:"score"`
	TweetersCount int     `json:"cited_by_tweeters_count"`
	MSMCount      int     `json:"cited_by_msm_count"`
	PoliciesCount int     `json:"cited_by_policies_count"`
	Readers       struct {
		Mendeley int `json:"mendeley"`
	} `json:"readers"`
}

// FetchAttention returns attention signals for a DOI. A 404 means the
// DOI has no recorded attention and yields a zero-valued record, not an
// error.
func (c *AltmetricClient) FetchAttention(ctx context.Context, doi string) (*AttentionRecord, error) {
	if err := ValidateDOI(doi); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/doi/%s", c.baseURL, url.PathEscape(doi))
	if c.apiKey != "" {
		reqURL += "?key=" + url.QueryEscape(c.apiKey)
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
		return &AttentionRecord{}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return nil, &APIError{Provider: c.Name(), StatusCode: resp.StatusCode, Message: "unexpected status"}
	}

	return c.parseDetails(resp.Body)
}

// parseDetails is the normalization boundary for Altmetric responses.
func (c *AltmetricClient) parseDetails(body io.Reader) (*AttentionRecord, error) {
	var details altmetricDetails
	if err := json.NewDecoder(body).Decode(&details); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return &AttentionRecord{
		Score:           details.Score,
		SocialMentions:  details.TweetersCount,
		MSMMentions:     details.MSMCount,
		PolicyCitations: details.PoliciesCount,
		MendeleyReaders: details.Readers.Mendeley,
		HasData:         true,
	}, nil
}
