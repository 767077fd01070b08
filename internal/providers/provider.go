package providers

import (
	"context"
	"regexp"
)

// CitationObservation is the normalized result of one provider query.
// It lives only for the duration of a reconciliation call; raw provider
// JSON never leaves the client that parsed it.
type CitationObservation struct {
	ProviderName    string
	Count           int
	ExternalPaperID string
}

// AttentionRecord carries alternative-attention signals for a DOI. A
// zero-valued record with HasData false means the provider knows nothing
// about the DOI, which is a valid answer rather than a failure.
type AttentionRecord struct {
	Score           float64
	SocialMentions  int
	MSMMentions     int
	PolicyCitations int
	MendeleyReaders int
	HasData         bool
}

// CitationSource is one external bibliographic provider capable of
// answering "how many citations does this publication have".
type CitationSource interface {
	// Name identifies the provider in observation provenance. The
	// configured order of sources doubles as the tie-break priority.
	Name() string

	// RequiresDOI reports whether the source can only operate on a DOI.
	// Sources with a title-search fallback return false.
	RequiresDOI() bool

	// FetchCitations looks the publication up and returns a normalized
	// observation. ErrNotFound means the provider has no record;
	// providers that distinguish "known with zero citations" return a
	// zero-count observation instead.
	FetchCitations(ctx context.Context, doi, title string, year int) (*CitationObservation, error)
}

var doiPattern = regexp.MustCompile(`^10\.\d{1,9}/\S+$`)

// ValidateDOI checks the identifier against the DOI syntax before any
// network call is attempted.
func ValidateDOI(doi string) error {
	if !doiPattern.MatchString(doi) {
		return ErrMalformedDOI
	}
	return nil
}
