package extract

import (
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"newscollector/internal/domain"
)

// ReadabilityExtractor is the primary general-purpose strategy. It scores
// DOM blocks by text and link density and returns the best candidate's
// text with the inferred page title.
type ReadabilityExtractor struct{}

var _ Strategy = (*ReadabilityExtractor)(nil)

// NewReadabilityExtractor builds the strategy.
func NewReadabilityExtractor() *ReadabilityExtractor {
	return &ReadabilityExtractor{}
}

// Name identifies the strategy inside the chain.
func (r *ReadabilityExtractor) Name() string { return "readability" }

// Extract runs readability over the raw HTML. Any internal failure
// degrades to "no result".
func (r *ReadabilityExtractor) Extract(html, sourceURL string) (domain.ExtractedContent, bool) {
	pageURL, _ := url.Parse(sourceURL)

	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return domain.ExtractedContent{}, false
	}

	body := strings.TrimSpace(article.TextContent)
	if body == "" {
		return domain.ExtractedContent{}, false
	}

	return domain.ExtractedContent{Title: article.Title, Body: body}, true
}
