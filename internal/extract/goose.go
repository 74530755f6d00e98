package extract

import (
	"strings"

	goose "github.com/advancedlogic/GoOse/pkg/goose"

	"newscollector/internal/domain"
)

// GooseExtractor is the secondary general-purpose strategy, tried only when
// readability yields nothing usable. Different heuristics, same contract.
type GooseExtractor struct {
	g goose.Goose
}

var _ Strategy = (*GooseExtractor)(nil)

// NewGooseExtractor builds the strategy with default goose configuration.
func NewGooseExtractor() *GooseExtractor {
	return &GooseExtractor{g: goose.New()}
}

// Name identifies the strategy inside the chain.
func (e *GooseExtractor) Name() string { return "goose" }

// Extract runs goose over the raw HTML. Any internal failure degrades to
// "no result".
func (e *GooseExtractor) Extract(html, sourceURL string) (domain.ExtractedContent, bool) {
	article, err := e.g.ExtractFromRawHTML(html, sourceURL)
	if err != nil || article == nil {
		return domain.ExtractedContent{}, false
	}

	body := strings.TrimSpace(article.CleanedText)
	if body == "" {
		return domain.ExtractedContent{}, false
	}

	return domain.ExtractedContent{Title: article.Title, Body: body}, true
}
