package extract

import (
	"log/slog"

	"newscollector/internal/domain"
)

// Strategy is one body-extraction approach. Implementations must isolate
// their own failures and report ok=false instead of propagating them.
type Strategy interface {
	Name() string
	Extract(html, sourceURL string) (domain.ExtractedContent, bool)
}

// Chain tries strategies in priority order and returns the first result
// whose cleaned body exceeds the minimum length threshold. A strategy
// error or panic never aborts the chain.
type Chain struct {
	strategies   []Strategy
	minBodyChars int
	logger       *slog.Logger
}

// NewChain builds a chain with the given acceptance threshold. A threshold
// of 0 accepts any non-empty body.
func NewChain(minBodyChars int, logger *slog.Logger, strategies ...Strategy) *Chain {
	return &Chain{
		strategies:   strategies,
		minBodyChars: minBodyChars,
		logger:       logger,
	}
}

// Extract runs the chain over raw page HTML. The same cleanup pass is
// applied to every result so final bodies are normalized consistently no
// matter which strategy produced them. Returns ok=false when no strategy
// yields an acceptable body.
func (c *Chain) Extract(html, sourceURL string) (domain.ExtractedContent, bool) {
	for _, s := range c.strategies {
		content, ok := c.tryStrategy(s, html, sourceURL)
		if !ok {
			continue
		}

		content.Body = Clean(content.Body)
		content.Title = CollapseSpaces(content.Title)

		if content.Body == "" || len([]rune(content.Body)) <= c.minBodyChars {
			c.debug("body below threshold", s, sourceURL, len(content.Body))
			continue
		}

		c.debug("extracted", s, sourceURL, len(content.Body))
		return content, true
	}

	return domain.ExtractedContent{}, false
}

func (c *Chain) tryStrategy(s Strategy, html, sourceURL string) (content domain.ExtractedContent, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if c.logger != nil {
				c.logger.Warn("extractor panicked", "strategy", s.Name(), "url", sourceURL, "panic", r)
			}
			content, ok = domain.ExtractedContent{}, false
		}
	}()
	return s.Extract(html, sourceURL)
}

func (c *Chain) debug(msg string, s Strategy, sourceURL string, bodyLen int) {
	if c.logger != nil {
		c.logger.Debug(msg, "strategy", s.Name(), "url", sourceURL, "body_len", bodyLen)
	}
}
