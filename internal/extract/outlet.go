package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newscollector/internal/domain"
)

// OutletRule describes where a known outlet keeps its article body and
// title inside the page structure.
type OutletRule struct {
	HostSuffix     string
	BodySelector   string
	TitleSelectors []string
	// JoinParagraphs extracts the text of each matched node separately
	// and joins them, for outlets that spread the body across <p> tags.
	JoinParagraphs bool
}

// OutletExtractor matches known outlet HTML structures via a host-keyed
// rule set. It is the highest-priority strategy in the chain.
type OutletExtractor struct {
	rules []OutletRule
}

var _ Strategy = (*OutletExtractor)(nil)

// NewOutletExtractor builds the strategy with the default rule set.
func NewOutletExtractor() *OutletExtractor {
	return &OutletExtractor{rules: defaultOutletRules()}
}

// NewOutletExtractorWithRules builds the strategy from explicit rules.
func NewOutletExtractorWithRules(rules []OutletRule) *OutletExtractor {
	return &OutletExtractor{rules: rules}
}

func defaultOutletRules() []OutletRule {
	return []OutletRule{
		{
			HostSuffix:     "yna.co.kr",
			BodySelector:   "div.story-news.article",
			TitleSelectors: []string{"h1.tit", "h1"},
		},
		{
			HostSuffix:     "donga.com",
			BodySelector:   "div.article_txt p",
			TitleSelectors: []string{"h1"},
			JoinParagraphs: true,
		},
	}
}

// Name identifies the strategy inside the chain.
func (o *OutletExtractor) Name() string { return "outlet" }

// Extract applies the rule matching the source host, if any. A parse
// failure or an unmatched host yields no result; the chain moves on.
func (o *OutletExtractor) Extract(html, sourceURL string) (domain.ExtractedContent, bool) {
	rule, ok := o.match(sourceURL)
	if !ok {
		return domain.ExtractedContent{}, false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.ExtractedContent{}, false
	}

	var body string
	if rule.JoinParagraphs {
		parts := make([]string, 0, 16)
		doc.Find(rule.BodySelector).Each(func(_ int, sel *goquery.Selection) {
			if t := strings.TrimSpace(sel.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		body = strings.Join(parts, " ")
	} else {
		body = strings.TrimSpace(doc.Find(rule.BodySelector).First().Text())
	}

	if body == "" {
		return domain.ExtractedContent{}, false
	}

	var title string
	for _, sel := range rule.TitleSelectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			title = t
			break
		}
	}

	return domain.ExtractedContent{Title: title, Body: body}, true
}

func (o *OutletExtractor) match(sourceURL string) (OutletRule, bool) {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Host == "" {
		return OutletRule{}, false
	}
	host := strings.ToLower(u.Host)
	for _, rule := range o.rules {
		if host == rule.HostSuffix || strings.HasSuffix(host, "."+rule.HostSuffix) {
			return rule, true
		}
	}
	return OutletRule{}, false
}
