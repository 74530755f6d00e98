package storage

import (
	"newscollector/internal/domain"
	"newscollector/internal/normalize"
)

// preparedArticle is the derived, storage-ready form of a draft: the
// canonical URL, content hash and capped body are computed here so every
// repository implementation persists identical values.
type preparedArticle struct {
	domain.ArticleDraft
	CanonicalURL string
	HashSHA256   string
}

func prepareArticle(draft domain.ArticleDraft, maxBodyChars int) preparedArticle {
	canonical := normalize.Canonicalize(draft.URL)
	// The hash covers the untruncated body prefix; the cap only bounds
	// what is stored.
	hash := normalize.ContentHash(canonical, draft.Body)
	draft.Body = normalize.TruncateBody(draft.Body, maxBodyChars)

	return preparedArticle{
		ArticleDraft: draft,
		CanonicalURL: canonical,
		HashSHA256:   hash,
	}
}
