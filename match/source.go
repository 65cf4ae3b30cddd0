package match

import (
	"context"

	"skinmatch"
	"skinmatch/normalize"
)

// Source provides raw product records. GetByID returns ErrNotFound for
// unknown ids.
type Source interface {
	ListAll(ctx context.Context) ([]normalize.Record, error)
	GetByID(ctx context.Context, id string) (normalize.Record, error)
}

// PriceFilterer is implemented by sources that can filter by price themselves
type PriceFilterer interface {
	FilterByMaxPrice(ctx context.Context, maxPrice skinmatch.Cents) ([]normalize.Record, error)
}

// VocabularySource is implemented by sources whose records are tagged from a
// closed vocabulary. Search tags outside it are rejected.
type VocabularySource interface {
	Vocabulary() skinmatch.Vocabulary
}

// TextSearcher is implemented by sources backed by a free-text search API.
// Search tags are turned into a search phrase instead of being validated.
type TextSearcher interface {
	SearchText(ctx context.Context, phrase string) ([]normalize.Record, error)
}

// Recommendation is generated copy for a product and a shopper's preferences
type Recommendation struct {
	Description string
	Routine     string
}

type RecommendRequest struct {
	Product    skinmatch.Product
	Preference string
}

// Generator writes personalized recommendations
type Generator interface {
	Recommend(ctx context.Context, req RecommendRequest) (Recommendation, error)
}

// Composer turns concern tags into a search phrase for text search sources
type Composer interface {
	ComposeQuery(ctx context.Context, tags []string) (string, error)
}
