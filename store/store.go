// Package store holds the local product sources: an in-memory catalog and a
// Postgres table. Both tag products from a closed concern vocabulary.
package store

import "skinmatch/match"

var (
	_ match.Source           = (*Memory)(nil)
	_ match.PriceFilterer    = (*Memory)(nil)
	_ match.VocabularySource = (*Memory)(nil)

	_ match.Source           = (*Postgres)(nil)
	_ match.PriceFilterer    = (*Postgres)(nil)
	_ match.VocabularySource = (*Postgres)(nil)
)
