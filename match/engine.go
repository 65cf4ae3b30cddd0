package match

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"skinmatch"
	"skinmatch/normalize"
)

const (
	DefaultDisplayCap      = 10
	DefaultSimilarCount    = 4
	DefaultSourceTimeout   = 10 * time.Second
	DefaultGenerateTimeout = 15 * time.Second
)

type Options struct {
	// Generator writes detail recommendations. Detail skips recommendations
	// when it is nil.
	Generator Generator
	// Composer builds search phrases for text search sources. Without one
	// the tags are joined with commas.
	Composer Composer

	Logger          *zerolog.Logger
	Vocabulary      skinmatch.Vocabulary
	SourceTimeout   time.Duration
	GenerateTimeout time.Duration
	DisplayCap      int
	SimilarCount    int
}

// Engine selects, ranks and describes products from a single source
type Engine struct {
	source     Source
	normalizer normalize.Normalizer
	opts       Options
	log        zerolog.Logger
	cache      *recommendationCache
}

func New(source Source, opts Options) *Engine {
	if opts.Vocabulary.Len() == 0 {
		opts.Vocabulary = skinmatch.ConcernVocabulary
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = DefaultSourceTimeout
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = DefaultGenerateTimeout
	}
	if opts.DisplayCap <= 0 {
		opts.DisplayCap = DefaultDisplayCap
	}
	if opts.SimilarCount <= 0 {
		opts.SimilarCount = DefaultSimilarCount
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Engine{
		source:     source,
		normalizer: normalize.New(opts.Vocabulary),
		opts:       opts,
		log:        logger.With().Str("component", "match").Logger(),
		cache:      newRecommendationCache(),
	}
}

// SearchResult holds at most the display cap of ranked products. Total is the
// number of matches before truncation.
type SearchResult struct {
	Products []Result
	Tags     []string
	Total    int
	MaxPrice *skinmatch.Cents
	// Phrase is the search phrase sent to a text search source
	Phrase string
}

// Search finds the products sharing the most tags with tags, optionally
// priced at or under maxPrice.
func (e *Engine) Search(ctx context.Context, tags []string, maxPrice *skinmatch.Cents) (SearchResult, error) {
	tags = cleanTags(tags)
	if len(tags) == 0 {
		return SearchResult{}, ErrNoTags
	}

	result := SearchResult{Tags: tags, MaxPrice: maxPrice}

	var records []normalize.Record
	var err error
	if ts, ok := e.source.(TextSearcher); ok {
		result.Phrase, err = e.composeQuery(ctx, tags)
		if err != nil {
			return SearchResult{}, err
		}
		records, err = withTimeout(ctx, e.opts.SourceTimeout, func(ctx context.Context) ([]normalize.Record, error) {
			return ts.SearchText(ctx, result.Phrase)
		})
	} else {
		if vs, ok := e.source.(VocabularySource); ok {
			result.Tags, err = validateTags(tags, vs.Vocabulary())
			if err != nil {
				return SearchResult{}, err
			}
		}
		records, err = e.fetch(ctx, maxPrice)
	}
	if err != nil {
		return SearchResult{}, &UpstreamError{Component: "product source", Err: err}
	}

	products := e.normalizeAll(records)
	ranked := Rank(products, result.Tags, maxPrice)
	if len(ranked) == 0 {
		return SearchResult{}, &NoMatchesError{Tags: result.Tags, MaxPrice: maxPrice}
	}

	result.Total = len(ranked)
	if len(ranked) > e.opts.DisplayCap {
		ranked = ranked[:e.opts.DisplayCap]
	}
	result.Products = ranked

	e.log.Debug().
		Strs("tags", result.Tags).
		Int("candidates", len(products)).
		Int("total", result.Total).
		Msg("search complete")

	return result, nil
}

func (e *Engine) fetch(ctx context.Context, maxPrice *skinmatch.Cents) ([]normalize.Record, error) {
	if pf, ok := e.source.(PriceFilterer); ok && maxPrice != nil {
		return withTimeout(ctx, e.opts.SourceTimeout, func(ctx context.Context) ([]normalize.Record, error) {
			return pf.FilterByMaxPrice(ctx, *maxPrice)
		})
	}
	return withTimeout(ctx, e.opts.SourceTimeout, e.source.ListAll)
}

func (e *Engine) composeQuery(ctx context.Context, tags []string) (string, error) {
	if e.opts.Composer == nil {
		return strings.Join(tags, ", "), nil
	}
	phrase, err := withTimeout(ctx, e.opts.GenerateTimeout, func(ctx context.Context) (string, error) {
		return e.opts.Composer.ComposeQuery(ctx, tags)
	})
	if err != nil {
		return "", &UpstreamError{Component: "text generator", Err: err}
	}
	return phrase, nil
}

func (e *Engine) normalizeAll(records []normalize.Record) []skinmatch.Product {
	products, dropped := e.normalizer.NormalizeAll(records)
	for _, err := range dropped {
		e.log.Debug().Err(err).Msg("dropping product record")
	}
	return products
}

// DetailResult describes a single product. Similar is empty for text search
// sources and Recommendation is nil when no generator is configured.
type DetailResult struct {
	Product        skinmatch.Product
	Recommendation *Recommendation
	Similar        []Result
}

// Detail loads a product, its most similar products and a recommendation
// written for preference. Recommendations are cached per product and
// preference for the life of the engine.
func (e *Engine) Detail(ctx context.Context, productID, preference string) (DetailResult, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return DetailResult{}, fmt.Errorf("%w: empty product id", ErrNotFound)
	}

	_, textSource := e.source.(TextSearcher)

	var target normalize.Record
	var all []normalize.Record

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := withTimeout(gctx, e.opts.SourceTimeout, func(ctx context.Context) (normalize.Record, error) {
			return e.source.GetByID(ctx, productID)
		})
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, productID)
		}
		if err != nil {
			return &UpstreamError{Component: "product source", Product: productID, Err: err}
		}
		target = r
		return nil
	})
	if !textSource {
		g.Go(func() error {
			records, err := withTimeout(gctx, e.opts.SourceTimeout, e.source.ListAll)
			if err != nil {
				return &UpstreamError{Component: "product source", Err: err}
			}
			all = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DetailResult{}, err
	}

	product, err := e.normalizer.Normalize(target)
	if err != nil {
		return DetailResult{}, fmt.Errorf("%w: %s (%v)", ErrNotFound, productID, err)
	}

	result := DetailResult{Product: product}
	if !textSource {
		result.Similar = Similar(product, e.normalizeAll(all), e.opts.SimilarCount)
	}

	if e.opts.Generator != nil {
		rec, err := e.recommend(ctx, product, preference)
		if err != nil {
			return DetailResult{}, err
		}
		result.Recommendation = &rec
	}

	return result, nil
}

func (e *Engine) recommend(ctx context.Context, product skinmatch.Product, preference string) (Recommendation, error) {
	if rec, ok := e.cache.get(product.ID, preference); ok {
		e.log.Debug().Str("product", product.ID).Msg("recommendation cache hit")
		return rec, nil
	}

	rec, err := withTimeout(ctx, e.opts.GenerateTimeout, func(ctx context.Context) (Recommendation, error) {
		return e.opts.Generator.Recommend(ctx, RecommendRequest{Product: product, Preference: preference})
	})
	if err != nil {
		return Recommendation{}, &UpstreamError{Component: "text generator", Product: product.Name, Err: err}
	}

	e.cache.put(product.ID, preference, rec)
	return rec, nil
}

// validateTags fails when any tag is outside vocabulary and otherwise returns
// the tags in vocabulary casing.
func validateTags(tags []string, vocabulary skinmatch.Vocabulary) ([]string, error) {
	canonical := make([]string, 0, len(tags))
	var invalid []string
	for _, tag := range tags {
		c, ok := vocabulary.Canonical(tag)
		if !ok {
			invalid = append(invalid, tag)
			continue
		}
		canonical = append(canonical, c)
	}
	if len(invalid) > 0 {
		return nil, &ValidationError{Invalid: invalid, Allowed: vocabulary.Values()}
	}
	return canonical, nil
}

func cleanTags(tags []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := skinmatch.TagKey(tag)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	return out
}

func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
