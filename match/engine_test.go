package match

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skinmatch"
	"skinmatch/normalize"
)

type fakeSource struct {
	records []normalize.Record
	err     error
	block   bool

	listCalls   atomic.Int32
	filterCalls atomic.Int32
	getCalls    atomic.Int32
}

func (s *fakeSource) wait(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func (s *fakeSource) ListAll(ctx context.Context) ([]normalize.Record, error) {
	s.listCalls.Add(1)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.records, nil
}

func (s *fakeSource) GetByID(ctx context.Context, id string) (normalize.Record, error) {
	s.getCalls.Add(1)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	for _, r := range s.records {
		if fmt.Sprint(r["id"]) == id {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

// catalogSource is a closed-vocabulary source with price push-down
type catalogSource struct {
	*fakeSource
}

func (s catalogSource) Vocabulary() skinmatch.Vocabulary {
	return skinmatch.ConcernVocabulary
}

func (s catalogSource) FilterByMaxPrice(ctx context.Context, maxPrice skinmatch.Cents) ([]normalize.Record, error) {
	s.filterCalls.Add(1)
	var out []normalize.Record
	for _, r := range s.records {
		if p, err := normalize.Price(r); err == nil && p <= maxPrice {
			out = append(out, r)
		}
	}
	return out, nil
}

// searchSource is a free-text search source
type searchSource struct {
	*fakeSource
	phrases []string
}

func (s *searchSource) SearchText(ctx context.Context, phrase string) ([]normalize.Record, error) {
	s.phrases = append(s.phrases, phrase)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.records, nil
}

type fakeGenerator struct {
	calls atomic.Int32
	err   error
}

func (g *fakeGenerator) Recommend(ctx context.Context, req RecommendRequest) (Recommendation, error) {
	g.calls.Add(1)
	if g.err != nil {
		return Recommendation{}, g.err
	}
	return Recommendation{
		Description: fmt.Sprintf("%s suits %s", req.Product.Name, req.Preference),
		Routine:     "AM: cleanse",
	}, nil
}

type fakeComposer struct {
	tags [][]string
}

func (c *fakeComposer) ComposeQuery(ctx context.Context, tags []string) (string, error) {
	c.tags = append(c.tags, tags)
	return "gentle acne cleanser", nil
}

func record(id string, price float64, labels string) normalize.Record {
	return normalize.Record{"id": id, "name": "Product " + id, "price": price, "labels": labels}
}

func resultIDs(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func cents(dollars float64) *skinmatch.Cents {
	c := skinmatch.CentsFromDollars(dollars)
	return &c
}

func TestSearchPriceAndOverlap(t *testing.T) {
	src := catalogSource{&fakeSource{records: []normalize.Record{
		record("cleanser", 15, "Oily skin,Blackheads,Whiteheads"),
		record("toner", 34, "Oily skin"),
	}}}
	e := New(src, Options{})

	result, err := e.Search(context.Background(), []string{"Oily skin", "Blackheads"}, cents(30))
	require.NoError(t, err)

	assert.Equal(t, []string{"cleanser"}, resultIDs(result.Products))
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 2, result.Products[0].Score)
	assert.Equal(t, int32(1), src.filterCalls.Load())
	assert.Equal(t, int32(0), src.listCalls.Load())
}

func TestSearchNoMatches(t *testing.T) {
	src := catalogSource{&fakeSource{records: []normalize.Record{
		record("cleanser", 15, "Oily skin"),
	}}}
	e := New(src, Options{})

	_, err := e.Search(context.Background(), []string{"melasma"}, nil)

	var noMatches *NoMatchesError
	require.ErrorAs(t, err, &noMatches)
	assert.Equal(t, []string{"Melasma"}, noMatches.Tags)
	assert.Nil(t, noMatches.MaxPrice)
	assert.Contains(t, err.Error(), "broadening")
}

func TestSearchNoMatchesCarriesPrice(t *testing.T) {
	src := catalogSource{&fakeSource{records: []normalize.Record{
		record("serum", 50, "Wrinkles"),
	}}}
	e := New(src, Options{})

	_, err := e.Search(context.Background(), []string{"Wrinkles"}, cents(20))

	var noMatches *NoMatchesError
	require.ErrorAs(t, err, &noMatches)
	require.NotNil(t, noMatches.MaxPrice)
	assert.Equal(t, skinmatch.Cents(2000), *noMatches.MaxPrice)
}

func TestSearchRejectsUnknownTags(t *testing.T) {
	src := catalogSource{&fakeSource{records: []normalize.Record{
		record("cleanser", 15, "Oily skin"),
	}}}
	e := New(src, Options{})

	_, err := e.Search(context.Background(), []string{"Oily skin", "Invisibility"}, cents(30))

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, []string{"Invisibility"}, validation.Invalid)
	assert.Equal(t, skinmatch.ConcernVocabulary.Values(), validation.Allowed)
	assert.Contains(t, err.Error(), `"Invisibility"`)

	assert.Equal(t, int32(0), src.listCalls.Load())
	assert.Equal(t, int32(0), src.filterCalls.Load())
}

func TestSearchRequiresTags(t *testing.T) {
	e := New(&fakeSource{}, Options{})

	_, err := e.Search(context.Background(), []string{" ", ""}, nil)
	assert.ErrorIs(t, err, ErrNoTags)
}

func TestSearchCanonicalizesTags(t *testing.T) {
	src := catalogSource{&fakeSource{records: []normalize.Record{
		record("cleanser", 15, "Oily skin"),
	}}}
	e := New(src, Options{})

	result, err := e.Search(context.Background(), []string{"OILY SKIN", "oily skin"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Oily skin"}, result.Tags)
}

func TestSearchDisplayCapAndOrdering(t *testing.T) {
	var records []normalize.Record
	for i := 0; i < 15; i++ {
		labels := "Oily skin"
		if i%3 == 0 {
			labels = "Oily skin,Large pores"
		}
		records = append(records, record(fmt.Sprintf("p%02d", i), float64(10+i), labels))
	}
	// unusable records are dropped, not fatal
	records = append(records, normalize.Record{"id": "broken", "name": "Broken", "labels": "Oily skin"})
	src := catalogSource{&fakeSource{records: records}}
	e := New(src, Options{})

	result, err := e.Search(context.Background(), []string{"Oily skin", "Large pores"}, nil)
	require.NoError(t, err)

	assert.Len(t, result.Products, DefaultDisplayCap)
	assert.Equal(t, 15, result.Total)
	assert.GreaterOrEqual(t, result.Total, len(result.Products))
	assert.Equal(t, []string{"p00", "p03", "p06", "p09", "p12", "p01", "p02", "p04", "p05", "p07"}, resultIDs(result.Products))
	for i := 1; i < len(result.Products); i++ {
		assert.GreaterOrEqual(t, result.Products[i-1].Score, result.Products[i].Score)
	}
	assert.NotContains(t, resultIDs(result.Products), "broken")

	again, err := e.Search(context.Background(), []string{"Oily skin", "Large pores"}, nil)
	require.NoError(t, err)
	assert.Equal(t, result, again)
}

func TestSearchClientSideFilterWithoutPushDown(t *testing.T) {
	src := &fakeSource{records: []normalize.Record{
		record("cheap", 15, "Oily skin"),
		record("pricey", 34, "Oily skin"),
	}}
	e := New(src, Options{})

	result, err := e.Search(context.Background(), []string{"Oily skin", "Anything goes"}, cents(30))
	require.NoError(t, err)
	assert.Equal(t, []string{"cheap"}, resultIDs(result.Products))
	assert.Equal(t, int32(1), src.listCalls.Load())
}

func TestSearchUpstreamFailure(t *testing.T) {
	src := catalogSource{&fakeSource{err: errors.New("connection refused")}}
	e := New(src, Options{})

	_, err := e.Search(context.Background(), []string{"Oily skin"}, nil)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSearchSourceTimeout(t *testing.T) {
	src := catalogSource{&fakeSource{block: true}}
	e := New(src, Options{SourceTimeout: 20 * time.Millisecond})

	_, err := e.Search(context.Background(), []string{"Oily skin"}, nil)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSearchTextSource(t *testing.T) {
	src := &searchSource{fakeSource: &fakeSource{records: []normalize.Record{
		{"product_id": "1", "title": "Calm Balm", "price_range": map[string]any{"min": "12.00"}, "tags": []any{"Redness"}},
		{"product_id": "2", "title": "Acid Toner", "price_range": map[string]any{"min": "40.00"}, "tags": []any{"redness", "Invisibility"}},
	}}}
	composer := &fakeComposer{}
	e := New(src, Options{Composer: composer})

	result, err := e.Search(context.Background(), []string{"Invisibility", "Redness"}, cents(50))
	require.NoError(t, err)

	assert.Equal(t, []string{"2", "1"}, resultIDs(result.Products))
	assert.Equal(t, "gentle acne cleanser", result.Phrase)
	assert.Equal(t, []string{"gentle acne cleanser"}, src.phrases)
	assert.Equal(t, [][]string{{"Invisibility", "Redness"}}, composer.tags)
}

func TestSearchTextSourceWithoutComposer(t *testing.T) {
	src := &searchSource{fakeSource: &fakeSource{records: []normalize.Record{
		{"product_id": "1", "title": "Calm Balm", "price": 12.0, "tags": "Redness"},
	}}}
	e := New(src, Options{})

	result, err := e.Search(context.Background(), []string{"Redness", "Dry patches"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Redness, Dry patches", result.Phrase)
}

func TestSearchTextSourceMatchesOnlyRecordTags(t *testing.T) {
	src := &searchSource{fakeSource: &fakeSource{records: []normalize.Record{
		{"product_id": "1", "title": "Clear Gel", "description": "Clears acne on oily skin", "price": 12.0},
	}}}
	e := New(src, Options{})

	_, err := e.Search(context.Background(), []string{"acne"}, nil)
	var noMatches *NoMatchesError
	assert.ErrorAs(t, err, &noMatches)

	result, err := e.Search(context.Background(), []string{"oily skin"}, nil)
	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.Equal(t, []string{"Oily skin"}, result.Products[0].Tags)
}

func detailRecords() []normalize.Record {
	return []normalize.Record{
		record("t", 20, "Oily skin,Blackheads,Large pores"),
		record("1", 10, "Oily skin"),
		record("2", 10, "Oily skin,Blackheads,Large pores"),
		record("3", 10, "Melasma"),
		record("4", 10, "Blackheads,Large pores"),
		record("5", 10, "Large pores"),
	}
}

func TestDetail(t *testing.T) {
	src := catalogSource{&fakeSource{records: detailRecords()}}
	gen := &fakeGenerator{}
	e := New(src, Options{Generator: gen})

	result, err := e.Detail(context.Background(), "t", "sensitive, fragrance free")
	require.NoError(t, err)

	assert.Equal(t, "t", result.Product.ID)
	assert.Equal(t, skinmatch.Cents(2000), result.Product.Price)
	assert.Equal(t, []string{"2", "4", "1", "5"}, resultIDs(result.Similar))
	require.NotNil(t, result.Recommendation)
	assert.Equal(t, "Product t suits sensitive, fragrance free", result.Recommendation.Description)
	assert.Equal(t, "AM: cleanse", result.Recommendation.Routine)
}

func TestDetailNotFound(t *testing.T) {
	src := catalogSource{&fakeSource{records: detailRecords()}}
	gen := &fakeGenerator{}
	e := New(src, Options{Generator: gen})

	_, err := e.Detail(context.Background(), "missing", "anything")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(0), gen.calls.Load())

	_, err = e.Detail(context.Background(), "  ", "anything")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDetailRecommendationCache(t *testing.T) {
	src := catalogSource{&fakeSource{records: detailRecords()}}
	gen := &fakeGenerator{}
	e := New(src, Options{Generator: gen})

	first, err := e.Detail(context.Background(), "t", "oily, on a budget")
	require.NoError(t, err)
	second, err := e.Detail(context.Background(), "t", "oily, on a budget")
	require.NoError(t, err)

	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Equal(t, first.Recommendation, second.Recommendation)

	_, err = e.Detail(context.Background(), "t", "oily, on a budget ")
	require.NoError(t, err)
	assert.Equal(t, int32(2), gen.calls.Load())
	assert.Equal(t, 2, e.cache.size())

	other := New(src, Options{Generator: gen})
	_, err = other.Detail(context.Background(), "t", "oily, on a budget")
	require.NoError(t, err)
	assert.Equal(t, int32(3), gen.calls.Load())
}

func TestDetailGeneratorFailure(t *testing.T) {
	src := catalogSource{&fakeSource{records: detailRecords()}}
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	e := New(src, Options{Generator: gen})

	_, err := e.Detail(context.Background(), "t", "dry")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "text generator", upstream.Component)
	assert.Equal(t, "Product t", upstream.Product)
	assert.Contains(t, err.Error(), "Product t")
	assert.Equal(t, 0, e.cache.size())

	gen.err = nil
	result, err := e.Detail(context.Background(), "t", "dry")
	require.NoError(t, err)
	assert.NotNil(t, result.Recommendation)
	assert.Equal(t, int32(2), gen.calls.Load())
}

func TestDetailWithoutGenerator(t *testing.T) {
	src := catalogSource{&fakeSource{records: detailRecords()}}
	e := New(src, Options{})

	result, err := e.Detail(context.Background(), "3", "")
	require.NoError(t, err)
	assert.Nil(t, result.Recommendation)
	assert.Empty(t, result.Similar)
}

func TestDetailTextSourceSkipsSimilar(t *testing.T) {
	src := &searchSource{fakeSource: &fakeSource{records: detailRecords()}}
	e := New(src, Options{Generator: &fakeGenerator{}})

	result, err := e.Detail(context.Background(), "t", "")
	require.NoError(t, err)
	assert.Nil(t, result.Similar)
	assert.Equal(t, int32(0), src.listCalls.Load())
}

func TestDetailUpstreamFailure(t *testing.T) {
	src := catalogSource{&fakeSource{err: errors.New("db down")}}
	e := New(src, Options{})

	_, err := e.Detail(context.Background(), "t", "")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, ErrNotFound)
}
