package match

import (
	"slices"

	"skinmatch"
)

// Result is a product annotated with its tag overlap against a query
type Result struct {
	skinmatch.Product
	Score int
}

// Overlap counts the product tags also present in query, case-insensitively
func Overlap(productTags []string, query map[string]bool) int {
	seen := map[string]bool{}
	n := 0
	for _, tag := range productTags {
		key := skinmatch.TagKey(tag)
		if query[key] && !seen[key] {
			seen[key] = true
			n++
		}
	}
	return n
}

func tagSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if key := skinmatch.TagKey(tag); key != "" {
			set[key] = true
		}
	}
	return set
}

// Rank keeps products priced at or under maxPrice (when set) that share at
// least one tag with tags, ordered by overlap descending. Ties keep the input
// order.
func Rank(products []skinmatch.Product, tags []string, maxPrice *skinmatch.Cents) []Result {
	query := tagSet(tags)
	results := make([]Result, 0, len(products))
	for _, p := range products {
		if maxPrice != nil && p.Price > *maxPrice {
			continue
		}
		score := Overlap(p.Tags, query)
		if score < 1 {
			continue
		}
		results = append(results, Result{Product: p, Score: score})
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		return b.Score - a.Score
	})
	return results
}

// Similar ranks every product other than target against target's own tags
// and returns at most n of them.
func Similar(target skinmatch.Product, products []skinmatch.Product, n int) []Result {
	others := make([]skinmatch.Product, 0, len(products))
	for _, p := range products {
		if p.ID != target.ID {
			others = append(others, p)
		}
	}
	ranked := Rank(others, target.Tags, nil)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
