package mcp

import (
	"errors"

	"skinmatch"
	"skinmatch/match"
)

// Product is the product card shared by both widgets
type Product struct {
	ID          string   `json:"id" jsonschema:"product id to pass to product_detail"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags" jsonschema:"skin concerns the product targets"`
	Images      []string `json:"images"`
	Image       string   `json:"image"`
	URL         string   `json:"url" jsonschema:"purchase link"`
	Price       string   `json:"price" jsonschema:"price in US dollars, e.g. 15.00"`
	PriceCents  int64    `json:"priceCents"`
	MatchScore  int      `json:"matchScore,omitempty" jsonschema:"number of requested concerns the product targets"`
}

func newProduct(p skinmatch.Product) Product {
	return Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Tags:        orEmpty(p.Tags),
		Images:      orEmpty(p.Images),
		Image:       p.Image(),
		URL:         p.URL,
		Price:       p.Price.Dollars(),
		PriceCents:  int64(p.Price),
	}
}

func newProducts(results []match.Result) []Product {
	out := make([]Product, 0, len(results))
	for _, r := range results {
		p := newProduct(r.Product)
		p.MatchScore = r.Score
		out = append(out, p)
	}
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const (
	errorValidation = "validation"
	errorNotFound   = "not_found"
	errorNoMatches  = "no_matches"
	errorUpstream   = "upstream_unavailable"
	errorInternal   = "internal"
)

// ToolError is the structured error returned to the assistant
type ToolError struct {
	Kind      string   `json:"kind" jsonschema:"one of validation, not_found, no_matches, upstream_unavailable, internal"`
	Message   string   `json:"message"`
	Invalid   []string `json:"invalid,omitempty" jsonschema:"tags that are not recognized concerns"`
	Allowed   []string `json:"allowed,omitempty" jsonschema:"recognized concern tags"`
	Tags      []string `json:"tags,omitempty"`
	ProductID string   `json:"productId,omitempty"`
}

func newToolError(err error) *ToolError {
	var (
		validation *match.ValidationError
		noMatches  *match.NoMatchesError
	)
	switch {
	case errors.As(err, &validation):
		return &ToolError{
			Kind:    errorValidation,
			Message: err.Error(),
			Invalid: validation.Invalid,
			Allowed: validation.Allowed,
		}
	case errors.Is(err, match.ErrNoTags):
		return &ToolError{Kind: errorValidation, Message: err.Error()}
	case errors.As(err, &noMatches):
		return &ToolError{
			Kind:    errorNoMatches,
			Message: err.Error(),
			Tags:    noMatches.Tags,
		}
	case errors.Is(err, match.ErrNotFound):
		return &ToolError{Kind: errorNotFound, Message: err.Error()}
	case errors.Is(err, match.ErrUpstreamUnavailable):
		return &ToolError{Kind: errorUpstream, Message: err.Error()}
	}
	return &ToolError{Kind: errorInternal, Message: "internal error"}
}
