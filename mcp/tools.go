package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"skinmatch"
	"skinmatch/storefront"
)

var searchTool = &mcp.Tool{
	Name: "search_products",
	Description: `Find skincare products for a shopper's skin concerns. Products are ranked by
how many of the requested concerns they target and at most 10 are shown.`,
	Meta: mcp.Meta{
		"openai/outputTemplate":          searchWidgetURI,
		"openai/toolInvocation/invoking": "Finding products",
		"openai/toolInvocation/invoked":  "Found products",
	},
}

type SearchInput struct {
	Tags        []string `json:"tags" jsonschema:"skin concerns to match, e.g. Oily skin, Blackheads"`
	MaxPriceUSD *float64 `json:"maxPriceUSD,omitempty" jsonschema:"optional price ceiling in US dollars"`
}

type SearchOutput struct {
	Products    []Product        `json:"products" jsonschema:"matching products, best match first"`
	Tags        []string         `json:"tags" jsonschema:"concerns that were searched for"`
	Total       int              `json:"total" jsonschema:"number of matching products before truncation"`
	Shown       int              `json:"shown"`
	MaxPriceUSD *float64         `json:"maxPriceUSD,omitempty"`
	Theme       storefront.Theme `json:"theme"`
	Error       *ToolError       `json:"error,omitempty"`
}

func (s Server) searchProducts(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	start := time.Now()
	output := SearchOutput{
		Products:    []Product{},
		Tags:        orEmpty(input.Tags),
		MaxPriceUSD: input.MaxPriceUSD,
		Theme:       s.theme(ctx),
	}

	var maxPrice *skinmatch.Cents
	if input.MaxPriceUSD != nil {
		c, err := skinmatch.PriceCeiling(*input.MaxPriceUSD)
		if err != nil {
			output.Error = &ToolError{Kind: errorValidation, Message: "maxPriceUSD: " + err.Error()}
			return errorResult(output.Error), output, nil
		}
		maxPrice = &c
	}

	result, err := s.engine.Search(ctx, input.Tags, maxPrice)
	if err != nil {
		output.Error = newToolError(err)
		s.logToolError(err, output.Error).Strs("tags", input.Tags).Dur("duration", time.Since(start)).Msg("search failed")
		return errorResult(output.Error), output, nil
	}

	output.Products = newProducts(result.Products)
	output.Tags = orEmpty(result.Tags)
	output.Total = result.Total
	output.Shown = len(output.Products)

	s.log.Info().
		Strs("tags", result.Tags).
		Int("total", result.Total).
		Dur("duration", time.Since(start)).
		Msg("search")

	return textResult(searchSummary(output)), output, nil
}

func searchSummary(out SearchOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d product(s) for %s", out.Total, strings.Join(out.Tags, ", "))
	if out.MaxPriceUSD != nil {
		fmt.Fprintf(&b, " under %s", skinmatch.CentsFromDollars(*out.MaxPriceUSD))
	}
	if out.Shown < out.Total {
		fmt.Fprintf(&b, ", showing the top %d", out.Shown)
	}
	b.WriteString(":\n")
	for i, p := range out.Products {
		fmt.Fprintf(&b, "%d. %s ($%s, id %s)\n", i+1, p.Name, p.Price, p.ID)
	}
	return b.String()
}

var detailTool = &mcp.Tool{
	Name: "product_detail",
	Description: `Show one product with a recommendation written for the shopper's own
description of their skin, a routine suggestion and similar products.`,
	Meta: mcp.Meta{
		"openai/outputTemplate":          detailWidgetURI,
		"openai/toolInvocation/invoking": "Loading product",
		"openai/toolInvocation/invoked":  "Loaded product",
	},
}

type DetailInput struct {
	ProductID          string `json:"productId" jsonschema:"id of a product returned by search_products"`
	UserPreferenceText string `json:"userPreferenceText" jsonschema:"the shopper's description of their skin, routine and preferences"`
}

type DetailOutput struct {
	Product        Product          `json:"product"`
	Recommendation string           `json:"recommendation,omitempty" jsonschema:"why the product suits the shopper"`
	Routine        string           `json:"routine,omitempty" jsonschema:"how to fit the product into a routine"`
	Similar        []Product        `json:"similar" jsonschema:"products targeting the same concerns"`
	Theme          storefront.Theme `json:"theme"`
	Error          *ToolError       `json:"error,omitempty"`
}

func (s Server) productDetail(ctx context.Context, req *mcp.CallToolRequest, input DetailInput) (*mcp.CallToolResult, DetailOutput, error) {
	start := time.Now()
	output := DetailOutput{
		Product: newProduct(skinmatch.Product{}),
		Similar: []Product{},
		Theme:   s.theme(ctx),
	}

	result, err := s.engine.Detail(ctx, input.ProductID, input.UserPreferenceText)
	if err != nil {
		output.Error = newToolError(err)
		output.Error.ProductID = input.ProductID
		s.logToolError(err, output.Error).Str("product", input.ProductID).Dur("duration", time.Since(start)).Msg("detail failed")
		return errorResult(output.Error), output, nil
	}

	output.Product = newProduct(result.Product)
	output.Similar = newProducts(result.Similar)
	if result.Recommendation != nil {
		output.Recommendation = result.Recommendation.Description
		output.Routine = result.Recommendation.Routine
	}

	s.log.Info().
		Str("product", result.Product.ID).
		Int("similar", len(output.Similar)).
		Dur("duration", time.Since(start)).
		Msg("detail")

	text := result.Product.String()
	if output.Recommendation != "" {
		text += "\n\nRecommendation: " + output.Recommendation
	}
	if output.Routine != "" {
		text += "\n\nRoutine: " + output.Routine
	}
	return textResult(text), output, nil
}

// logToolError logs domain errors at info and everything else at error
func (s Server) logToolError(err error, toolErr *ToolError) *zerolog.Event {
	if toolErr.Kind == errorInternal || toolErr.Kind == errorUpstream {
		return s.log.Error().Err(err).Str("kind", toolErr.Kind)
	}
	return s.log.Info().Err(err).Str("kind", toolErr.Kind)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(toolErr *ToolError) *mcp.CallToolResult {
	res := textResult(toolErr.Message)
	res.IsError = true
	return res
}
