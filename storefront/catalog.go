// Package storefront talks to a hosted commerce platform: its storefront MCP
// endpoint for catalog search and product details, and its store metadata
// for theming.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"skinmatch/match"
	"skinmatch/normalize"
)

const (
	searchCatalogTool  = "search_shop_catalog"
	productDetailsTool = "get_product_details"

	defaultListQuery     = "skincare"
	defaultSearchContext = "Shopper looking for skincare products for specific skin concerns"
)

var (
	_ match.Source       = (*Catalog)(nil)
	_ match.TextSearcher = (*Catalog)(nil)
)

// Catalog is a product source backed by a storefront MCP server. It has no
// closed vocabulary: searches are free text.
type Catalog struct {
	endpoint   string
	httpClient *http.Client
	client     *mcp.Client
	log        zerolog.Logger

	// ListQuery is the search phrase ListAll uses
	ListQuery string
	// SearchContext is passed along with every catalog search
	SearchContext string
}

func NewCatalog(endpoint string, httpClient *http.Client, logger zerolog.Logger) *Catalog {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Catalog{
		endpoint:      endpoint,
		httpClient:    httpClient,
		client:        mcp.NewClient(&mcp.Implementation{Name: "skinmatch", Version: "v1.0.0"}, nil),
		log:           logger.With().Str("component", "storefront").Logger(),
		ListQuery:     defaultListQuery,
		SearchContext: defaultSearchContext,
	}
}

func (c *Catalog) SearchText(ctx context.Context, phrase string) ([]normalize.Record, error) {
	res, err := c.call(ctx, searchCatalogTool, map[string]any{
		"query":   phrase,
		"context": c.SearchContext,
	})
	if err != nil {
		return nil, err
	}

	var body struct {
		Products []normalize.Record `json:"products"`
	}
	if err := decodeResult(res, &body); err != nil {
		return nil, fmt.Errorf("error decoding %s result: %w", searchCatalogTool, err)
	}

	c.log.Debug().Str("query", phrase).Int("products", len(body.Products)).Msg("catalog search")
	return body.Products, nil
}

func (c *Catalog) ListAll(ctx context.Context) ([]normalize.Record, error) {
	return c.SearchText(ctx, c.ListQuery)
}

func (c *Catalog) GetByID(ctx context.Context, id string) (normalize.Record, error) {
	res, err := c.call(ctx, productDetailsTool, map[string]any{"product_id": id})
	var toolErr *toolError
	if errors.As(err, &toolErr) && strings.Contains(strings.ToLower(toolErr.msg), "not found") {
		return nil, match.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var body struct {
		Product normalize.Record `json:"product"`
	}
	if err := decodeResult(res, &body); err != nil {
		return nil, fmt.Errorf("error decoding %s result: %w", productDetailsTool, err)
	}
	if len(body.Product) == 0 {
		return nil, match.ErrNotFound
	}
	return body.Product, nil
}

type toolError struct {
	tool string
	msg  string
}

func (e *toolError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.tool, e.msg)
}

func (c *Catalog) call(ctx context.Context, tool string, args map[string]any) (*mcp.CallToolResult, error) {
	session, err := c.client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   c.endpoint,
		HTTPClient: c.httpClient,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("error connecting to storefront: %w", err)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("error calling %s: %w", tool, err)
	}
	if res.IsError {
		return nil, &toolError{tool: tool, msg: resultText(res)}
	}
	return res, nil
}

// decodeResult prefers structured content and falls back to the JSON text
// content storefront tools reply with.
func decodeResult(res *mcp.CallToolResult, v any) error {
	var data []byte
	if res.StructuredContent != nil {
		b, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return err
		}
		data = b
	} else {
		data = []byte(resultText(res))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func resultText(res *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range res.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}
