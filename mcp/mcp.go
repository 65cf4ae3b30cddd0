package mcp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"skinmatch"
	"skinmatch/match"
	"skinmatch/storefront"
)

// Engine enables the MCP Server to search and describe products
type Engine interface {
	Search(ctx context.Context, tags []string, maxPrice *skinmatch.Cents) (match.SearchResult, error)
	Detail(ctx context.Context, productID, preference string) (match.DetailResult, error)
}

// Themer provides the store branding shown in widgets
type Themer interface {
	Theme(ctx context.Context) storefront.Theme
}

// Server implements the MCP Server for product matching
type Server struct {
	engine Engine
	themer Themer
	server *mcp.Server
	log    zerolog.Logger
}

func NewServer(engine Engine, themer Themer, logger zerolog.Logger) Server {
	s := Server{
		engine: engine,
		themer: themer,
		log:    logger.With().Str("component", "mcp").Logger(),
		server: mcp.NewServer(&mcp.Implementation{Name: "skinmatch", Version: "v1.0.0"}, &mcp.ServerOptions{
			Instructions: `This MCP server recommends skincare products for a shopper's skin concerns.

Use search_products with one or more concern tags (for example "Oily skin",
"Blackheads", "Hyperpigmentation") and an optional price ceiling in US dollars
to get the best matching products, ranked by how many concerns they address.

Use product_detail with a product id from a search and the shopper's own
description of their skin and preferences to get the full product, a
personalized explanation, a routine suggestion and similar products.

Results are rendered as widgets; keep any text reply short.`,
		}),
	}
	mcp.AddTool(s.server, searchTool, s.searchProducts)
	mcp.AddTool(s.server, detailTool, s.productDetail)
	s.addWidgets()
	return s
}

// Run serves the streamable HTTP transport on addr until ctx is done
func (s Server) Run(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return s.server
	}, nil)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("serving MCP over HTTP")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// RunStdio serves a single client over stdin and stdout
func (s Server) RunStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s Server) theme(ctx context.Context) storefront.Theme {
	if s.themer == nil {
		return storefront.DefaultTheme
	}
	return s.themer.Theme(ctx)
}
