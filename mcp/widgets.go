package mcp

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	searchWidgetURI = "ui://widget/product-search.html"
	detailWidgetURI = "ui://widget/product-detail.html"
	widgetMIMEType  = "text/html+skybridge"
)

//go:embed widgets/*.html
var widgetFiles embed.FS

var widgetTemplates = template.Must(template.ParseFS(widgetFiles, "widgets/*.html"))

type widget struct {
	uri         string
	name        string
	template    string
	description string
}

var widgets = []widget{
	{searchWidgetURI, "product-search", "product-search.html", "Ranked product cards for search_products"},
	{detailWidgetURI, "product-detail", "product-detail.html", "Product page with recommendation for product_detail"},
}

func (s Server) addWidgets() {
	for _, w := range widgets {
		s.server.AddResource(&mcp.Resource{
			URI:         w.uri,
			Name:        w.name,
			Description: w.description,
			MIMEType:    widgetMIMEType,
		}, s.readWidget(w))
	}
}

// readWidget renders the widget template with the current store theme
func (s Server) readWidget(w widget) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		var buf bytes.Buffer
		if err := widgetTemplates.ExecuteTemplate(&buf, w.template, s.theme(ctx)); err != nil {
			return nil, fmt.Errorf("error rendering widget %s: %w", w.name, err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      w.uri,
				MIMEType: widgetMIMEType,
				Text:     buf.String(),
			}},
		}, nil
	}
}
