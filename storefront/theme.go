package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const DefaultThemeTimeout = 8 * time.Second

// Theme is the store branding applied to widgets
type Theme struct {
	AccentColor string `json:"accentColor"`
	StoreName   string `json:"storeName"`
}

var DefaultTheme = Theme{
	AccentColor: "#C2185B",
	StoreName:   "Skin Match",
}

// ThemeFetcher loads the store theme from a JSON metadata endpoint. The first
// successful fetch is kept for the life of the fetcher; failures fall back to
// DefaultTheme and are retried on the next call.
type ThemeFetcher struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
	log        zerolog.Logger

	mu    sync.Mutex
	theme *Theme
}

func NewThemeFetcher(url string, httpClient *http.Client, logger zerolog.Logger) *ThemeFetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ThemeFetcher{
		url:        url,
		httpClient: httpClient,
		timeout:    DefaultThemeTimeout,
		log:        logger.With().Str("component", "theme").Logger(),
	}
}

func (f *ThemeFetcher) Theme(ctx context.Context) Theme {
	if f == nil || f.url == "" {
		return DefaultTheme
	}

	f.mu.Lock()
	cached := f.theme
	f.mu.Unlock()
	if cached != nil {
		return *cached
	}

	theme, err := f.fetch(ctx)
	if err != nil {
		f.log.Warn().Err(err).Msg("using default theme")
		return DefaultTheme
	}

	f.mu.Lock()
	f.theme = &theme
	f.mu.Unlock()
	return theme
}

func (f *ThemeFetcher) fetch(ctx context.Context) (Theme, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return Theme{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Theme{}, fmt.Errorf("failed to fetch theme: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Theme{}, fmt.Errorf("failed to fetch theme: status %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Theme{}, fmt.Errorf("failed to decode theme: %w", err)
	}

	theme := DefaultTheme
	if v := firstString(body, "accentColor", "accent_color"); v != "" {
		theme.AccentColor = v
	}
	if v := firstString(body, "storeName", "store_name", "name"); v != "" {
		theme.StoreName = v
	}
	return theme, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
