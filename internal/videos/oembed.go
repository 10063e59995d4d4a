package videos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// OEmbedProvider resolves link metadata through an oEmbed endpoint.
type OEmbedProvider struct {
	endpoint string
	client   *http.Client
}

// NewOEmbedProvider constructs a provider targeting the given oEmbed endpoint.
func NewOEmbedProvider(endpoint string, timeout time.Duration) *OEmbedProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OEmbedProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type oembedResponse struct {
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Lookup fetches title and thumbnail for the supplied video URL.
func (p *OEmbedProvider) Lookup(ctx context.Context, videoURL string) (Metadata, error) {
	if p == nil || p.endpoint == "" {
		return Metadata{}, ErrProviderUnavailable
	}

	query := url.Values{}
	query.Set("url", videoURL)
	query.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("build oembed request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("oembed lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("oembed lookup: unexpected status %d", resp.StatusCode)
	}

	var payload oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Metadata{}, fmt.Errorf("decode oembed response: %w", err)
	}

	return Metadata{
		Title:     payload.Title,
		Thumbnail: payload.ThumbnailURL,
	}, nil
}

var _ Provider = (*OEmbedProvider)(nil)
