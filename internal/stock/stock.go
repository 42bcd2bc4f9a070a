// Package stock searches a stock-media provider for tagged photos and
// video clips used to populate an article's media carousel.
package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/newsforge/newsforge/internal/llm"
)

// Item is one stock media result.
type Item struct {
	Kind     string // "image" or "video"
	URL      string
	MimeType string
	Caption  string
}

// Backend searches stock media. kind is "image", "video" or "" for both.
type Backend interface {
	Search(ctx context.Context, query, kind string, count int) ([]Item, error)
}

// PexelsClient implements Backend against the Pexels API.
type PexelsClient struct {
	BaseURL string
	creds   llm.CredentialProvider
	client  *http.Client
}

// NewPexelsClient creates a Pexels stock-media client.
func NewPexelsClient(creds llm.CredentialProvider) *PexelsClient {
	return &PexelsClient{
		BaseURL: "https://api.pexels.com",
		creds:   creds,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Search queries Pexels for photos and/or videos matching the query.
func (p *PexelsClient) Search(ctx context.Context, query, kind string, count int) ([]Item, error) {
	if count <= 0 {
		count = 4
	}

	var items []Item
	if kind == "" || kind == "image" {
		photos, err := p.searchPhotos(ctx, query, count)
		if err != nil {
			return nil, err
		}
		items = append(items, photos...)
	}
	if kind == "" || kind == "video" {
		videos, err := p.searchVideos(ctx, query, count)
		if err != nil {
			return nil, err
		}
		items = append(items, videos...)
	}
	return items, nil
}

func (p *PexelsClient) searchPhotos(ctx context.Context, query string, count int) ([]Item, error) {
	var result struct {
		Photos []struct {
			Alt string `json:"alt"`
			Src struct {
				Large string `json:"large"`
			} `json:"src"`
		} `json:"photos"`
	}
	endpoint := p.BaseURL + "/v1/search?query=" + url.QueryEscape(query) + "&per_page=" + strconv.Itoa(count)
	if err := p.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(result.Photos))
	for _, photo := range result.Photos {
		items = append(items, Item{
			Kind:     "image",
			URL:      photo.Src.Large,
			MimeType: "image/jpeg",
			Caption:  photo.Alt,
		})
	}
	return items, nil
}

func (p *PexelsClient) searchVideos(ctx context.Context, query string, count int) ([]Item, error) {
	var result struct {
		Videos []struct {
			VideoFiles []struct {
				Link     string `json:"link"`
				FileType string `json:"file_type"`
			} `json:"video_files"`
		} `json:"videos"`
	}
	endpoint := p.BaseURL + "/videos/search?query=" + url.QueryEscape(query) + "&per_page=" + strconv.Itoa(count)
	if err := p.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}

	var items []Item
	for _, video := range result.Videos {
		if len(video.VideoFiles) == 0 {
			continue
		}
		file := video.VideoFiles[0]
		mime := file.FileType
		if mime == "" {
			mime = "video/mp4"
		}
		items = append(items, Item{
			Kind:     "video",
			URL:      file.Link,
			MimeType: mime,
		})
	}
	return items, nil
}

func (p *PexelsClient) get(ctx context.Context, endpoint string, result any) error {
	key, err := p.creds.EnsureKey()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", key)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("stock API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("stock API returned %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding stock response: %w", err)
	}
	return nil
}
