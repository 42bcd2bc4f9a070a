// Package fetch retrieves a web page and extracts its readable text so it
// can serve as the document input of a generation run.
package fetch

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// Document is a fetched page reduced to its readable content.
type Document struct {
	Name string // page title, falling back to the hostname
	Text string
}

// DocumentFetcher fetches article text via HTTP + readability extraction.
type DocumentFetcher struct {
	client *http.Client
}

// NewDocumentFetcher creates a fetcher with the given timeout.
func NewDocumentFetcher(timeout time.Duration) *DocumentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &DocumentFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fetch downloads the page and extracts readable text. Pages without
// meaningful extractable content are an error: an empty document cannot
// drive a generation.
func (f *DocumentFetcher) Fetch(pageURL string) (*Document, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid document URL: %s", pageURL)
	}

	req, err := http.NewRequest("GET", pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "newsforge/1.0 (article generator)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching document: %s", http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	page, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("extracting content: %w", err)
	}

	text := strings.TrimSpace(page.TextContent)
	if len(text) < 100 {
		return nil, fmt.Errorf("no extractable content at %s", pageURL)
	}

	name := strings.TrimSpace(page.Title)
	if name == "" {
		name = parsedURL.Host
	}
	return &Document{Name: name, Text: text}, nil
}
