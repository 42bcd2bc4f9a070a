// Package llm defines the generation backend interfaces and the Google
// Generative Language API client that implements them.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// GroundingCandidate is a citation-like record returned alongside a
// search-grounded generation. It is unvalidated; the sources package
// decides what is citable.
type GroundingCandidate struct {
	Title   string
	URI     string
	Snippet string
}

// TextResult is the output of one text generation call.
type TextResult struct {
	Text      string
	Grounding []GroundingCandidate
}

// TextBackend generates free text, optionally grounded in web search.
type TextBackend interface {
	Generate(ctx context.Context, prompt string, grounding bool) (*TextResult, error)
	IsConfigured() bool
}

// ImageBackend generates images from a prompt.
type ImageBackend interface {
	GenerateImages(ctx context.Context, prompt string, count int, aspectRatio string) ([][]byte, error)
}

// SpeechBackend synthesizes narration. The returned bytes are raw 16-bit
// mono PCM; callers wrap them into a playable container.
type SpeechBackend interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// CredentialProvider supplies a valid API credential on demand.
type CredentialProvider interface {
	EnsureKey() (string, error)
}

// EnvCredential reads the API key from an environment variable.
type EnvCredential struct {
	EnvVar string
}

// EnsureKey returns the key or an error describing how to configure it.
func (e EnvCredential) EnsureKey() (string, error) {
	key := os.Getenv(e.EnvVar)
	if key == "" {
		return "", fmt.Errorf("API key not configured: set %s", e.EnvVar)
	}
	return key, nil
}

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GoogleProvider talks to the Google Generative Language API for text,
// image and speech generation.
type GoogleProvider struct {
	TextModel   string
	ImageModel  string
	SpeechModel string
	BaseURL     string
	creds       CredentialProvider
	client      *http.Client
}

// NewGoogleProvider creates a provider with the given models and credential
// source. Empty model names fall back to defaults.
func NewGoogleProvider(textModel, imageModel, speechModel string, creds CredentialProvider) *GoogleProvider {
	if textModel == "" {
		textModel = "gemini-2.5-flash"
	}
	if imageModel == "" {
		imageModel = "imagen-3.0-generate-002"
	}
	if speechModel == "" {
		speechModel = "gemini-2.5-flash-preview-tts"
	}
	return &GoogleProvider{
		TextModel:   textModel,
		ImageModel:  imageModel,
		SpeechModel: speechModel,
		BaseURL:     defaultBaseURL,
		creds:       creds,
		client:      &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks whether a credential is available.
func (g *GoogleProvider) IsConfigured() bool {
	_, err := g.creds.EnsureKey()
	return err == nil
}

// Generate sends a prompt to the text model. When grounding is enabled the
// google_search tool is attached and grounding chunks are returned with
// the text.
func (g *GoogleProvider) Generate(ctx context.Context, prompt string, grounding bool) (*TextResult, error) {
	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{"temperature": 0.7},
	}
	if grounding {
		body["tools"] = []map[string]any{{"google_search": map[string]any{}}}
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			GroundingMetadata struct {
				GroundingChunks []struct {
					Web struct {
						URI   string `json:"uri"`
						Title string `json:"title"`
					} `json:"web"`
				} `json:"groundingChunks"`
			} `json:"groundingMetadata"`
		} `json:"candidates"`
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.BaseURL, g.TextModel)
	if err := g.post(ctx, endpoint, body, &result); err != nil {
		return nil, err
	}
	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in model response")
	}

	out := &TextResult{}
	for _, part := range result.Candidates[0].Content.Parts {
		out.Text += part.Text
	}
	for _, chunk := range result.Candidates[0].GroundingMetadata.GroundingChunks {
		out.Grounding = append(out.Grounding, GroundingCandidate{
			Title: chunk.Web.Title,
			URI:   chunk.Web.URI,
		})
	}
	return out, nil
}

// GenerateImages asks the image model for count images of the given aspect
// ratio and returns the decoded payloads.
func (g *GoogleProvider) GenerateImages(ctx context.Context, prompt string, count int, aspectRatio string) ([][]byte, error) {
	if count <= 0 {
		count = 1
	}
	if aspectRatio == "" {
		aspectRatio = "16:9"
	}
	body := map[string]any{
		"instances": []map[string]string{{"prompt": prompt}},
		"parameters": map[string]any{
			"sampleCount": count,
			"aspectRatio": aspectRatio,
		},
	}

	var result struct {
		Predictions []struct {
			BytesBase64Encoded string `json:"bytesBase64Encoded"`
		} `json:"predictions"`
	}

	endpoint := fmt.Sprintf("%s/models/%s:predict", g.BaseURL, g.ImageModel)
	if err := g.post(ctx, endpoint, body, &result); err != nil {
		return nil, err
	}

	images := make([][]byte, 0, len(result.Predictions))
	for _, p := range result.Predictions {
		data, err := base64.StdEncoding.DecodeString(p.BytesBase64Encoded)
		if err != nil {
			return nil, fmt.Errorf("decoding image payload: %w", err)
		}
		images = append(images, data)
	}
	return images, nil
}

// Synthesize generates narration for the text with the given prebuilt
// voice. The response is raw 16-bit mono PCM.
func (g *GoogleProvider) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": text}}},
		},
		"generationConfig": map[string]any{
			"responseModalities": []string{"AUDIO"},
			"speechConfig": map[string]any{
				"voiceConfig": map[string]any{
					"prebuiltVoiceConfig": map[string]string{"voiceName": voice},
				},
			},
		},
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					InlineData struct {
						Data string `json:"data"`
					} `json:"inlineData"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.BaseURL, g.SpeechModel)
	if err := g.post(ctx, endpoint, body, &result); err != nil {
		return nil, err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no audio in model response")
	}

	data, err := base64.StdEncoding.DecodeString(result.Candidates[0].Content.Parts[0].InlineData.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding audio payload: %w", err)
	}
	return data, nil
}

func (g *GoogleProvider) post(ctx context.Context, endpoint string, body, result any) error {
	key, err := g.creds.EnsureKey()
	if err != nil {
		return err
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", key)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("generative API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("generative API returned %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
