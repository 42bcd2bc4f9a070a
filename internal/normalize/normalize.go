// Package normalize turns the text backend's raw delimited response into
// structured article fields and converts stray HTML fragments to Markdown.
package normalize

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
)

// The backend is instructed to separate the four response sections with
// these literal markers, in this order.
const (
	headlineMarker    = "|||HEADLINE|||"
	bodyMarker        = "|||BODY|||"
	imagePromptMarker = "|||IMAGE_PROMPT|||"
	metadataMarker    = "|||METADATA|||"
)

const fallbackHeadline = "Untitled Article"

var delimiterPattern = regexp.MustCompile(`\|\|\|\s*[A-Z_]+\s*\|\|\|`)

// Parsed holds the four logical sections of a backend response.
type Parsed struct {
	Headline     string
	Body         string
	ImagePrompt  string
	MetadataJSON string
}

// Metadata is the structured form of the metadata section.
type Metadata struct {
	Keywords        []string `json:"keywords"`
	MetaDescription string   `json:"metaDescription"`
}

// Split divides a raw backend response into its positional sections.
// Missing sections fall back field by field: a placeholder headline, the
// whole blob as body, a synthesized image prompt built from the topic, and
// an empty JSON object for metadata. Split never fails.
func Split(raw, topic string) Parsed {
	segments := delimiterPattern.Split(raw, -1)

	// Segment 0 is whatever precedes the first marker, usually empty.
	pick := func(i int) string {
		if i < len(segments) {
			return strings.TrimSpace(segments[i])
		}
		return ""
	}

	p := Parsed{
		Headline:     pick(1),
		Body:         pick(2),
		ImagePrompt:  pick(3),
		MetadataJSON: pick(4),
	}

	if p.Headline == "" {
		p.Headline = fallbackHeadline
	}
	if p.Body == "" {
		log.Printf("normalize: response missing body section, using full text")
		p.Body = strings.TrimSpace(raw)
	}
	if p.ImagePrompt == "" {
		p.ImagePrompt = fmt.Sprintf("A photorealistic editorial illustration about %s", topic)
	}
	if p.MetadataJSON == "" {
		p.MetadataJSON = "{}"
	}
	return p
}

// ParseMetadata decodes the metadata section, stripping Markdown code
// fences first. Malformed JSON degrades to empty values and a warning.
func ParseMetadata(text string) Metadata {
	text = StripCodeFence(text)

	var meta Metadata
	if err := json.Unmarshal([]byte(text), &meta); err != nil {
		log.Printf("normalize: metadata is not valid JSON: %v", err)
		return Metadata{Keywords: []string{}}
	}
	if meta.Keywords == nil {
		meta.Keywords = []string{}
	}
	return meta
}

// StripCodeFence removes a surrounding ``` or ```json fence if present.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	end := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}
