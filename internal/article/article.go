package article

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Language is one of the supported output languages, fixed at creation.
type Language string

const (
	LangEnglish Language = "en"
	LangGerman  Language = "de"
	LangFrench  Language = "fr"
	LangSpanish Language = "es"
	LangItalian Language = "it"
)

// SupportedLanguages lists every language the generator can target.
var SupportedLanguages = []Language{LangEnglish, LangGerman, LangFrench, LangSpanish, LangItalian}

// ParseLanguage maps a user-supplied code to a supported language,
// defaulting to English.
func ParseLanguage(code string) Language {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range SupportedLanguages {
		if string(l) == code {
			return l
		}
	}
	return LangEnglish
}

// Source is a single citable reference.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// MediaType distinguishes images from video clips.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// MediaRef is a tagged reference to media content. Exactly one of the two
// fields is set, decided once at ingestion.
type MediaRef struct {
	Remote string `json:"remote,omitempty"` // URL-backed media
	Inline []byte `json:"inline,omitempty"` // embedded payload
}

// RemoteRef creates a URL-backed media reference.
func RemoteRef(url string) MediaRef { return MediaRef{Remote: url} }

// InlineRef creates an embedded media reference.
func InlineRef(data []byte) MediaRef { return MediaRef{Inline: data} }

// IsRemote reports whether the reference points at a URL.
func (r MediaRef) IsRemote() bool { return r.Remote != "" }

// IngestMediaSource classifies a raw media source string into a MediaRef.
// URL-shaped strings become remote references; everything else is treated
// as an embedded payload (base64 or raw bytes supplied by the caller).
func IngestMediaSource(src string) MediaRef {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "//") {
		return RemoteRef(src)
	}
	return InlineRef([]byte(src))
}

// MediaItem is one entry in the article's ordered media list.
type MediaItem struct {
	Type     MediaType `json:"type"`
	Ref      MediaRef  `json:"ref"`
	MimeType string    `json:"mimeType"`
	Caption  string    `json:"caption,omitempty"`
}

// Article is the evolving aggregate for one generation session. It is
// mutable while the workflow runs and treated as immutable once archived.
type Article struct {
	ID              string      `json:"id"`
	CreatedAt       int64       `json:"createdAt"` // epoch milliseconds
	Topic           string      `json:"topic"`
	Title           string      `json:"title"`
	Content         string      `json:"content"` // Markdown, never raw HTML
	ImagePrompt     string      `json:"imagePrompt"`
	MetaDescription string      `json:"metaDescription"`
	Keywords        []string    `json:"keywords"`
	Sources         []Source    `json:"sources"`
	RawSources      []Source    `json:"rawSources,omitempty"`
	Media           []MediaItem `json:"media"`
	AudioURL        string      `json:"audioUrl,omitempty"`
	Language        Language    `json:"language"`
}

// New creates an empty article for the given topic and language.
func New(topic string, lang Language) *Article {
	return &Article{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UnixMilli(),
		Topic:     topic,
		Language:  lang,
	}
}

// ReorderMedia moves the item at index from to index to, preserving every
// other element's relative order. Out-of-range indices are ignored.
func (a *Article) ReorderMedia(from, to int) {
	if from < 0 || from >= len(a.Media) || to < 0 || to >= len(a.Media) || from == to {
		return
	}
	item := a.Media[from]
	rest := append(a.Media[:from:from], a.Media[from+1:]...)
	a.Media = append(rest[:to:to], append([]MediaItem{item}, rest[to:]...)...)
}

// RemoveMedia deletes the item at index i, preserving order of the rest.
func (a *Article) RemoveMedia(i int) {
	if i < 0 || i >= len(a.Media) {
		return
	}
	a.Media = append(a.Media[:i:i], a.Media[i+1:]...)
}

// WordCount counts whitespace-separated words in the body.
func (a *Article) WordCount() int {
	return len(strings.Fields(a.Content))
}

// ReadTimeMinutes estimates reading time at 200 words per minute, rounded up.
func (a *Article) ReadTimeMinutes() int {
	words := a.WordCount()
	if words == 0 {
		return 0
	}
	return (words + 199) / 200
}

// ExportedMedia is one media entry in the export shape.
type ExportedMedia struct {
	Type    string `json:"type"`
	Src     string `json:"src"`
	Caption string `json:"caption"`
}

// ExportedArticle is the JSON shape exposed to downstream consumers.
type ExportedArticle struct {
	Title    string          `json:"title"`
	Excerpt  string          `json:"excerpt"`
	Category string          `json:"category"`
	Author   string          `json:"author"`
	Date     string          `json:"date"`
	ReadTime string          `json:"readTime"`
	AudioURL string          `json:"audioUrl,omitempty"`
	Content  string          `json:"content"`
	Sources  []string        `json:"sources"`
	Media    []ExportedMedia `json:"media"`
}

// Export converts a finalized article into the public export shape.
// Sources are reduced to their domain labels using the supplied grouper
// so the export stays independent of the sources package.
func Export(a *Article, domains []string) ExportedArticle {
	excerpt := a.MetaDescription
	if excerpt == "" {
		excerpt = firstSentence(a.Content)
	}

	category := "General"
	if len(a.Keywords) > 0 {
		category = a.Keywords[0]
	}

	media := make([]ExportedMedia, 0, len(a.Media))
	for _, m := range a.Media {
		src := m.Ref.Remote
		if !m.Ref.IsRemote() {
			// Inline payloads are arbitrary bytes; a data URI keeps them
			// intact through JSON encoding.
			src = fmt.Sprintf("data:%s;base64,%s", m.MimeType, base64.StdEncoding.EncodeToString(m.Ref.Inline))
		}
		media = append(media, ExportedMedia{
			Type:    string(m.Type),
			Src:     src,
			Caption: m.Caption,
		})
	}

	return ExportedArticle{
		Title:    a.Title,
		Excerpt:  excerpt,
		Category: category,
		Author:   "AI Newsroom",
		Date:     time.UnixMilli(a.CreatedAt).Format("2006-01-02"),
		ReadTime: fmt.Sprintf("%d min read", a.ReadTimeMinutes()),
		AudioURL: a.AudioURL,
		Content:  a.Content,
		Sources:  domains,
		Media:    media,
	}
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?"); i > 0 && i < 200 {
		return text[:i+1]
	}
	if len(text) > 160 {
		return text[:160] + "…"
	}
	return text
}
