// Package generate drives the three generation stages (text, media, audio)
// plus derivative social copy, merging partial results into the article
// aggregate owned by the caller.
package generate

import (
	"context"
	"fmt"
	"log"
	"sync"
	"unicode/utf8"

	"github.com/newsforge/newsforge/internal/article"
	"github.com/newsforge/newsforge/internal/history"
	"github.com/newsforge/newsforge/internal/llm"
	"github.com/newsforge/newsforge/internal/normalize"
	"github.com/newsforge/newsforge/internal/sources"
	"github.com/newsforge/newsforge/internal/stock"
)

// maxSpeechInput bounds the text sent to the speech backend. Longer bodies
// are cut and marked so the narration ends cleanly.
const maxSpeechInput = 4000

const truncationMarker = "…"

// aiImageCount is how many images the image stage requests per article.
const aiImageCount = 2

// stockItemCount is how many stock results the media stage requests.
const stockItemCount = 4

// TextOutcome is the fresh result of one text stage run. The caller merges
// it into the aggregate; the orchestrator never mutates prior state.
type TextOutcome struct {
	Title           string
	Content         string
	ImagePrompt     string
	MetaDescription string
	Keywords        []string
	Sources         []article.Source
	RawSources      []article.Source
}

// Orchestrator coordinates the generation backends and the audio store.
type Orchestrator struct {
	text     llm.TextBackend
	images   llm.ImageBackend
	speech   llm.SpeechBackend
	stock    stock.Backend
	store    *history.Store
	resolver *sources.Resolver

	socialMu sync.Mutex
	social   map[string]string // articleID|platform -> generated post
}

// New creates an orchestrator. Any backend may be nil; the corresponding
// stage then fails with a configuration error instead of crashing.
func New(text llm.TextBackend, images llm.ImageBackend, speech llm.SpeechBackend, stockBackend stock.Backend, store *history.Store, resolver *sources.Resolver) *Orchestrator {
	return &Orchestrator{
		text:     text,
		images:   images,
		speech:   speech,
		stock:    stockBackend,
		store:    store,
		resolver: resolver,
		social:   map[string]string{},
	}
}

// GenerateText runs the text stage: builds the composite prompt, calls the
// backend (search-grounded in topic mode), and normalizes the response into
// structured fields. Safe to re-invoke; always returns a fresh outcome.
func (o *Orchestrator) GenerateText(ctx context.Context, req Request) (*TextOutcome, error) {
	if o.text == nil {
		return nil, fmt.Errorf("text backend not configured")
	}

	prompt := BuildTextPrompt(req)
	grounding := req.Mode != ModeDocument

	result, err := o.text.Generate(ctx, prompt, grounding)
	if err != nil {
		return nil, fmt.Errorf("text generation: %w", err)
	}

	topic := req.Topic
	if req.Mode == ModeDocument {
		topic = req.DocumentName
	}

	parsed := normalize.Split(result.Text, topic)
	meta := normalize.ParseMetadata(parsed.MetadataJSON)

	candidates := make([]sources.Candidate, 0, len(result.Grounding))
	raw := make([]article.Source, 0, len(result.Grounding))
	for _, g := range result.Grounding {
		candidates = append(candidates, sources.Candidate{Title: g.Title, URI: g.URI})
		raw = append(raw, article.Source{Title: g.Title, URI: g.URI})
	}

	docName := ""
	if req.Mode == ModeDocument {
		docName = req.DocumentName
	}
	resolved := o.resolver.Resolve(candidates, docName)

	out := &TextOutcome{
		Title:           parsed.Headline,
		Content:         normalize.CleanBody(parsed.Body),
		ImagePrompt:     parsed.ImagePrompt,
		MetaDescription: meta.MetaDescription,
		Keywords:        meta.Keywords,
		Sources:         resolved,
	}
	// Keep the unfiltered candidates around for diagnostics when nothing
	// survived resolution.
	if len(resolved) == 0 && len(raw) > 0 {
		out.RawSources = raw
	}
	return out, nil
}

// GenerateImages runs the image stage for the given prompt.
func (o *Orchestrator) GenerateImages(ctx context.Context, prompt string) ([]article.MediaItem, error) {
	if o.images == nil {
		return nil, fmt.Errorf("image backend not configured")
	}
	payloads, err := o.images.GenerateImages(ctx, prompt, aiImageCount, "16:9")
	if err != nil {
		return nil, fmt.Errorf("image generation: %w", err)
	}

	items := make([]article.MediaItem, 0, len(payloads))
	for _, data := range payloads {
		items = append(items, article.MediaItem{
			Type:     article.MediaImage,
			Ref:      article.InlineRef(data),
			MimeType: "image/png",
		})
	}
	return items, nil
}

// SearchStockMedia queries the stock backend for tagged media.
func (o *Orchestrator) SearchStockMedia(ctx context.Context, query, kind string, count int) ([]article.MediaItem, error) {
	if o.stock == nil {
		return nil, fmt.Errorf("stock backend not configured")
	}
	results, err := o.stock.Search(ctx, query, kind, count)
	if err != nil {
		return nil, fmt.Errorf("stock search: %w", err)
	}

	items := make([]article.MediaItem, 0, len(results))
	for _, r := range results {
		mediaType := article.MediaImage
		if r.Kind == "video" {
			mediaType = article.MediaVideo
		}
		items = append(items, article.MediaItem{
			Type:     mediaType,
			Ref:      article.RemoteRef(r.URL),
			MimeType: r.MimeType,
			Caption:  r.Caption,
		})
	}
	return items, nil
}

// PopulateMedia runs the AI image call and the stock search concurrently
// and concatenates the results. Either side failing contributes zero items;
// the media stage degrades rather than aborting the pipeline.
func (o *Orchestrator) PopulateMedia(ctx context.Context, a *article.Article) []article.MediaItem {
	var (
		wg       sync.WaitGroup
		aiItems  []article.MediaItem
		stockRes []article.MediaItem
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		items, err := o.GenerateImages(ctx, a.ImagePrompt)
		if err != nil {
			log.Printf("media stage: image generation degraded: %v", err)
			return
		}
		aiItems = items
	}()
	go func() {
		defer wg.Done()
		query := a.Topic
		if len(a.Keywords) > 0 {
			query = a.Keywords[0]
		}
		items, err := o.SearchStockMedia(ctx, query, "", stockItemCount)
		if err != nil {
			log.Printf("media stage: stock search degraded: %v", err)
			return
		}
		stockRes = items
	}()
	wg.Wait()

	return append(aiItems, stockRes...)
}

// GenerateAudio narrates the article body with the persona mapped from the
// editorial tone, wraps the raw PCM into a WAV container, and persists the
// blob keyed by article id so it survives reload. Returns the playable
// audio reference.
func (o *Orchestrator) GenerateAudio(ctx context.Context, a *article.Article, tone Tone) (string, error) {
	if o.speech == nil {
		return "", fmt.Errorf("speech backend not configured")
	}

	text := a.Content
	if len(text) > maxSpeechInput {
		cut := maxSpeechInput
		// Back up to a rune boundary so the cut never splits a character.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + truncationMarker
	}

	pcm, err := o.speech.Synthesize(ctx, text, PersonaForTone(tone))
	if err != nil {
		return "", fmt.Errorf("speech synthesis: %w", err)
	}

	wav := EncodeWAV(pcm)
	if err := o.store.PutAudio(a.ID, wav); err != nil {
		return "", fmt.Errorf("persisting narration: %w", err)
	}
	return AudioRef(a.ID), nil
}

// AudioRef is the stable reference under which an article's narration is
// stored and rehydrated.
func AudioRef(articleID string) string {
	return "audio://" + articleID
}

// GenerateSocialPost produces platform-specific derivative copy. Results
// are cached per article and platform so switching platforms never
// discards a prior generation.
func (o *Orchestrator) GenerateSocialPost(ctx context.Context, a *article.Article, platform Platform) (string, error) {
	key := a.ID + "|" + string(platform)

	o.socialMu.Lock()
	if cached, ok := o.social[key]; ok {
		o.socialMu.Unlock()
		return cached, nil
	}
	o.socialMu.Unlock()

	if o.text == nil {
		return "", fmt.Errorf("text backend not configured")
	}
	prompt, err := BuildSocialPrompt(platform, a.Title, a.Content)
	if err != nil {
		return "", err
	}

	result, err := o.text.Generate(ctx, prompt, false)
	if err != nil {
		return "", fmt.Errorf("social post generation: %w", err)
	}

	post := normalize.StripCodeFence(result.Text)
	o.socialMu.Lock()
	o.social[key] = post
	o.socialMu.Unlock()
	return post, nil
}

// InvalidateSocial drops cached posts for an article, used when its text
// changes.
func (o *Orchestrator) InvalidateSocial(articleID string) {
	o.socialMu.Lock()
	defer o.socialMu.Unlock()
	for key := range o.social {
		if len(key) > len(articleID) && key[:len(articleID)] == articleID && key[len(articleID)] == '|' {
			delete(o.social, key)
		}
	}
}
