// Package workflow is the finite-state machine supervising one article
// generation session: which step is active, which operations the user may
// trigger, and what gets reset on the way back.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/newsforge/newsforge/internal/article"
	"github.com/newsforge/newsforge/internal/generate"
	"github.com/newsforge/newsforge/internal/history"
)

// State is one step of the generation workflow.
type State string

const (
	StateInput       State = "INPUT"
	StateTextSearch  State = "TEXT_SEARCH"
	StateTextReview  State = "TEXT_REVIEW"
	StateMediaReview State = "MEDIA_REVIEW"
	StateComplete    State = "COMPLETE"
)

var stateOrder = map[State]int{
	StateInput:       0,
	StateTextSearch:  1,
	StateTextReview:  2,
	StateMediaReview: 3,
	StateComplete:    4,
}

// Stage is one independently-triggerable unit of backend work, guarded
// against concurrent re-triggering.
type Stage string

const (
	StageText  Stage = "text"
	StageMedia Stage = "media"
	StageAudio Stage = "audio"
)

var (
	// ErrMissingInput means the INPUT guard failed; no transition occurs
	// and no error state is entered.
	ErrMissingInput = errors.New("topic text or document required")
	// ErrBusy means the same stage is already in flight.
	ErrBusy = errors.New("stage already in flight")
	// ErrInvalidTransition means the requested navigation is not legal
	// from the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Controller owns the in-progress article and its workflow state. All
// methods are safe for concurrent use; backend calls run outside the lock
// and their completions are discarded when the session was reset or
// advanced in the meantime.
type Controller struct {
	gen   *generate.Orchestrator
	store *history.Store

	mu     sync.Mutex
	state  State
	art    *article.Article
	req    generate.Request
	status string
	errMsg string
	busy   map[Stage]bool
	run    int // incremented on reset; stale completions check it
}

// New creates a controller at the INPUT step.
func New(gen *generate.Orchestrator, store *history.Store) *Controller {
	return &Controller{
		gen:   gen,
		store: store,
		state: StateInput,
		busy:  map[Stage]bool{},
	}
}

// State returns the current workflow step.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Article returns the in-progress article, or nil before generation starts.
func (c *Controller) Article() *article.Article {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.art
}

// Err returns the current user-visible error message, if any.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Status returns the current transient status message.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// StartGeneration validates the input, creates the article aggregate and
// runs the text stage. On success the workflow lands on TEXT_REVIEW; on
// backend failure it reverts to INPUT with a visible error. A guard
// failure returns ErrMissingInput without entering an error state.
func (c *Controller) StartGeneration(ctx context.Context, req generate.Request) error {
	switch req.Mode {
	case generate.ModeDocument:
		if req.DocumentName == "" || req.DocumentText == "" {
			return ErrMissingInput
		}
	default:
		if req.Topic == "" {
			return ErrMissingInput
		}
	}

	c.mu.Lock()
	if c.busy[StageText] {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy[StageText] = true
	run := c.run
	topic := req.Topic
	if req.Mode == generate.ModeDocument {
		topic = req.DocumentName
	}
	c.art = article.New(topic, req.Language)
	c.req = req
	c.state = StateTextSearch
	c.status = "Generating article text…"
	c.errMsg = ""
	art := c.art
	c.mu.Unlock()

	outcome, err := c.gen.GenerateText(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy[StageText] = false
	if c.run != run || c.art != art {
		// The session was reset while the call was in flight; drop the
		// late result instead of corrupting the new article.
		return nil
	}

	if err != nil {
		c.state = StateInput
		c.errMsg = fmt.Sprintf("Text generation failed: %v", err)
		c.status = ""
		return err
	}

	mergeText(c.art, outcome)
	c.state = StateTextReview
	c.status = ""
	return nil
}

// RegenerateText re-runs the text stage with updated settings from
// TEXT_REVIEW. Curated media survives; the narration is invalidated since
// it no longer matches the new text.
func (c *Controller) RegenerateText(ctx context.Context, req generate.Request) error {
	c.mu.Lock()
	if c.art == nil || (c.state != StateTextReview && c.state != StateMediaReview) {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	if c.busy[StageText] {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy[StageText] = true
	run := c.run
	art := c.art
	c.req = req
	c.status = "Regenerating article text…"
	c.mu.Unlock()

	outcome, err := c.gen.GenerateText(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy[StageText] = false
	if c.run != run || c.art != art {
		return nil
	}
	c.status = ""
	if err != nil {
		c.errMsg = fmt.Sprintf("Text generation failed: %v", err)
		return err
	}

	mergeText(c.art, outcome)
	c.invalidateAudioLocked()
	return nil
}

// ConfirmText moves from TEXT_REVIEW to MEDIA_REVIEW. When populate is
// true the media stage runs, but only if the article has no media yet, so
// repeated visits never duplicate the carousel. Media failures degrade to
// fewer items.
func (c *Controller) ConfirmText(ctx context.Context, populate bool) error {
	c.mu.Lock()
	if c.state != StateTextReview || c.art == nil {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	if c.busy[StageMedia] {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = StateMediaReview
	if !populate || len(c.art.Media) > 0 {
		c.mu.Unlock()
		return nil
	}
	c.busy[StageMedia] = true
	run := c.run
	art := c.art
	c.status = "Gathering media…"
	c.mu.Unlock()

	items := c.gen.PopulateMedia(ctx, art)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy[StageMedia] = false
	if c.run != run || c.art != art {
		return nil
	}
	c.art.Media = append(c.art.Media, items...)
	c.status = ""
	return nil
}

// Finalize applies the audio decision, archives the article and moves to
// COMPLETE. Audio failure is non-fatal: the article completes without
// narration and the error is surfaced. Persistence failures are logged and
// swallowed; the in-memory article stays authoritative for the session.
func (c *Controller) Finalize(ctx context.Context, includeAudio bool) error {
	c.mu.Lock()
	if c.state != StateMediaReview || c.art == nil {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	if c.busy[StageAudio] {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy[StageAudio] = true
	run := c.run
	art := c.art
	tone := c.req.Tone
	c.status = "Finalizing…"
	c.mu.Unlock()

	var audioErr error
	var audioRef string
	if includeAudio && art.AudioURL == "" {
		audioRef, audioErr = c.gen.GenerateAudio(ctx, art, tone)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy[StageAudio] = false
	if c.run != run || c.art != art {
		return nil
	}

	if includeAudio {
		if audioErr != nil {
			c.errMsg = fmt.Sprintf("Narration failed, completing without audio: %v", audioErr)
		} else if audioRef != "" {
			c.art.AudioURL = audioRef
		}
	} else {
		// Declined: clear even a stale reference from a prior run.
		c.invalidateAudioLocked()
	}

	if err := c.store.Append(c.art); err != nil {
		log.Printf("workflow: archiving article failed: %v", err)
	}

	c.state = StateComplete
	c.status = ""
	return nil
}

// GoTo navigates backward to an earlier, re-enterable step without losing
// already-produced fields. TEXT_SEARCH is transient and cannot be entered
// directly.
func (c *Controller) GoTo(target State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	targetIdx, ok := stateOrder[target]
	if !ok || target == StateTextSearch {
		return ErrInvalidTransition
	}
	if targetIdx >= stateOrder[c.state] {
		return ErrInvalidTransition
	}
	c.state = target
	c.errMsg = ""
	c.status = ""
	return nil
}

// EditText updates the title and body. Any cached narration no longer
// matches the text and is invalidated, as is cached social copy.
func (c *Controller) EditText(title, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.art == nil {
		return ErrInvalidTransition
	}
	if title != "" {
		c.art.Title = title
	}
	if content != "" {
		c.art.Content = content
	}
	c.invalidateAudioLocked()
	return nil
}

// ReorderMedia moves one media item, preserving the rest.
func (c *Controller) ReorderMedia(from, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.art == nil {
		return ErrInvalidTransition
	}
	c.art.ReorderMedia(from, to)
	return nil
}

// AddMedia appends a media item curated by the user (upload or URL paste).
func (c *Controller) AddMedia(item article.MediaItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.art == nil {
		return ErrInvalidTransition
	}
	c.art.Media = append(c.art.Media, item)
	return nil
}

// Reset discards the in-progress article and every transient flag and
// returns to INPUT. In-flight stage completions for the old session are
// dropped when they arrive.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run++
	c.art = nil
	c.req = generate.Request{}
	c.state = StateInput
	c.status = ""
	c.errMsg = ""
	c.busy = map[Stage]bool{}
}

func (c *Controller) invalidateAudioLocked() {
	if c.art == nil {
		return
	}
	if c.art.AudioURL != "" {
		if err := c.store.DeleteAudio(c.art.ID); err != nil {
			log.Printf("workflow: deleting stale narration: %v", err)
		}
	}
	c.art.AudioURL = ""
	c.gen.InvalidateSocial(c.art.ID)
}

func mergeText(a *article.Article, out *generate.TextOutcome) {
	a.Title = out.Title
	a.Content = out.Content
	a.ImagePrompt = out.ImagePrompt
	a.MetaDescription = out.MetaDescription
	a.Keywords = out.Keywords
	a.Sources = out.Sources
	a.RawSources = out.RawSources
}
