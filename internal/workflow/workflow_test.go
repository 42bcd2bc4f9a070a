package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/newsforge/newsforge/internal/article"
	"github.com/newsforge/newsforge/internal/generate"
	"github.com/newsforge/newsforge/internal/history"
	"github.com/newsforge/newsforge/internal/llm"
	"github.com/newsforge/newsforge/internal/sources"
)

const goodResponse = "|||HEADLINE|||Fusion Breaks Even|||BODY|||Net gain achieved.|||IMAGE_PROMPT|||A glowing tokamak|||METADATA|||" +
	`{"keywords":["fusion"],"metaDescription":"Net energy gain."}`

type stubText struct {
	response string
	err      error
	hook     func() // runs while the backend call is in flight
}

func (s *stubText) Generate(ctx context.Context, prompt string, grounding bool) (*llm.TextResult, error) {
	if s.hook != nil {
		s.hook()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llm.TextResult{Text: s.response}, nil
}

func (s *stubText) IsConfigured() bool { return true }

type stubImages struct {
	payloads [][]byte
	err      error
}

func (s *stubImages) GenerateImages(ctx context.Context, prompt string, count int, aspectRatio string) ([][]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.payloads, nil
}

type stubSpeech struct {
	pcm []byte
	err error
}

func (s *stubSpeech) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pcm, nil
}

func newTestController(t *testing.T, text llm.TextBackend, images llm.ImageBackend, speech llm.SpeechBackend) (*Controller, *history.Store) {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	gen := generate.New(text, images, speech, nil, store, sources.NewResolver(nil, nil))
	return New(gen, store), store
}

func topicRequest() generate.Request {
	return generate.Request{Mode: generate.ModeTopic, Topic: "fusion", Language: article.LangEnglish, Tone: generate.ToneNeutral}
}

func TestStartGenerationGuard(t *testing.T) {
	ctrl, _ := newTestController(t, &stubText{response: goodResponse}, nil, nil)

	if err := ctrl.StartGeneration(context.Background(), generate.Request{Mode: generate.ModeTopic}); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
	if err := ctrl.StartGeneration(context.Background(), generate.Request{Mode: generate.ModeDocument, DocumentName: "a.pdf"}); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput for document without text, got %v", err)
	}

	// A guard failure is not an error state.
	if ctrl.State() != StateInput {
		t.Errorf("state = %q", ctrl.State())
	}
	if ctrl.Err() != "" {
		t.Errorf("guard failure should not set an error message, got %q", ctrl.Err())
	}
}

func TestStartGenerationSuccess(t *testing.T) {
	ctrl, _ := newTestController(t, &stubText{response: goodResponse}, nil, nil)

	if err := ctrl.StartGeneration(context.Background(), topicRequest()); err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	if ctrl.State() != StateTextReview {
		t.Errorf("state = %q, want TEXT_REVIEW", ctrl.State())
	}

	a := ctrl.Article()
	if a == nil {
		t.Fatal("expected article aggregate")
	}
	if a.Title != "Fusion Breaks Even" || a.Content != "Net gain achieved." {
		t.Errorf("merged article = %+v", a)
	}
	if a.Topic != "fusion" {
		t.Errorf("topic = %q", a.Topic)
	}
}

func TestStartGenerationFailureRevertsToInput(t *testing.T) {
	ctrl, _ := newTestController(t, &stubText{err: errors.New("backend down")}, nil, nil)

	if err := ctrl.StartGeneration(context.Background(), topicRequest()); err == nil {
		t.Fatal("expected error")
	}
	if ctrl.State() != StateInput {
		t.Errorf("state = %q, want INPUT", ctrl.State())
	}
	if ctrl.Err() == "" {
		t.Error("expected visible error message")
	}
}

func TestConfirmTextPopulatesMediaOnce(t *testing.T) {
	ctrl, _ := newTestController(t, &stubText{response: goodResponse}, &stubImages{payloads: [][]byte{{1}, {2}}}, nil)

	if err := ctrl.ConfirmText(context.Background(), true); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("ConfirmText from INPUT should be invalid, got %v", err)
	}

	if err := ctrl.StartGeneration(context.Background(), topicRequest()); err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	if err := ctrl.ConfirmText(context.Background(), true); err != nil {
		t.Fatalf("ConfirmText: %v", err)
	}
	if ctrl.State() != StateMediaReview {
		t.Errorf("state = %q, want MEDIA_REVIEW", ctrl.State())
	}

	got := len(ctrl.Article().Media)
	if got != 2 {
		t.Fatalf("expected 2 generated items (stock side degrades), got %d", got)
	}

	// Going back and confirming again must not duplicate the carousel.
	if err := ctrl.GoTo(StateTextReview); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if err := ctrl.ConfirmText(context.Background(), true); err != nil {
		t.Fatalf("second ConfirmText: %v", err)
	}
	if len(ctrl.Article().Media) != got {
		t.Errorf("media duplicated on re-confirm: %d -> %d", got, len(ctrl.Article().Media))
	}
}

func TestConfirmTextWithoutPopulate(t *testing.T) {
	ctrl, _ := newTestController(t, &stubText{response: goodResponse}, &stubImages{payloads: [][]byte{{1}}}, nil)

	if err := ctrl.StartGeneration(context.Background(), topicRequest()); err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	if err := ctrl.ConfirmText(context.Background(), false); err != nil {
		t.Fatalf("ConfirmText: %v", err)
	}
	if len(ctrl.Article().Media) != 0 {
		t.Errorf("media populated despite populate=false: %d items", len(ctrl.Article().Media))
	}
}

func TestFinalizeWithAudio(t *testing.T) {
	ctrl, store := newTestController(t, &stubText{response: goodResponse}, nil, &stubSpeech{pcm: []byte{1, 2}})

	if err := ctrl.StartGeneration(context.Background(), topicRequest()); err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	if err := ctrl.ConfirmText(context.Background(), false); err != nil {
		t.Fatalf("ConfirmText: %v", err)
	}
	if err := ctrl.Finalize(context.Background(), true); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if ctrl.State() != StateComplete {
		t.Errorf("state = %q, want COMPLETE", ctrl.State())
	}
	a := ctrl.Article()
	if a.AudioURL != "audio://"+a.ID {
		t.Errorf("audio url = %q", a.AudioURL)
	}

	// The article was archived; the narration blob is retrievable.
	stored, err := store.Get(a.ID)
	if err != nil || stored == nil {
		t.Fatalf("archived article: %v, %v", stored, err)
	}
	blob, err := store.GetAudio(a.ID)
	if err != nil || blob == nil {
		t.Errorf("narration blob: %v, %v", blob, err)
	}
}

func TestFinalizeAudioFailureIsNonFatal(t *testing.T) {
	ctrl, _ := newTestController(t, &stubText{response: goodResponse}, nil, &stubSpeech{err: errors.New("tts quota")})

	if err := ctrl.StartGeneration(context.Background(), topicRequest()); err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	if err := ctrl.ConfirmText(context.Background(), false); err != nil {
		t.Fatalf("ConfirmText: %v", err)
	}
	if err := ctrl.Finalize(context.Background(), true); err != nil {
		t.Fatalf("Finalize should not fail on narration error: %v", err)
	}

	if ctrl.State() != StateComplete {
		t.Errorf("state = %q, want COMPLETE", ctrl.State())
	}
	if ctrl.Article().AudioURL != "" {
		t.Errorf("audio url should stay empty, got %q", ctrl.Article().AudioURL)
	}
	if ctrl.Err() == "" {
		t.Error("expected visible narration error")
	}
}

func TestFinalizeDeclinedAudioClearsStaleReference(t *testing.T) {
	ctrl, store := newTestController(t, &stubText{response: goodResponse}, nil, &stubSpeech{pcm: []byte{1}})

	if err := ctrl.StartGeneration(context.Background(), topicRequest()); err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	if err := ctrl.ConfirmText(context.Background(), false); err != nil {
		t.Fatalf("ConfirmText: %v", err)
	}

	// Simulate a narration left over from an earlier pass.
	a := ctrl.Article()
	if err := store.PutAudio(a.ID, []byte{9, 9}); err != nil {
		t.Fatalf("PutAudio: %v", err)
	}
	a.AudioURL = "audio://" + a.ID

	if err := ctrl.Finalize(context.Background(), false); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if ctrl.Article().AudioURL != "" {
		t.Errorf("declined audio should clear the reference, got %q", ctrl.Article().AudioURL)
	}
	blob, err := store.GetAudio(a.ID)
	if err != nil {
		t.Fatalf("GetAudio: %v", err)
	}
	if blob != nil {
		t.Error("stale narration blob should be deleted")
	}
}

func TestGoTo(t *testing.T) {
	ctrl, _ := newTestController(t, &stubText{response: goodResponse}, nil, nil)

	if err := ctrl.StartGeneration(context.Background(), topicRequest()); err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}

	if err := ctrl.GoTo(StateMediaReview); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("forward navigation should be invalid, got %v", err)
	}
	if err := ctrl.GoTo(StateTextSearch); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("navigating into the transient search step should be invalid, got %v", err)
	}
	if err := ctrl.GoTo(StateInput); err != nil {
		t.Errorf("backward navigation to INPUT: %v", err)
	}
	if ctrl.Article() == nil {
		t.Error("backward navigation should keep the article")
	}
}

func TestEditTextInvalidatesAudio(t *testing.T) {
	ctrl, store := newTestController(t, &stubText{response: goodResponse}, nil, &stubSpeech{pcm: []byte{1}})

	if err := ctrl.StartGeneration(context.Background(), topicRequest()); err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	a := ctrl.Article()
	if err := store.PutAudio(a.ID, []byte{1, 2}); err != nil {
		t.Fatalf("PutAudio: %v", err)
	}
	a.AudioURL = "audio://" + a.ID

	if err := ctrl.EditText("New Title", "New body."); err != nil {
		t.Fatalf("EditText: %v", err)
	}
	if a.Title != "New Title" || a.Content != "New body." {
		t.Errorf("edit not applied: %+v", a)
	}
	if a.AudioURL != "" {
		t.Error("editing the text should invalidate the narration")
	}
	blob, err := store.GetAudio(a.ID)
	if err != nil {
		t.Fatalf("GetAudio: %v", err)
	}
	if blob != nil {
		t.Error("stale narration blob should be deleted")
	}
}

func TestReset(t *testing.T) {
	ctrl, _ := newTestController(t, &stubText{response: goodResponse}, nil, nil)

	if err := ctrl.StartGeneration(context.Background(), topicRequest()); err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	ctrl.Reset()

	if ctrl.State() != StateInput {
		t.Errorf("state = %q, want INPUT", ctrl.State())
	}
	if ctrl.Article() != nil {
		t.Error("article should be discarded")
	}
}

func TestResetDropsInFlightCompletion(t *testing.T) {
	text := &stubText{response: goodResponse}
	ctrl, _ := newTestController(t, text, nil, nil)

	// Reset the session while the backend call is in flight; the late
	// completion must be discarded.
	text.hook = func() { ctrl.Reset() }

	if err := ctrl.StartGeneration(context.Background(), topicRequest()); err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	if ctrl.Article() != nil {
		t.Error("late completion should not resurrect the article")
	}
	if ctrl.State() != StateInput {
		t.Errorf("state = %q, want INPUT", ctrl.State())
	}
}
