package generate

import (
	"fmt"
	"strings"

	"github.com/newsforge/newsforge/internal/article"
)

// Mode selects the primary input of a generation run.
type Mode string

const (
	ModeTopic    Mode = "topic"
	ModeDocument Mode = "document"
)

// Length is the target article length bucket.
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// Tone is the editorial tone of the article and its narration.
type Tone string

const (
	ToneNeutral       Tone = "neutral"
	ToneFormal        Tone = "formal"
	ToneCasual        Tone = "casual"
	ToneInvestigative Tone = "investigative"
	ToneOptimistic    Tone = "optimistic"
	ToneCritical      Tone = "critical"
	ToneNarrative     Tone = "narrative"
)

// Platform identifies a social network with its own structural constraints.
type Platform string

const (
	PlatformX        Platform = "x"
	PlatformLinkedIn Platform = "linkedin"
	PlatformFacebook Platform = "facebook"
)

// Request carries everything the text stage needs to build its prompt.
type Request struct {
	Mode         Mode
	Topic        string
	DocumentName string
	DocumentText string
	Language     article.Language
	Length       Length
	Tone         Tone
	Audience     string
	Focus        string

	// Strict requirements, injected only when set.
	IncludeQuotes          bool
	IncludeStats           bool
	IncludeCounterArgument bool

	// Topic mode only: search-grounding preferences.
	TimeFrame        string
	Region           string
	PreferredDomains []string
	BlockedDomains   []string
	VerifiedOnly     bool
}

const formatInstruction = `You are a professional journalist writing a complete news article.

Respond with EXACTLY four sections separated by these literal markers, in this order:
|||HEADLINE|||
<a single compelling headline>
|||BODY|||
<the full article body in Markdown, no HTML>
|||IMAGE_PROMPT|||
<one vivid prompt for an editorial illustration of this article>
|||METADATA|||
<a JSON object: {"keywords": ["..."], "metaDescription": "..."}>`

const (
	quotesClause          = "The article must include direct quotes from involved parties or subject-matter experts."
	statsClause           = "The article must include concrete statistics and verifiable figures."
	counterArgumentClause = "The article must present at least one substantive counter-argument to its main thesis."
	verifiedOnlyClause    = "Cite only verified, reputable sources; discard anything you cannot attribute."
)

var wordGuidelines = map[Length]string{
	LengthShort:  "approximately 300-450 words",
	LengthMedium: "approximately 700-900 words",
	LengthLong:   "approximately 1200-1500 words",
}

var languageNames = map[article.Language]string{
	article.LangEnglish: "English",
	article.LangGerman:  "German",
	article.LangFrench:  "French",
	article.LangSpanish: "Spanish",
	article.LangItalian: "Italian",
}

// BuildTextPrompt assembles the composite instruction for the text stage.
// Strict-requirement clauses appear only when their flag is set; document
// mode carries the document as primary input and no search instructions.
func BuildTextPrompt(req Request) string {
	parts := []string{formatInstruction}

	lang := languageNames[req.Language]
	if lang == "" {
		lang = "English"
	}
	parts = append(parts, fmt.Sprintf("Write the entire article in %s.", lang))

	if guideline, ok := wordGuidelines[req.Length]; ok {
		parts = append(parts, fmt.Sprintf("Target length: %s.", guideline))
	}
	if req.Tone != "" {
		parts = append(parts, fmt.Sprintf("Editorial tone: %s.", req.Tone))
	}
	if req.Audience != "" {
		parts = append(parts, fmt.Sprintf("Target audience: %s.", req.Audience))
	}
	if req.Focus != "" {
		parts = append(parts, fmt.Sprintf("Editorial focus: %s.", req.Focus))
	}

	if req.IncludeQuotes {
		parts = append(parts, quotesClause)
	}
	if req.IncludeStats {
		parts = append(parts, statsClause)
	}
	if req.IncludeCounterArgument {
		parts = append(parts, counterArgumentClause)
	}

	switch req.Mode {
	case ModeDocument:
		parts = append(parts,
			fmt.Sprintf("Write the article based on the following document (%s). It is your primary and only input:\n\n%s",
				req.DocumentName, req.DocumentText))
	default:
		if req.TimeFrame != "" {
			parts = append(parts, fmt.Sprintf("Focus on developments within this time frame: %s.", req.TimeFrame))
		}
		if req.Region != "" {
			parts = append(parts, fmt.Sprintf("Prefer sources from this region: %s.", req.Region))
		}
		if len(req.PreferredDomains) > 0 {
			parts = append(parts, "Prefer information from these domains: "+strings.Join(req.PreferredDomains, ", ")+".")
		}
		if len(req.BlockedDomains) > 0 {
			parts = append(parts, "Never use information from these domains: "+strings.Join(req.BlockedDomains, ", ")+".")
		}
		if req.VerifiedOnly {
			parts = append(parts, verifiedOnlyClause)
		}
		parts = append(parts, fmt.Sprintf("Topic: %s", req.Topic))
	}

	return strings.Join(parts, "\n\n")
}

// personaByTone maps each editorial tone to one narration persona.
var personaByTone = map[Tone]string{
	ToneNeutral:       "Kore",
	ToneFormal:        "Charon",
	ToneCasual:        "Puck",
	ToneInvestigative: "Fenrir",
	ToneOptimistic:    "Puck",
	ToneCritical:      "Charon",
	ToneNarrative:     "Fenrir",
}

const defaultPersona = "Kore"

// PersonaForTone selects the narration voice for a tone, falling back to
// the default persona for unrecognized values.
func PersonaForTone(tone Tone) string {
	if persona, ok := personaByTone[tone]; ok {
		return persona
	}
	return defaultPersona
}

var socialPrompts = map[Platform]string{
	PlatformX: `Write a post for X about the article below. Hard limit: 280 characters including hashtags. One sharp hook sentence, at most two hashtags, no links.

Article title: %s

Article:
%s

Respond with ONLY the post text.`,

	PlatformLinkedIn: `Write a LinkedIn post about the article below. Structure: one attention-grabbing hook line, then 3-4 short bullet points with the key takeaways, then one question to invite discussion. Professional register, no emoji.

Article title: %s

Article:
%s

Respond with ONLY the post text.`,

	PlatformFacebook: `Write a Facebook post about the article below. Conversational and warm, 2-3 short paragraphs, a few fitting emoji, end with an invitation to share opinions.

Article title: %s

Article:
%s

Respond with ONLY the post text.`,
}

// BuildSocialPrompt returns the platform-specific instruction for
// derivative social copy. Each platform encodes its own structural
// constraints; there is no shared template.
func BuildSocialPrompt(platform Platform, title, content string) (string, error) {
	tmpl, ok := socialPrompts[platform]
	if !ok {
		return "", fmt.Errorf("unsupported platform %q", platform)
	}
	return fmt.Sprintf(tmpl, title, content), nil
}
