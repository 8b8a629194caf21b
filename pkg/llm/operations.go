package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/scriptorium/scriptorium/pkg/config"
)

// sourceContextLimit caps how much of a source script is sent when deriving
// an outline, to stay inside the provider context window.
const sourceContextLimit = 24000

// ChunkRequest parameterizes one script-chunk generation call.
type ChunkRequest struct {
	Model         string
	Language      string
	ScriptTitle   string
	ItemType      string
	SectionTitle  string
	SectionNotes  string
	ParentContext string
	TargetChars   int
}

// GenerateOutline asks for a structured Markdown outline sized to the
// estimate: an intro, quote analyses, story analyses, and a conclusion.
func (c *Client) GenerateOutline(ctx context.Context, model, title, language string, est config.Estimate) (string, error) {
	system := "You are an experienced scriptwriter for long-form narrated audio programs. " +
		"You answer with a Markdown outline only, no commentary."
	user := fmt.Sprintf(
		"Write a Markdown outline in %s for a narration script titled %q.\n"+
			"Structure: one introduction section, %d quote-analysis sections, "+
			"%d story-analysis sections, and one conclusion section.\n"+
			"Use '##' for sections and '###' for each quote or story. "+
			"Mark quotes with the word for 'quote' and stories with the word for 'story' in %s. "+
			"Add one line of guidance under every heading.",
		language, title, est.NumQuotes, est.NumStories, language)
	return c.complete(ctx, model, system, user, 0)
}

// GenerateChunk produces the narration text for one flattened outline item.
func (c *Client) GenerateChunk(ctx context.Context, req ChunkRequest) (string, error) {
	system := fmt.Sprintf(
		"You are narrating a long-form audio program in %s. "+
			"Write flowing spoken prose with no headings, lists, or stage directions.",
		req.Language)

	var b strings.Builder
	fmt.Fprintf(&b, "Script title: %s\n", req.ScriptTitle)
	fmt.Fprintf(&b, "Section (%s): %s\n", req.ItemType, req.SectionTitle)
	if req.SectionNotes != "" {
		fmt.Fprintf(&b, "Guidance: %s\n", req.SectionNotes)
	}
	if req.ParentContext != "" {
		fmt.Fprintf(&b, "Surrounding context: %s\n", req.ParentContext)
	}
	fmt.Fprintf(&b, "Write roughly %d characters of narration for this section in %s.",
		req.TargetChars, req.Language)

	return c.complete(ctx, req.Model, system, b.String(), 0)
}

// GenerateExtraChunk produces an additional quote or story analysis when the
// script is under its length target. existingTitles is a de-duplication
// preamble so the model does not repeat material.
func (c *Client) GenerateExtraChunk(ctx context.Context, model, itemType, title, scriptTitle, language string, existingTitles []string, targetChars int) (string, error) {
	kind := "story"
	if strings.Contains(itemType, "quote") {
		kind = "quote"
	}
	system := fmt.Sprintf(
		"You are narrating a long-form audio program in %s. "+
			"Write flowing spoken prose with no headings, lists, or stage directions.",
		language)

	var b strings.Builder
	fmt.Fprintf(&b, "Script title: %s\n", scriptTitle)
	fmt.Fprintf(&b, "Add one more %s analysis titled %q.\n", kind, title)
	if len(existingTitles) > 0 {
		fmt.Fprintf(&b, "It must not repeat any of these already-covered sections:\n")
		for _, t := range existingTitles {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}
	fmt.Fprintf(&b, "Pick a fresh %s relevant to the script and analyze it in roughly %d characters of %s narration.",
		kind, targetChars, language)

	return c.complete(ctx, model, system, b.String(), 0)
}

// SuggestTitles asks for n candidate script titles for a seed topic,
// returned one per line.
func (c *Client) SuggestTitles(ctx context.Context, model, seed, language string, n int) ([]string, error) {
	system := "You suggest compelling titles for narrated audio programs. " +
		"Answer with one title per line, no numbering, no commentary."
	user := fmt.Sprintf("Suggest %d titles in %s for a program about: %s", n, language, seed)

	raw, err := c.complete(ctx, model, system, user, 0)
	if err != nil {
		return nil, err
	}

	var titles []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Trim(strings.TrimSpace(line), `"'-*0123456789. `)
		if line != "" {
			titles = append(titles, line)
		}
	}
	if len(titles) > n {
		titles = titles[:n]
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("no titles in suggestion response")
	}
	return titles, nil
}

// TranslateTitle renders a title in another language.
func (c *Client) TranslateTitle(ctx context.Context, model, title, toLanguage string) (string, error) {
	system := "You translate titles. Answer with the translated title only."
	user := fmt.Sprintf("Translate this title into %s: %s", toLanguage, title)
	return c.complete(ctx, model, system, user, 0)
}

// GenerateSEOTitle produces a search-friendly display title.
func (c *Client) GenerateSEOTitle(ctx context.Context, model, title, language string) (string, error) {
	system := "You write search-optimized video titles. Answer with the title only."
	user := fmt.Sprintf("Rewrite this title in %s as a compelling, search-friendly program title: %s",
		language, title)
	return c.complete(ctx, model, system, user, 0)
}

// DeriveOutline summarizes a source script into a Markdown outline of its
// sections, quotes, and stories. The source is truncated to fit the context
// window.
func (c *Client) DeriveOutline(ctx context.Context, model, sourceScript, language string) (string, error) {
	if len(sourceScript) > sourceContextLimit {
		sourceScript = sourceScript[:sourceContextLimit]
	}
	system := "You analyze narration scripts. Answer with a Markdown outline only."
	user := fmt.Sprintf(
		"Summarize the following script into a Markdown outline in %s. "+
			"Use '##' for sections and '###' for each quote or story it contains.\n\n%s",
		language, sourceScript)
	return c.complete(ctx, model, system, user, 0)
}

// RewriteScript produces a fresh script in the requested language following
// the derived outline. The output token budget is sized from the character
// target with a language-dependent character-to-token ratio.
func (c *Client) RewriteScript(ctx context.Context, model, sourceScript, derivedOutline, language string, targetChars int) (string, error) {
	if len(sourceScript) > sourceContextLimit {
		sourceScript = sourceScript[:sourceContextLimit]
	}

	system := fmt.Sprintf(
		"You rewrite narration scripts in %s. "+
			"Write flowing spoken prose with no headings or lists.", language)
	user := fmt.Sprintf(
		"Rewrite the following script in %s, targeting roughly %d characters. "+
			"Follow this outline:\n\n%s\n\nSource script:\n\n%s",
		language, targetChars, derivedOutline, sourceScript)

	return c.complete(ctx, model, system, user, TokenBudget(language, targetChars))
}

// TokenBudget converts a character target into an output token budget.
// Latin-script languages average more characters per token than CJK.
func TokenBudget(language string, targetChars int) int {
	ratio := 0.8
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "chinese", "japanese", "korean":
		ratio = 1.3
	}
	return int(float64(targetChars) * ratio)
}
