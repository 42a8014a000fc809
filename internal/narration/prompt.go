package narration

import (
	"fmt"
	"strings"

	"slidecast/internal/deck"
)

// SignOff closes every lecture.
const SignOff = "Thank you for your attention, and I will see you next week."

// Role selects the prompt template for a slide's position in the deck.
type Role string

const (
	RoleOpener Role = "opener"
	RoleBody   Role = "body"
	RoleCloser Role = "closer"
)

// RoleFor returns the role of slide index in a deck of total slides. A
// single-slide deck is treated as an opener.
func RoleFor(index, total int) Role {
	switch {
	case index == 0:
		return RoleOpener
	case index == total-1:
		return RoleCloser
	default:
		return RoleBody
	}
}

// ContextEntry is the tail of an earlier slide's narration.
type ContextEntry struct {
	Index int
	Tail  string
}

// Prompt is what a Generator receives.
type Prompt struct {
	System      string
	User        string
	Temperature float64
}

// Text joins the system and user parts for providers without a system role.
func (p Prompt) Text() string {
	if p.System == "" {
		return p.User
	}
	return p.System + "\n\n" + p.User
}

// PromptInput describes one slide to narrate.
type PromptInput struct {
	Index     int
	Total     int
	SlideText string
	Style     deck.Style
	Context   []ContextEntry
}

// BuildPrompt renders the opener, body or closer prompt for in.
func BuildPrompt(in PromptInput) Prompt {
	system := fmt.Sprintf("You are a lecturer narrating a slide presentation aloud. Respond with the spoken narration only, without headings, lists or stage directions. Tone: %s.", in.Style.Tone)
	number := in.Index + 1

	var b strings.Builder
	switch RoleFor(in.Index, in.Total) {
	case RoleOpener:
		fmt.Fprintf(&b, "You are the presenter starting a %d-slide presentation.\n", in.Total)
		fmt.Fprintf(&b, "This is the title slide: '%s'\n\n", in.SlideText)
		b.WriteString("INSTRUCTIONS:\n")
		b.WriteString("1. Start with 'Good morning everyone' (or a similar warm welcome).\n")
		b.WriteString("2. Introduce the topic clearly.\n")
		b.WriteString("3. Give a brief 1-sentence hook about what we will cover.\n")
	case RoleCloser:
		b.WriteString("You are concluding a presentation. This is the final slide.\n")
		writeContext(&b, in.Context)
		fmt.Fprintf(&b, "FINAL SLIDE CONTENT:\n%s\n\n", in.SlideText)
		b.WriteString("INSTRUCTIONS:\n")
		b.WriteString("1. Briefly summarize the main takeaway.\n")
		b.WriteString("2. Do NOT say 'Good morning' or introduce yourself.\n")
		fmt.Fprintf(&b, "3. End with this exact sign-off: '%s'\n", SignOff)
	default:
		fmt.Fprintf(&b, "You are narrating slide %d of %d (middle of the presentation).\n\n", number, in.Total)
		writeContext(&b, in.Context)
		fmt.Fprintf(&b, "CURRENT SLIDE CONTENT:\n%s\n\n", in.SlideText)
		b.WriteString("STRICT INSTRUCTIONS:\n")
		b.WriteString("1. Do NOT say 'Good morning', 'Hello', or 'Welcome' again.\n")
		b.WriteString("2. Do NOT introduce yourself.\n")
		b.WriteString("3. Use a transition phrase (e.g., 'Moving on...', 'Furthermore...', 'As we can see here...') to connect to the previous context.\n")
		b.WriteString("4. Explain the current slide content naturally.\n")
	}
	fmt.Fprintf(&b, "Tone: %s", in.Style.Tone)

	return Prompt{System: system, User: b.String(), Temperature: in.Style.Temperature}
}

func writeContext(b *strings.Builder, entries []ContextEntry) {
	if len(entries) == 0 {
		return
	}
	b.WriteString("PREVIOUS CONTEXT (flow from this):\n")
	for _, entry := range entries {
		fmt.Fprintf(b, "Slide %d ended with: ...%s\n", entry.Index+1, entry.Tail)
	}
	b.WriteString("\n")
}

// tail returns the last n runes of s.
func tail(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if n <= 0 || len(runes) <= n {
		return string(runes)
	}
	return string(runes[len(runes)-n:])
}
