package deck

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Style is a narration style preset: a sampling temperature and a tone
// instruction passed to the narration provider.
type Style struct {
	Name        string  `json:"name"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Temperature float64 `json:"temperature"`
	Tone        string  `json:"tone"`
}

var styles = []Style{
	{
		Name:        "professional",
		Label:       "Professional Lecturer",
		Description: "Formal, academic tone suitable for business and educational presentations",
		Temperature: 0.5,
		Tone:        "formal and professional, like a university professor or corporate trainer",
	},
	{
		Name:        "engaging",
		Label:       "Engaging Teacher",
		Description: "Conversational and friendly, like your favorite teacher explaining concepts",
		Temperature: 0.7,
		Tone:        "conversational and engaging, like a favorite teacher who makes learning fun",
	},
	{
		Name:        "enthusiastic",
		Label:       "Enthusiastic Presenter",
		Description: "Energetic and passionate, great for motivational or sales presentations",
		Temperature: 0.8,
		Tone:        "highly energetic and passionate, using vivid language and excitement",
	},
	{
		Name:        "casual",
		Label:       "Casual Explainer",
		Description: "Relaxed and friendly, using simple language and everyday analogies",
		Temperature: 0.7,
		Tone:        "relaxed and friendly, using simple everyday language and relatable examples",
	},
	{
		Name:        "storyteller",
		Label:       "Story Teller",
		Description: "Narrative style that weaves information into a compelling story",
		Temperature: 0.8,
		Tone:        "narrative and story-driven, connecting ideas into a flowing story",
	},
}

// Styles returns the presets in display order.
func Styles() []Style {
	return append([]Style(nil), styles...)
}

// StyleNames returns the preset identifiers in display order.
func StyleNames() []string {
	names := make([]string, len(styles))
	for i, s := range styles {
		names[i] = s.Name
	}
	return names
}

// LookupStyle resolves a style by name, ignoring case and surrounding space.
func LookupStyle(name string) (Style, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, s := range styles {
		if s.Name == key {
			return s, true
		}
	}
	return Style{}, false
}

// DisplayName renders the style identifier in title case.
func (s Style) DisplayName() string {
	return cases.Title(language.English).String(s.Name)
}
