package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Word forms accepted in addition to BCP-47 tags, so "French" in a config file
// or API request resolves like "fr".
var wordForms = map[string]string{
	"english":    "en",
	"turkish":    "tr",
	"german":     "de",
	"french":     "fr",
	"spanish":    "es",
	"italian":    "it",
	"portuguese": "pt",
	"russian":    "ru",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"arabic":     "ar",
	"hebrew":     "he",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
}

// Google's public endpoints still use a few legacy or regioned codes.
var googleCodes = map[string]string{
	"he": "iw",
	"jv": "jw",
}

// Parse resolves code to a language tag. Word forms are accepted.
func Parse(code string) (xlang.Tag, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return xlang.Und, false
	}
	if mapped, ok := wordForms[code]; ok {
		code = mapped
	}
	tag, err := xlang.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil || tag == xlang.Und {
		return xlang.Und, false
	}
	return tag, true
}

// Normalize returns the canonical BCP-47 form of code, or "" when it cannot be
// parsed.
func Normalize(code string) string {
	tag, ok := Parse(code)
	if !ok {
		return ""
	}
	return tag.String()
}

// Base returns the ISO 639 base language of code ("pt-BR" -> "pt").
func Base(code string) string {
	tag, ok := Parse(code)
	if !ok {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

// regionalBases are languages whose regional variants are written differently
// enough that translating between them is not an identity.
var regionalBases = map[string]bool{
	"pt": true,
	"zh": true,
}

// Same reports whether two codes name the same written language. Base and
// script must match, with the script inferred when absent, so "en-US" and "en"
// match while "zh-Hans" and "zh-Hant" do not. For pt and zh the inferred
// region must match too, so "pt-BR" and "pt-PT" differ.
func Same(a, b string) bool {
	tagA, okA := Parse(a)
	tagB, okB := Parse(b)
	if !okA || !okB {
		return false
	}
	baseA, _ := tagA.Base()
	baseB, _ := tagB.Base()
	if baseA != baseB {
		return false
	}
	scriptA, _ := tagA.Script()
	scriptB, _ := tagB.Script()
	if scriptA != scriptB {
		return false
	}
	if regionalBases[baseA.String()] {
		regionA, _ := tagA.Region()
		regionB, _ := tagB.Region()
		return regionA == regionB
	}
	return true
}

// Valid reports whether code parses as a language.
func Valid(code string) bool {
	_, ok := Parse(code)
	return ok
}

// DisplayName returns the English name of code. Returns "Unknown" for empty
// input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	tag, ok := Parse(code)
	if !ok {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// GoogleCode maps code to the form Google's public translate and TTS
// endpoints expect.
func GoogleCode(code string) string {
	tag, ok := Parse(code)
	if !ok {
		return strings.TrimSpace(code)
	}
	base, _ := tag.Base()
	if base.String() == "zh" {
		if script, _ := tag.Script(); script.String() == "Hant" {
			return "zh-TW"
		}
		return "zh-CN"
	}
	if region, conf := tag.Region(); conf == xlang.Exact && base.String() == "pt" && region.String() == "PT" {
		return "pt-PT"
	}
	if mapped, ok := googleCodes[base.String()]; ok {
		return mapped
	}
	return base.String()
}

// Regional returns code with a region, inferring the most likely one when code
// has none ("fr" -> "fr-FR"). Cloud speech voices are keyed this way.
func Regional(code string) string {
	tag, ok := Parse(code)
	if !ok {
		return strings.TrimSpace(code)
	}
	base, _ := tag.Base()
	region, conf := tag.Region()
	if conf == xlang.No {
		return base.String()
	}
	return base.String() + "-" + region.String()
}
