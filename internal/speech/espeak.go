package speech

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"slidecast/internal/language"
	"slidecast/internal/services"
)

// espeak-ng names a few languages differently from ISO 639-1.
var espeakVoices = map[string]string{
	"zh": "cmn",
}

// EspeakProvider runs espeak-ng locally. It needs no network and is the
// chain's offline tail.
type EspeakProvider struct {
	Binary string
}

func (p EspeakProvider) Name() string { return "espeak" }

func (p EspeakProvider) Attempt(ctx context.Context, req Request) (Clip, error) {
	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = "espeak-ng"
	}
	voice, gender := EspeakVoice(req.Language, req.Gender)
	out := req.OutBase + ".wav"

	cmd := exec.CommandContext(ctx, binary, "-v", voice, "-w", out, "--stdin")
	cmd.Stdin = strings.NewReader(req.Text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Clip{}, services.Wrap(services.ErrProviderUnavailable, stageName, p.Name(),
			fmt.Sprintf("espeak-ng failed: %s", strings.TrimSpace(stderr.String())), err)
	}
	info, err := os.Stat(out)
	if err != nil {
		return Clip{}, services.Wrap(services.ErrProviderUnavailable, stageName, p.Name(), "espeak-ng wrote no audio", err)
	}
	return Clip{Path: out, Voice: voice, Gender: gender, Bytes: info.Size()}, nil
}

// EspeakVoice returns the voice argument for lang and the gender it selects.
// The +f3 and +m3 variants carry the gender.
func EspeakVoice(lang, gender string) (string, string) {
	base := language.Base(lang)
	if base == "" {
		base = "en"
	}
	if mapped, ok := espeakVoices[base]; ok {
		base = mapped
	}
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "male":
		return base + "+m3", "male"
	case "female":
		return base + "+f3", "female"
	default:
		return base, ""
	}
}
