package stage

import "strings"

// Health summarizes whether a stage can take slides and, when it can, the
// providers it will try for each slide in fallback order.
type Health struct {
	Name      string
	Ready     bool
	Detail    string
	Providers []string
}

// Healthy constructs a ready Health record listing the provider order.
func Healthy(name string, providers ...string) Health {
	return Health{Name: name, Ready: true, Providers: compactProviders(providers)}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Summary renders the one-line status detail: the failure reason for an
// unready stage, otherwise the provider chain such as "gemini -> minimal".
func (h Health) Summary() string {
	if !h.Ready {
		if strings.TrimSpace(h.Detail) == "" {
			return "not ready"
		}
		return h.Detail
	}
	chain := strings.Join(h.Providers, " -> ")
	switch {
	case chain == "":
		return h.Detail
	case h.Detail == "":
		return chain
	default:
		return chain + " (" + h.Detail + ")"
	}
}

func compactProviders(providers []string) []string {
	var out []string
	for _, p := range providers {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}
