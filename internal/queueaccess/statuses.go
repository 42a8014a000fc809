package queueaccess

import (
	"fmt"
	"strings"

	"slidecast/internal/queue"
)

// ParseStatuses converts status filter strings, rejecting unknown values.
func ParseStatuses(values []string) ([]queue.Status, error) {
	out := make([]queue.Status, 0, len(values))
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		out = append(out, status)
	}
	return out, nil
}
