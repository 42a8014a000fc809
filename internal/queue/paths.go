package queue

import (
	"path/filepath"
	"strings"

	"slidecast/internal/textutil"
)

// WorkRoot returns the per-job scratch directory rooted at base, where
// extraction output and intermediate files live until the job finishes.
func (j Job) WorkRoot(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	segment := sanitizeSegment(j.ID)
	if segment == "" {
		segment = "job"
	}
	return filepath.Join(base, segment)
}

func sanitizeSegment(value string) string {
	value = textutil.SanitizeFileName(value)
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, " ", "-")
	return strings.Trim(value, "-_")
}
