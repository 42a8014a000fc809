package assembly

import (
	"fmt"
	"strings"
)

// overlayFontSize scales the overlay text with the frame height, 39px at 1080p.
func overlayFontSize(height int) int {
	size := height * 37 / 1000
	if size < 12 {
		return 12
	}
	return size
}

// WrapOverlay breaks text into lines that fit the overlay box, which spans 90%
// of the frame width. Glyphs are assumed to average 0.55 of the font size.
// Existing line breaks are kept and blank lines dropped.
func WrapOverlay(text string, width, height int) string {
	perLine := int(float64(width) * 0.9 / (float64(overlayFontSize(height)) * 0.55))
	if perLine < 10 {
		perLine = 10
	}
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if len([]rune(current))+1+len([]rune(word)) > perLine {
				lines = append(lines, current)
				current = word
				continue
			}
			current += " " + word
		}
		lines = append(lines, current)
	}
	return strings.Join(lines, "\n")
}

// overlayFilter draws the text file at path in a translucent box over the lower
// part of the frame.
func overlayFilter(path, font string, height int) string {
	size := overlayFontSize(height)
	margin := height / 20
	filter := fmt.Sprintf("drawtext=textfile='%s':fontcolor=white:fontsize=%d:line_spacing=8:box=1:boxcolor=black@0.7:boxborderw=%d:x=(w-text_w)/2:y=h-text_h-%d",
		escapeFilterValue(path), size, size/2, margin)
	if strings.TrimSpace(font) != "" {
		filter += fmt.Sprintf(":fontfile='%s'", escapeFilterValue(font))
	}
	return filter
}

// escapeFilterValue quotes a path for use inside a single-quoted filter
// option value.
func escapeFilterValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, "'", `'\''`)
}
