package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"slidecast/internal/api"
	"slidecast/internal/services"
	"slidecast/internal/transcript"
)

func buildJobListRows(jobs []api.Job, colorize bool) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			shortJobID(job.ID),
			displayTitle(job),
			colorStatus(job.Status, colorize),
			job.SourceLanguage + "→" + job.TargetLanguage,
			strconv.Itoa(job.SlideCount),
			formatPercent(job.Progress.Percent),
			formatCreated(job.CreatedAt),
		})
	}
	return rows
}

func buildSlideRows(slides []api.SlideProgress) [][]string {
	rows := make([][]string, 0, len(slides))
	for _, slide := range slides {
		duration := ""
		if slide.DurationSeconds > 0 {
			duration = fmt.Sprintf("%.1fs", slide.DurationSeconds)
		}
		rows = append(rows, []string{
			strconv.Itoa(slide.Index + 1),
			yesNo(slide.Narrated),
			yesNo(slide.Translated),
			yesNo(slide.Synthesized),
			duration,
			strings.Join(slide.Warnings, "; "),
		})
	}
	return rows
}

func buildStatsRows(stats map[string]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range statusDisplayOrder {
		count := stats[status]
		if count == 0 {
			continue
		}
		rows = append(rows, []string{status, strconv.Itoa(count)})
	}
	return rows
}

var statusDisplayOrder = []string{
	"pending", "extracting", "extracted", "narrating", "narrated",
	"translating", "translated", "synthesizing", "synthesized",
	"timing", "timed", "assembling", "completed", "failed", "cancelled",
}

type scriptEntry struct {
	Slide    int      `json:"slide"`
	Start    string   `json:"start"`
	Language string   `json:"language"`
	Text     string   `json:"text"`
	Original string   `json:"original,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func scriptEntries(entries []transcript.Entry) []scriptEntry {
	out := make([]scriptEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, scriptEntry{
			Slide:    e.Index + 1,
			Start:    transcript.Timestamp(e.Start),
			Language: e.Language,
			Text:     e.Text,
			Original: e.Original,
			Warnings: e.Warnings,
		})
	}
	return out
}

func displayTitle(job api.Job) string {
	if title := strings.TrimSpace(job.Title); title != "" {
		return title
	}
	return job.SourcePath
}

func shortJobID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%.0f%%", p)
}

func formatCreated(value string) string {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatFailure(job api.Job) string {
	if job.FailedStage == "" {
		return job.ErrorMessage
	}
	msg := fmt.Sprintf("%s failed", job.FailedStage)
	if len(job.FailedSlides) > 0 {
		msg += " on slides " + services.FormatSlides(oneBased(job.FailedSlides))
	}
	if job.ErrorMessage != "" {
		msg += ": " + job.ErrorMessage
	}
	return msg
}

func oneBased(indexes []int) []int {
	out := make([]int, len(indexes))
	for i, v := range indexes {
		out[i] = v + 1
	}
	return out
}
