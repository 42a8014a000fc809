package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const consoleTimeLayout = "2006-01-02 15:04:05"

// consoleHandler renders human-oriented log lines: a header carrying the
// job/slide subject followed by one indented line per field. Info lines show a
// curated field selection and suppress values that repeat for the same
// subject; debug lines dump every attribute.
type consoleHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
	seen      map[string]map[string]string
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{
		mu:        &sync.Mutex{},
		writer:    w,
		level:     lvl,
		addSource: addSource,
		seen:      make(map[string]map[string]string),
	}
}

// subject is the part of a record that identifies what the line is about.
type subject struct {
	component string
	lane      string
	jobID     string
	stage     string
	slide     string
}

func (s subject) key() string {
	switch {
	case s.jobID != "" && s.slide != "":
		return s.jobID + "#" + s.slide
	case s.jobID != "":
		return s.jobID
	default:
		return s.component
	}
}

// String renders the subject as "Lane · Job abcd1234 slide 3 (stage)". Job
// identifiers are shortened to eight characters and slides are shown 1-based.
func (s subject) String() string {
	var parts []string
	if s.lane != "" {
		parts = append(parts, strings.ToUpper(s.lane[:1])+strings.ToLower(s.lane[1:]))
	}
	var job strings.Builder
	if s.jobID != "" {
		id := s.jobID
		if len(id) > 8 {
			id = id[:8]
		}
		job.WriteString("Job ")
		job.WriteString(id)
	}
	if s.slide != "" {
		if job.Len() > 0 {
			job.WriteByte(' ')
		}
		job.WriteString("slide ")
		if n, err := strconv.Atoi(s.slide); err == nil {
			job.WriteString(strconv.Itoa(n + 1))
		} else {
			job.WriteString(s.slide)
		}
	}
	if s.stage != "" {
		if job.Len() > 0 {
			job.WriteString(" (" + s.stage + ")")
		} else {
			job.WriteString(s.stage)
		}
	}
	if job.Len() > 0 {
		parts = append(parts, job.String())
	}
	return strings.Join(parts, " · ")
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	all := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&all, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&all, h.groups, attr)
		return true
	})
	all = dedupeKVsByKey(all)

	var subj subject
	fields := make([]kv, 0, len(all))
	for _, item := range all {
		value := attrString(item.value)
		switch item.key {
		case FieldComponent:
			subj.component = value
			continue
		case FieldJobID:
			subj.jobID = value
		case FieldStage:
			subj.stage = value
		case FieldLane:
			subj.lane = value
		case FieldSlideIndex:
			subj.slide = value
		}
		fields = append(fields, item)
	}

	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}

	var buf bytes.Buffer
	buf.Grow(256 + len(all)*32)
	h.writeHeader(&buf, ts, record.Level, subj, message, record.Source())

	h.mu.Lock()
	defer h.mu.Unlock()
	if record.Level < slog.LevelInfo {
		writeAllFields(&buf, all)
	} else {
		h.writeInfoFields(&buf, subj.key(), record.Level, fields)
	}
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) writeHeader(buf *bytes.Buffer, ts time.Time, level slog.Level, subj subject, message string, src *slog.Source) {
	buf.WriteString(ts.In(time.Local).Format(consoleTimeLayout))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(level))
	if subj.component != "" {
		buf.WriteString(" [" + subj.component + "]")
	}
	if s := subj.String(); s != "" {
		buf.WriteByte(' ')
		buf.WriteString(s)
	}
	buf.WriteString(" – ")
	buf.WriteString(message)
	if h.addSource && src != nil && src.File != "" {
		buf.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
	}
	buf.WriteByte('\n')
}

func (h *consoleHandler) writeInfoFields(buf *bytes.Buffer, key string, level slog.Level, attrs []kv) {
	fields, hidden := selectInfoFields(attrs, infoAttrLimit)
	fields = h.dropRepeated(key, level, fields)
	for _, field := range fields {
		buf.WriteString("    - " + field.label + ": " + field.value + "\n")
	}
	if hidden > 0 {
		buf.WriteString("    + " + strconv.Itoa(hidden) + " more field")
		if hidden != 1 {
			buf.WriteByte('s')
		}
		buf.WriteString(" hidden\n")
	}
}

func writeAllFields(buf *bytes.Buffer, attrs []kv) {
	for _, item := range attrs {
		buf.WriteString("    " + item.key + ": " + formatValue(item.value) + "\n")
	}
}

// dropRepeated removes info fields whose value matches the last one printed
// for the same subject. Warnings and errors always print in full.
func (h *consoleHandler) dropRepeated(key string, level slog.Level, fields []infoField) []infoField {
	if key == "" || len(fields) == 0 {
		return fields
	}
	last, ok := h.seen[key]
	if !ok {
		last = make(map[string]string)
		h.seen[key] = last
	}
	out := fields[:0:0]
	for _, field := range fields {
		if level <= slog.LevelInfo && last[field.label] == field.value {
			continue
		}
		last[field.label] = field.value
		out = append(out, field)
	}
	return out
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *consoleHandler) clone() *consoleHandler {
	clone := *h
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	clone.groups = append([]string(nil), h.groups...)
	return &clone
}

type kv struct {
	key   string
	value slog.Value
}

// dedupeKVsByKey keeps the first position of each key with its last value.
func dedupeKVsByKey(attrs []kv) []kv {
	if len(attrs) < 2 {
		return attrs
	}
	positions := make(map[string]int, len(attrs))
	out := make([]kv, 0, len(attrs))
	for _, attr := range attrs {
		if attr.key == "" {
			continue
		}
		if pos, ok := positions[attr.key]; ok {
			out[pos].value = attr.value
			continue
		}
		positions[attr.key] = len(out)
		out = append(out, attr)
	}
	return out
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append([]string(nil), prefix...), attr.Key)
		}
		flattenAttrs(dst, next, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(append(append([]string(nil), prefix...), attr.Key), ".")
		key = strings.TrimSuffix(key, ".")
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
