// Package assembly lays slides and their narration onto a frame-exact
// timeline and renders the lecture video.
//
// BuildTimeline quantises cumulative slide boundaries to the frame grid, so
// rounding never accumulates across slides. An Encoder renders one segment per
// slide and concatenates them; FFmpegEncoder drives the ffmpeg binary. The
// Assembler then writes the manifests and optional script and verifies the
// encoded length with ffprobe.
package assembly
