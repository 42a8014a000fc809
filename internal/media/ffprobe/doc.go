// Package ffprobe runs ffprobe and decodes its JSON report.
//
// Speech synthesis uses it to measure clip length and assembly uses it to
// verify the encoded lecture against the planned timeline.
package ffprobe
