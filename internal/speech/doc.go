// Package speech turns slide narration into audio clips.
//
// Like translation it walks an ordered provider chain: a cloud voice when the
// job asks for premium quality and a key is configured, the public translate
// TTS endpoint, and espeak-ng as the offline tail. A provider that errors,
// times out or writes an empty file is skipped. Clip length is measured with
// ffprobe and estimated from the word count when ffprobe cannot be run.
package speech
