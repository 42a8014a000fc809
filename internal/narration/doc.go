// Package narration turns slide text into spoken lecture narration.
//
// Slides are narrated strictly in index order because each prompt carries the
// tail of the previous narrations as context. The first slide gets an opener
// prompt, the last a closer with a fixed sign-off, and everything in between a
// body prompt that asks for a transition.
//
// Each slide is retried with exponential backoff; a Retry-After hint or a 429
// overrides the backoff. When attempts run out the slide receives a minimal
// narration derived from its raw text and a warning. A rejected request (bad
// key, permission denied, invalid argument) opens a breaker and the remaining
// slides skip the provider entirely.
package narration
