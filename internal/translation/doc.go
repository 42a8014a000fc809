// Package translation renders slide narration in the job's target language.
//
// Providers form an ordered chain (see internal/chain): the first non-empty
// result wins and a failure moves on to the next provider at once. Identity
// mappings, decided on the base language, never reach a provider. A slide
// whose chain is exhausted keeps its source-language narration, marked
// degraded, so synthesis still has something to speak.
package translation
