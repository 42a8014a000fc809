// Package stage defines the handler contract shared by workflow stages and the
// deck checkpoint helpers they use to load and persist a job's deck.
package stage
