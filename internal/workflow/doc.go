// Package workflow advances conversion jobs through the pipeline stages.
//
// The Manager polls the job store, reclaims stale work via heartbeats, and
// feeds jobs into the registered stage handlers (extraction, narration,
// translation, synthesis, timing, assembly) while recording progress and
// failure details. Each stage resumes from the deck checkpoint the previous
// one persisted, so a restarted daemon picks a job up at the start of the
// stage it was in.
//
// The workflow runs two independent lanes. The content lane extracts,
// narrates and translates; the media lane synthesizes, times and assembles.
// While one job renders video another can already be talking to the language
// providers.
//
// A job cancelled while a stage runs has its stage context cancelled from the
// heartbeat loop, and the manager never overwrites the cancelled status with
// the stage result.
package workflow
