// Package services defines shared utilities consumed by the workflow stage
// handlers and the provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, slide indices, providers
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper and Details, which let the
//     workflow tell degradable provider failures apart from fatal ones.
//   - StageFailure, the job-level error that names the failing stage and slides.
package services
