// Package config loads, normalizes, and validates slidecast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for provider
// credentials such as GEMINI_API_KEY and OPENROUTER_API_KEY. The Config type
// centralizes every knob the daemon and CLI need: output and work directories,
// the narration provider, the translation and speech provider chains, timing
// policy, and assembly encoder settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical chain names, and clear validation errors.
package config
