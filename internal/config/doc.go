// Package config loads, normalizes, and validates studio configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REPLICATE_API_TOKEN and ELEVENLABS_API_KEY. The Config type centralizes every
// knob the daemon, pipeline, and CLI need so that stage clients are built from
// explicit settings rather than process-wide singletons.
package config
