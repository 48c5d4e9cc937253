// Package services defines shared utilities consumed by the pipeline stages,
// the entity store, and the HTTP layer.
//
// Key responsibilities:
//   - Context helpers that stamp video IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so that failures carry a
//     stable kind (validation, not_found, conflict, ...) from the store or a
//     stage client all the way to the HTTP response.
//
// Subpackages hold the typed clients for each external collaborator (script
// generation, image generation, voice synthesis, rendering, delivery).
package services
