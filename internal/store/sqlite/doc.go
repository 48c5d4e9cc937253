// Package sqlite implements the entity store on SQLite via modernc.org/sqlite.
//
// The schema lives in schema.sql and is created on first open; a version
// mismatch fails fast with ErrSchemaMismatch. Timestamps are stored as
// RFC3339Nano UTC strings and nested documents (script, formats, brand kit,
// asset metadata) as JSON text. Foreign keys cascade from clients down to
// assets, while usage rows survive project deletion with a NULL reference.
package sqlite
