// Package store defines the studio's persisted entities and the Store contract
// implemented by the sqlite and postgres backends.
//
// Entities are only mutated through typed operations: creates validate their
// input, updates take patch structs, and video status is written exclusively by
// the video state machine through SaveVideo. Ownership lookups such as
// GetVideoForClient combine the tenant predicate with the primary key in a
// single query so callers never fetch-then-filter.
//
// Every lookup miss returns an error matching services.ErrNotFound; duplicate
// unique keys return services.ErrConflict.
package store
