// package models defines the data model for the playlist import engine.
//
// All types are plain value types. Persistence identity lives in UUID
// fields assigned by the repositories package; service-scoped identifiers
// (Spotify track IDs, Apple Music catalog IDs) live in ID fields. The
// repository returns immutable snapshots; mutation goes through explicit
// repository calls rather than shared live objects.
package models
