// package importer drives an import collection from start to finish.
//
// A single Manager owns one ImportCollection and processes its playlists and
// tracks strictly in persisted order: look up the community cache, resolve
// against the destination catalog, add to the destination playlist, persist
// the outcome, advance the cursor. All per-track work is sequential; the
// persisted cursor is the sole source of truth for the next work item, which
// is what makes pause, crash and resume cheap.
package importer
