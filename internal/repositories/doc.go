// package repositories provides the persistence layer for the import engine.
//
// ImportRepository owns the import tree (collections, playlist imports,
// tracks, searches, results); StateRepository is a small key/value store for
// process-wide pointers and cached secrets. All track mutations are wrapped
// in a single transaction so concurrent readers never observe torn state.
package repositories
