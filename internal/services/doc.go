// package services implements the music service clients and the track
// resolver.
//
// A SourceService (Spotify) reads playlists and tracks; a DestinationService
// (Apple Music) searches its catalog, creates playlists and adds tracks. The
// Resolver sits on top of a DestinationService and turns a source track into
// the best matching destination catalog entry through a series of search
// passes with progressively looser queries.
package services
