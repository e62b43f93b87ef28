package models

import "time"

// Service identifies a music streaming service.
type Service string

const (
	ServiceUnspecified Service = "unspecified"
	ServiceSpotify     Service = "Spotify"
	ServiceAppleMusic  Service = "Apple Music"
)

// TrackStatus is the processing state of a track within an import.
//
// A track starts Unprocessed and ends in exactly one of Error, NotFound or
// Found. Error tracks may be retried through the import loop again but a
// track never reverts to Unprocessed.
type TrackStatus int

const (
	StatusUnprocessed TrackStatus = iota
	StatusError
	StatusNotFound
	StatusFound
)

func (s TrackStatus) String() string {
	switch s {
	case StatusUnprocessed:
		return "unprocessed"
	case StatusError:
		return "error"
	case StatusNotFound:
		return "not_found"
	case StatusFound:
		return "found"
	default:
		return "unknown"
	}
}

// PlaylistType distinguishes the two roles a playlist can play in an import.
type PlaylistType int

const (
	PlaylistSource PlaylistType = iota
	PlaylistDestination
)

// Playlist represents a playlist on any service.
type Playlist struct {
	ID      string
	Name    string
	UserID  string
	Type    PlaylistType
	Service Service
}

// Track identifies a song on a service, plus its per-import processing state.
type Track struct {
	UUID          string // persistence identity, empty until persisted
	ID            string // service-scoped identifier
	Name          string
	Artist        string
	Album         string
	AlbumCoverURL string
	Duration      int // seconds
	Service       Service

	Status           TrackStatus
	ErrorDescription string
	Matched          *SearchResult
	Searches         []Search
}

// Search is one resolution attempt against the destination catalog.
// Append-only; accumulated per track across passes.
type Search struct {
	UUID    string
	Query   string
	Date    time.Time
	Results []SearchResult
}

// SearchResult is a candidate destination-catalog entry. Immutable once created.
type SearchResult struct {
	UUID          string
	Service       Service
	TrackID       string
	TrackName     string
	Artist        string
	Album         string
	AlbumCoverURL string
	Duration      int // seconds
	IsStreamable  bool
}

// PlaylistSelection is a user's choice of tracks from a source playlist.
type PlaylistSelection struct {
	Playlist Playlist
	Tracks   []Track
}

// IsFullSelection reports whether every track of the playlist was selected.
func (s PlaylistSelection) IsFullSelection(playlistTrackCount int) bool {
	return playlistTrackCount == len(s.Tracks)
}

// PlaylistImport is one source playlist being imported. The destination
// playlist is set at most once, when first created on the destination
// service, and is immutable afterwards.
type PlaylistImport struct {
	UUID                string
	SourcePlaylist      Playlist
	DestinationPlaylist *Playlist
	Tracks              []Track
	Date                time.Time
}

// ImportCollection is a batch of playlist imports started together. It is
// the unit of "currently active import" referenced by persisted app state.
type ImportCollection struct {
	UUID    string
	Date    time.Time
	Imports []PlaylistImport
}
