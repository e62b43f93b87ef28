package importer

import (
	"time"

	"github.com/tunebridge/tunebridge/internal/models"
)

// PlaylistProgress tracks one playlist import through the loop.
//
// Tracks holds the visible work list: the full track list normally, only the
// not-yet-found tracks in refresh mode. TotalProcessed is the cursor into
// that list and the sole source of truth for the next work item.
type PlaylistProgress struct {
	ImportUUID  string
	Playlist    models.Playlist
	Destination *models.Playlist
	Tracks      []models.Track

	TotalProcessed int
	StartTime      time.Time
	EndTime        time.Time
}

// IsFinished reports whether every visible track has been processed.
func (p *PlaylistProgress) IsFinished() bool {
	return p.TotalProcessed == len(p.Tracks)
}

// UnsuccessfulTracks returns the tracks that did not end up found, for retry
// and inspection flows.
func (p *PlaylistProgress) UnsuccessfulTracks() []models.Track {
	var unsuccessful []models.Track
	for _, track := range p.Tracks {
		if track.Status != models.StatusFound {
			unsuccessful = append(unsuccessful, track)
		}
	}
	return unsuccessful
}

// UpdateTracks re-syncs the visible track list from freshly read store rows.
//
// Visible entries keep their slot so the cursor stays on the same work item;
// rows that disappeared from the store keep their last known state until the
// loop trips over them. Newly appended rows become visible at the end, except
// that refresh mode never re-admits already-found tracks.
func (p *PlaylistProgress) UpdateTracks(fresh []models.Track, refreshMode bool) {
	byUUID := make(map[string]models.Track, len(fresh))
	for _, track := range fresh {
		byUUID[track.UUID] = track
	}

	for i, track := range p.Tracks {
		if updated, ok := byUUID[track.UUID]; ok {
			p.Tracks[i] = updated
			delete(byUUID, track.UUID)
		}
	}

	for _, track := range fresh {
		if _, ok := byUUID[track.UUID]; !ok {
			continue
		}
		if refreshMode && track.Status == models.StatusFound {
			continue
		}
		p.Tracks = append(p.Tracks, track)
	}
}

// ImportProgress tracks a whole collection: the per-playlist progress list
// and the cursor of the playlist currently being imported.
type ImportProgress struct {
	CollectionUUID string
	Playlists      []*PlaylistProgress
	PlaylistsDone  int
	Interruptions  int
}

// newImportProgress builds the read-model for a persisted collection. In
// refresh mode only not-yet-found tracks are visible and every visible track
// is re-processed from the start.
func newImportProgress(collection *models.ImportCollection, refreshMode bool) *ImportProgress {
	progress := &ImportProgress{CollectionUUID: collection.UUID}

	for _, playlistImport := range collection.Imports {
		p := &PlaylistProgress{
			ImportUUID:  playlistImport.UUID,
			Playlist:    playlistImport.SourcePlaylist,
			Destination: playlistImport.DestinationPlaylist,
		}

		if refreshMode {
			for _, track := range playlistImport.Tracks {
				if track.Status != models.StatusFound {
					p.Tracks = append(p.Tracks, track)
				}
			}
		} else {
			p.Tracks = playlistImport.Tracks
			for _, track := range p.Tracks {
				if track.Status != models.StatusUnprocessed {
					p.TotalProcessed++
				}
			}
		}

		progress.Playlists = append(progress.Playlists, p)
	}

	for _, p := range progress.Playlists {
		if p.IsFinished() {
			progress.PlaylistsDone++
		} else {
			break
		}
	}

	return progress
}

// Current returns the playlist being imported. After the last playlist
// finishes it keeps returning that playlist.
func (i *ImportProgress) Current() *PlaylistProgress {
	if i.PlaylistsDone >= len(i.Playlists) {
		return i.Playlists[len(i.Playlists)-1]
	}
	return i.Playlists[i.PlaylistsDone]
}

// MoveToNext closes out the current playlist and advances the cursor.
func (i *ImportProgress) MoveToNext() {
	i.Current().EndTime = time.Now()
	i.PlaylistsDone++
}

// IsFinished reports whether every playlist has been processed.
func (i *ImportProgress) IsFinished() bool {
	return i.PlaylistsDone >= len(i.Playlists)
}

// ProcessedTracks counts processed visible tracks across all playlists.
func (i *ImportProgress) ProcessedTracks() int {
	total := 0
	for _, p := range i.Playlists {
		total += p.TotalProcessed
	}
	return total
}

// TotalTracks counts visible tracks across all playlists.
func (i *ImportProgress) TotalTracks() int {
	total := 0
	for _, p := range i.Playlists {
		total += len(p.Tracks)
	}
	return total
}
