package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tunebridge/tunebridge/internal/models"
	"github.com/tunebridge/tunebridge/internal/shared"
)

// ImportRepository handles create/read/update/delete for the import tree.
//
// Returned values are snapshots; they do not change when the database does.
// Callers re-read (e.g. GetTrack, TracksForImport) after mutations.
type ImportRepository struct {
	db *sql.DB
}

// NewImportRepository creates a new ImportRepository with the given database connection
func NewImportRepository(db *sql.DB) *ImportRepository {
	return &ImportRepository{db: db}
}

// CreateCollection persists a new import collection with one playlist import
// per selection, atomically. Track order follows selection order.
func (r *ImportRepository) CreateCollection(selections []models.PlaylistSelection) (*models.ImportCollection, error) {
	if len(selections) == 0 {
		return nil, fmt.Errorf("%w: no playlists selected", shared.ErrInvalidInput)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	collection := models.ImportCollection{
		UUID: shared.GenerateID(),
		Date: time.Now(),
	}

	if _, err := tx.Exec("INSERT INTO import_collections (uuid, created_at) VALUES (?, ?)", collection.UUID, collection.Date); err != nil {
		return nil, fmt.Errorf("failed to insert collection: %w", err)
	}

	for i, selection := range selections {
		playlistImport, err := insertImport(tx, collection.UUID, i, selection)
		if err != nil {
			return nil, err
		}
		collection.Imports = append(collection.Imports, *playlistImport)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit collection: %w", err)
	}

	return &collection, nil
}

// NewCollectionFromImports re-parents existing playlist imports into a fresh
// collection, used by the playlist refresher. Every import still belongs to
// exactly one collection afterwards.
func (r *ImportRepository) NewCollectionFromImports(importIDs []string) (*models.ImportCollection, error) {
	if len(importIDs) == 0 {
		return nil, fmt.Errorf("%w: no imports given", shared.ErrInvalidInput)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	uuid := shared.GenerateID()
	now := time.Now()

	if _, err := tx.Exec("INSERT INTO import_collections (uuid, created_at) VALUES (?, ?)", uuid, now); err != nil {
		return nil, fmt.Errorf("failed to insert collection: %w", err)
	}

	for i, importID := range importIDs {
		result, err := tx.Exec("UPDATE playlist_imports SET collection_uuid = ?, position = ? WHERE uuid = ?", uuid, i, importID)
		if err != nil {
			return nil, fmt.Errorf("failed to move import %s: %w", importID, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return nil, fmt.Errorf("%w: import %s", shared.ErrPlaylistNotFound, importID)
		}
	}

	// Collections left without imports are dead weight; prune them.
	if _, err := tx.Exec("DELETE FROM import_collections WHERE uuid != ? AND NOT EXISTS (SELECT 1 FROM playlist_imports WHERE collection_uuid = import_collections.uuid)", uuid); err != nil {
		return nil, fmt.Errorf("failed to prune empty collections: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit collection: %w", err)
	}

	return r.GetCollection(uuid)
}

// AppendTracks adds tracks to an existing playlist import, after its current
// tracks. Used by the playlist refresher for newly selected tracks.
func (r *ImportRepository) AppendTracks(importID string, tracks []models.Track) ([]models.Track, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow("SELECT COALESCE(MAX(position), -1) + 1 FROM tracks WHERE import_uuid = ?", importID).Scan(&next); err != nil {
		return nil, fmt.Errorf("failed to get track position: %w", err)
	}

	appended := make([]models.Track, 0, len(tracks))
	for i, track := range tracks {
		persisted, err := insertTrack(tx, importID, next+i, track)
		if err != nil {
			return nil, err
		}
		appended = append(appended, *persisted)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tracks: %w", err)
	}

	return appended, nil
}

// GetCollection retrieves a collection with its imports and their tracks.
// Search logs are not loaded; use SearchesForTrack for the audit trail.
func (r *ImportRepository) GetCollection(uuid string) (*models.ImportCollection, error) {
	var collection models.ImportCollection
	err := r.db.QueryRow("SELECT uuid, created_at FROM import_collections WHERE uuid = ?", uuid).
		Scan(&collection.UUID, &collection.Date)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: collection %s", shared.ErrPlaylistNotFound, uuid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan collection: %w", err)
	}

	rows, err := r.db.Query("SELECT uuid FROM playlist_imports WHERE collection_uuid = ? ORDER BY position ASC", uuid)
	if err != nil {
		return nil, fmt.Errorf("failed to query imports: %w", err)
	}
	defer rows.Close()

	var importIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan import id: %w", err)
		}
		importIDs = append(importIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for _, id := range importIDs {
		playlistImport, err := r.GetImport(id)
		if err != nil {
			return nil, err
		}
		collection.Imports = append(collection.Imports, *playlistImport)
	}

	return &collection, nil
}

// GetImport retrieves a playlist import with its tracks.
func (r *ImportRepository) GetImport(uuid string) (*models.PlaylistImport, error) {
	playlistImport, err := scanImport(r.db.QueryRow(`
		SELECT uuid, source_id, source_name, source_service, source_user_id, destination_id, destination_name, created_at
		FROM playlist_imports
		WHERE uuid = ?
	`, uuid))
	if err != nil {
		return nil, err
	}

	tracks, err := r.TracksForImport(uuid)
	if err != nil {
		return nil, err
	}
	playlistImport.Tracks = tracks

	return playlistImport, nil
}

// TracksForImport retrieves all tracks of a playlist import in persisted order.
func (r *ImportRepository) TracksForImport(importID string) ([]models.Track, error) {
	rows, err := r.db.Query(trackSelect+" WHERE import_uuid = ? ORDER BY position ASC", importID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// GetTrack retrieves a single track by its persistence UUID.
func (r *ImportRepository) GetTrack(uuid string) (*models.Track, error) {
	rows, err := r.db.Query(trackSelect+" WHERE uuid = ?", uuid)
	if err != nil {
		return nil, fmt.Errorf("failed to query track: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, uuid)
	}

	return scanTrack(rows)
}

// SearchesForTrack retrieves the full search audit trail for a track.
func (r *ImportRepository) SearchesForTrack(trackUUID string) ([]models.Search, error) {
	rows, err := r.db.Query("SELECT uuid, query, searched_at FROM searches WHERE track_uuid = ? ORDER BY position ASC", trackUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query searches: %w", err)
	}
	defer rows.Close()

	var searches []models.Search
	for rows.Next() {
		var search models.Search
		if err := rows.Scan(&search.UUID, &search.Query, &search.Date); err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		searches = append(searches, search)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for i := range searches {
		results, err := r.resultsForSearch(searches[i].UUID)
		if err != nil {
			return nil, err
		}
		searches[i].Results = results
	}

	return searches, nil
}

func (r *ImportRepository) resultsForSearch(searchUUID string) ([]models.SearchResult, error) {
	rows, err := r.db.Query(`
		SELECT uuid, service, track_id, track_name, artist, album, album_cover_url, duration, is_streamable
		FROM search_results
		WHERE search_uuid = ?
		ORDER BY position ASC
	`, searchUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query search results: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var result models.SearchResult
		var coverURL sql.NullString
		var service string
		if err := rows.Scan(&result.UUID, &service, &result.TrackID, &result.TrackName, &result.Artist, &result.Album, &coverURL, &result.Duration, &result.IsStreamable); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		result.Service = models.Service(service)
		result.AlbumCoverURL = coverURL.String
		results = append(results, result)
	}

	return results, rows.Err()
}

// RecordOutcome writes a track's resolution outcome in a single transaction:
// new status, error description, matched result and appended searches. A
// concurrent reader sees either the old track state or the complete new one.
func (r *ImportRepository) RecordOutcome(trackUUID string, status models.TrackStatus, errDesc string, matched *models.SearchResult, searches []models.Search) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var result sql.Result
	if matched != nil {
		result, err = tx.Exec(`
			UPDATE tracks
			SET status = ?, error_description = ?,
				matched_service = ?, matched_track_id = ?, matched_track_name = ?,
				matched_artist = ?, matched_album = ?, matched_cover_url = ?,
				matched_duration = ?, matched_streamable = ?
			WHERE uuid = ?
		`, status, nullable(errDesc),
			string(matched.Service), matched.TrackID, matched.TrackName,
			matched.Artist, matched.Album, nullable(matched.AlbumCoverURL),
			matched.Duration, matched.IsStreamable, trackUUID)
	} else {
		result, err = tx.Exec("UPDATE tracks SET status = ?, error_description = ? WHERE uuid = ?", status, nullable(errDesc), trackUUID)
	}
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, trackUUID)
	}

	if len(searches) > 0 {
		var next int
		if err := tx.QueryRow("SELECT COALESCE(MAX(position), -1) + 1 FROM searches WHERE track_uuid = ?", trackUUID).Scan(&next); err != nil {
			return fmt.Errorf("failed to get search position: %w", err)
		}

		for i, search := range searches {
			if err := insertSearch(tx, trackUUID, next+i, search); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit track outcome: %v", shared.ErrStoreInconsistent, err)
	}

	return nil
}

// ClearSearches drops a track's search log. Used when an in-flight result is
// discarded because the import paused for lost connectivity.
func (r *ImportRepository) ClearSearches(trackUUID string) error {
	if _, err := r.db.Exec("DELETE FROM searches WHERE track_uuid = ?", trackUUID); err != nil {
		return fmt.Errorf("failed to clear searches: %w", err)
	}
	return nil
}

// SetDestinationPlaylist records the created destination playlist for an
// import. The destination is set at most once; a second call is rejected.
func (r *ImportRepository) SetDestinationPlaylist(importUUID string, playlist models.Playlist) error {
	result, err := r.db.Exec(`
		UPDATE playlist_imports
		SET destination_id = ?, destination_name = ?
		WHERE uuid = ? AND destination_id IS NULL
	`, playlist.ID, playlist.Name, importUUID)
	if err != nil {
		return fmt.Errorf("failed to set destination playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: destination already set or import missing: %s", shared.ErrInvalidInput, importUUID)
	}

	return nil
}

// ReplaceDestinationPlaylist overwrites the destination playlist reference.
// Only used when the destination playlist was deleted out from under an
// import and had to be recreated.
func (r *ImportRepository) ReplaceDestinationPlaylist(importUUID string, playlist models.Playlist) error {
	result, err := r.db.Exec("UPDATE playlist_imports SET destination_id = ?, destination_name = ? WHERE uuid = ?",
		playlist.ID, playlist.Name, importUUID)
	if err != nil {
		return fmt.Errorf("failed to replace destination playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: import %s", shared.ErrPlaylistNotFound, importUUID)
	}

	return nil
}

// ListImports retrieves all persisted playlist imports ordered by creation
// date descending, without their track lists.
func (r *ImportRepository) ListImports() ([]models.PlaylistImport, error) {
	rows, err := r.db.Query(`
		SELECT uuid, source_id, source_name, source_service, source_user_id, destination_id, destination_name, created_at
		FROM playlist_imports
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query imports: %w", err)
	}
	defer rows.Close()

	var imports []models.PlaylistImport
	for rows.Next() {
		playlistImport, err := scanImportRows(rows)
		if err != nil {
			return nil, err
		}
		imports = append(imports, *playlistImport)
	}

	return imports, rows.Err()
}

// DeleteImport removes a playlist import and its owned tracks, searches and
// results. The owning collection is removed too when this was its last import.
func (r *ImportRepository) DeleteImport(uuid string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var collectionID string
	err = tx.QueryRow("SELECT collection_uuid FROM playlist_imports WHERE uuid = ?", uuid).Scan(&collectionID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: import %s", shared.ErrPlaylistNotFound, uuid)
	}
	if err != nil {
		return fmt.Errorf("failed to look up import: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM playlist_imports WHERE uuid = ?", uuid); err != nil {
		return fmt.Errorf("failed to delete import: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM import_collections WHERE uuid = ? AND NOT EXISTS (SELECT 1 FROM playlist_imports WHERE collection_uuid = ?)", collectionID, collectionID); err != nil {
		return fmt.Errorf("failed to prune collection: %w", err)
	}

	return tx.Commit()
}

const trackSelect = `
	SELECT uuid, service_id, name, artist, album, album_cover_url, duration, service, status, error_description,
		matched_service, matched_track_id, matched_track_name, matched_artist, matched_album, matched_cover_url,
		matched_duration, matched_streamable
	FROM tracks
`

func scanTrack(rows *sql.Rows) (*models.Track, error) {
	var (
		track            models.Track
		coverURL         sql.NullString
		service          string
		errDesc          sql.NullString
		matchedService   sql.NullString
		matchedTrackID   sql.NullString
		matchedTrackName sql.NullString
		matchedArtist    sql.NullString
		matchedAlbum     sql.NullString
		matchedCoverURL  sql.NullString
		matchedDuration  sql.NullInt64
		matchedStream    sql.NullBool
	)

	err := rows.Scan(&track.UUID, &track.ID, &track.Name, &track.Artist, &track.Album, &coverURL, &track.Duration,
		&service, &track.Status, &errDesc,
		&matchedService, &matchedTrackID, &matchedTrackName, &matchedArtist, &matchedAlbum, &matchedCoverURL,
		&matchedDuration, &matchedStream)
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	track.Service = models.Service(service)
	track.AlbumCoverURL = coverURL.String
	track.ErrorDescription = errDesc.String

	if matchedTrackID.Valid {
		track.Matched = &models.SearchResult{
			Service:       models.Service(matchedService.String),
			TrackID:       matchedTrackID.String,
			TrackName:     matchedTrackName.String,
			Artist:        matchedArtist.String,
			Album:         matchedAlbum.String,
			AlbumCoverURL: matchedCoverURL.String,
			Duration:      int(matchedDuration.Int64),
			IsStreamable:  matchedStream.Bool,
		}
	}

	return &track, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImportFrom(scanner rowScanner) (*models.PlaylistImport, error) {
	var (
		playlistImport models.PlaylistImport
		sourceUserID   sql.NullString
		destID         sql.NullString
		destName       sql.NullString
		sourceService  string
	)

	err := scanner.Scan(&playlistImport.UUID, &playlistImport.SourcePlaylist.ID, &playlistImport.SourcePlaylist.Name,
		&sourceService, &sourceUserID, &destID, &destName, &playlistImport.Date)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: import", shared.ErrPlaylistNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import: %w", err)
	}

	playlistImport.SourcePlaylist.Service = models.Service(sourceService)
	playlistImport.SourcePlaylist.UserID = sourceUserID.String
	playlistImport.SourcePlaylist.Type = models.PlaylistSource

	if destID.Valid {
		playlistImport.DestinationPlaylist = &models.Playlist{
			ID:   destID.String,
			Name: destName.String,
			Type: models.PlaylistDestination,
		}
	}

	return &playlistImport, nil
}

func scanImport(row *sql.Row) (*models.PlaylistImport, error) {
	return scanImportFrom(row)
}

func scanImportRows(rows *sql.Rows) (*models.PlaylistImport, error) {
	return scanImportFrom(rows)
}

func insertImport(tx *sql.Tx, collectionUUID string, position int, selection models.PlaylistSelection) (*models.PlaylistImport, error) {
	playlistImport := models.PlaylistImport{
		UUID:           shared.GenerateID(),
		SourcePlaylist: selection.Playlist,
		Date:           time.Now(),
	}
	playlistImport.SourcePlaylist.Type = models.PlaylistSource

	_, err := tx.Exec(`
		INSERT INTO playlist_imports (uuid, collection_uuid, position, source_id, source_name, source_service, source_user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, playlistImport.UUID, collectionUUID, position,
		selection.Playlist.ID, selection.Playlist.Name, string(selection.Playlist.Service),
		nullable(selection.Playlist.UserID), playlistImport.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to insert import: %w", err)
	}

	for i, track := range selection.Tracks {
		persisted, err := insertTrack(tx, playlistImport.UUID, i, track)
		if err != nil {
			return nil, err
		}
		playlistImport.Tracks = append(playlistImport.Tracks, *persisted)
	}

	return &playlistImport, nil
}

func insertTrack(tx *sql.Tx, importUUID string, position int, track models.Track) (*models.Track, error) {
	track.UUID = shared.GenerateID()

	_, err := tx.Exec(`
		INSERT INTO tracks (uuid, import_uuid, position, service_id, name, artist, album, album_cover_url, duration, service, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, track.UUID, importUUID, position, track.ID, track.Name, track.Artist, track.Album,
		nullable(track.AlbumCoverURL), track.Duration, string(track.Service), track.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to insert track: %w", err)
	}

	return &track, nil
}

func insertSearch(tx *sql.Tx, trackUUID string, position int, search models.Search) error {
	searchUUID := shared.GenerateID()

	if _, err := tx.Exec("INSERT INTO searches (uuid, track_uuid, position, query, searched_at) VALUES (?, ?, ?, ?, ?)",
		searchUUID, trackUUID, position, search.Query, search.Date); err != nil {
		return fmt.Errorf("failed to insert search: %w", err)
	}

	for i, result := range search.Results {
		_, err := tx.Exec(`
			INSERT INTO search_results (uuid, search_uuid, position, service, track_id, track_name, artist, album, album_cover_url, duration, is_streamable)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, shared.GenerateID(), searchUUID, i, string(result.Service), result.TrackID, result.TrackName,
			result.Artist, result.Album, nullable(result.AlbumCoverURL), result.Duration, result.IsStreamable)
		if err != nil {
			return fmt.Errorf("failed to insert search result: %w", err)
		}
	}

	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
