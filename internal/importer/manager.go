package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tunebridge/tunebridge/internal/matchcache"
	"github.com/tunebridge/tunebridge/internal/models"
	"github.com/tunebridge/tunebridge/internal/repositories"
	"github.com/tunebridge/tunebridge/internal/services"
	"github.com/tunebridge/tunebridge/internal/shared"
)

// missingRowRetryDelay is how long the loop waits before re-reading a track
// row that was unexpectedly absent.
const missingRowRetryDelay = time.Second

// TrackProgressFunc is called after each track outcome. track is nil for
// loop-halting errors (no connection, token, storefront, playlist creation);
// last reports whether this was the final track of the current playlist.
type TrackProgressFunc func(track *models.Track, last bool, err error)

// PlaylistProgressFunc is called when the loop moves on from a finished
// playlist. For intermediate playlists it receives the playlist being
// started next with last=false; when the whole collection finishes it
// receives the final playlist with last=true.
type PlaylistProgressFunc func(playlist models.Playlist, last bool)

// Deps bundles the collaborators a Manager needs.
type Deps struct {
	Imports      *repositories.ImportRepository
	State        *repositories.StateRepository
	Destination  services.DestinationService
	Resolver     TrackResolver
	Cache        matchcache.Cache
	Reachability Reachability
	Logger       *log.Logger
}

// TrackResolver finds the destination match for a source track.
// *services.Resolver implements it.
type TrackResolver interface {
	Resolve(ctx context.Context, track models.Track) (*services.Resolution, error)
}

// Manager drives one import collection. All processing happens inside Run;
// Pause and State may be called from other goroutines.
type Manager struct {
	deps        Deps
	progress    *ImportProgress
	refreshMode bool

	onTrack    TrackProgressFunc
	onPlaylist PlaylistProgressFunc

	mu       sync.Mutex
	state    State
	pauseErr error

	started         bool
	inRowRetry      bool
	retryDelay      time.Duration
	playlistRetried bool
}

// NewManager persists a fresh collection from the selections and prepares it
// for import. The active-import pointer is set so an interrupted run can be
// resumed later.
func NewManager(deps Deps, selections []models.PlaylistSelection) (*Manager, error) {
	collection, err := deps.Imports.CreateCollection(selections)
	if err != nil {
		return nil, err
	}

	if err := deps.State.Set(repositories.StateKeyActiveImport, collection.UUID); err != nil {
		return nil, err
	}

	return newManager(deps, collection, false), nil
}

// Restore rebuilds a Manager for a previously interrupted collection. The
// rebuilt cursor matches the persisted track statuses exactly, so the loop
// picks up at the first unprocessed track. Restoring counts as an
// interruption.
func Restore(deps Deps, collectionID string) (*Manager, error) {
	collection, err := deps.Imports.GetCollection(collectionID)
	if err != nil {
		return nil, err
	}

	interruptions, err := deps.State.IncrementCounter(repositories.StateKeyInterruptions)
	if err != nil {
		return nil, err
	}

	manager := newManager(deps, collection, false)
	manager.progress.Interruptions = interruptions
	manager.started = true
	return manager, nil
}

// NewRefresh prepares a refresh of existing imports: newly selected tracks
// are appended, the imports are gathered into a fresh collection, and every
// track that is not yet found is re-processed.
func NewRefresh(deps Deps, importIDs []string, addedTracks map[string][]models.Track) (*Manager, error) {
	for _, importID := range importIDs {
		if tracks := addedTracks[importID]; len(tracks) > 0 {
			if _, err := deps.Imports.AppendTracks(importID, tracks); err != nil {
				return nil, err
			}
		}
	}

	collection, err := deps.Imports.NewCollectionFromImports(importIDs)
	if err != nil {
		return nil, err
	}

	if err := deps.State.Set(repositories.StateKeyActiveImport, collection.UUID); err != nil {
		return nil, err
	}

	return newManager(deps, collection, true), nil
}

func newManager(deps Deps, collection *models.ImportCollection, refreshMode bool) *Manager {
	return &Manager{
		deps:        deps,
		progress:    newImportProgress(collection, refreshMode),
		refreshMode: refreshMode,
		state:       StateIdle,
		retryDelay:  missingRowRetryDelay,
	}
}

// Progress returns the live read-model. Callers on other goroutines must
// treat it as an eventually consistent snapshot.
func (m *Manager) Progress() *ImportProgress {
	return m.progress
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PauseError returns the error that halted the loop, if any.
func (m *Manager) PauseError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pauseErr
}

// Pause requests a cooperative stop. It takes effect at the next loop
// iteration boundary; in-flight work completes and its result is persisted.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateRunning || m.state == StatePausedNoConnection {
		m.state = StatePausedManual
	}
}

func (m *Manager) setState(state State, err error) {
	m.mu.Lock()
	m.state = state
	m.pauseErr = err
	m.mu.Unlock()
}

// Run drives the loop until the collection finishes, the context is
// cancelled, the user pauses, or a halting error occurs. Calling Run again
// after a pause resumes at the persisted cursor; a resumed run counts as an
// interruption.
func (m *Manager) Run(ctx context.Context, onTrack TrackProgressFunc, onPlaylist PlaylistProgressFunc) error {
	m.onTrack = onTrack
	m.onPlaylist = onPlaylist

	if m.State() == StateFinished {
		return nil
	}

	if !m.started {
		m.started = true
		if current := m.progress.Current(); current.StartTime.IsZero() {
			current.StartTime = time.Now()
		}
	} else {
		interruptions, err := m.deps.State.IncrementCounter(repositories.StateKeyInterruptions)
		if err != nil {
			m.deps.Logger.Warn("failed to count interruption", "error", err)
		} else {
			m.progress.Interruptions = interruptions
		}
	}

	m.setState(StateRunning, nil)

	for {
		if err := ctx.Err(); err != nil {
			m.setState(StatePausedManual, nil)
			return err
		}

		switch m.State() {
		case StatePausedManual:
			return nil
		case StateFinished:
			return nil
		case StatePausedOnError:
			return m.PauseError()
		}

		if !m.deps.Reachability.Reachable() {
			if err := m.waitForNetwork(ctx); err != nil {
				return err
			}
			continue
		}

		done, err := m.step(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// waitForNetwork pauses the loop until connectivity returns. Only a
// network-induced pause auto-resumes; a manual pause layered on top wins.
func (m *Manager) waitForNetwork(ctx context.Context) error {
	if m.State() == StateRunning {
		m.setState(StatePausedNoConnection, nil)
		m.emitTrack(nil, false, shared.ErrNoConnection)
		m.deps.Logger.Info("import paused, waiting for network")
	}

	for {
		select {
		case <-ctx.Done():
			m.setState(StatePausedManual, nil)
			return ctx.Err()
		case reachable := <-m.deps.Reachability.Changes():
			if !reachable {
				continue
			}
			if m.State() != StatePausedNoConnection {
				// Manually paused in the meantime.
				return nil
			}
			m.deps.Logger.Info("network back, resuming import")
			m.setState(StateRunning, nil)
			return nil
		}
	}
}

// step performs one loop iteration: advance past finished playlists, create
// the destination playlist if needed, or process the track at the cursor.
func (m *Manager) step(ctx context.Context) (bool, error) {
	current := m.progress.Current()

	if current.IsFinished() {
		m.syncTracks(current)
		if !current.IsFinished() {
			// Rows appended to the store mid-run became visible.
			return false, nil
		}
		m.progress.MoveToNext()

		if m.progress.IsFinished() {
			m.finish()
			m.emitPlaylist(current.Playlist, true)
			return true, nil
		}

		next := m.progress.Current()
		if next.StartTime.IsZero() {
			next.StartTime = time.Now()
		}
		m.emitPlaylist(next.Playlist, false)
		return false, nil
	}

	if current.Destination == nil {
		return false, m.createDestination(ctx, current)
	}

	track := current.Tracks[current.TotalProcessed]

	if track.Status != models.StatusUnprocessed && !m.refreshMode {
		current.TotalProcessed++
		return false, nil
	}

	return false, m.importTrack(ctx, current, track)
}

// createDestination lazily creates the destination playlist and persists the
// reference immediately so a crash cannot orphan or duplicate it.
func (m *Manager) createDestination(ctx context.Context, current *PlaylistProgress) error {
	playlist, err := m.deps.Destination.CreatePlaylist(ctx, current.Playlist.Name)
	if err != nil {
		if !m.deps.Reachability.Reachable() {
			return nil
		}
		err = fmt.Errorf("%w: %v", shared.ErrPlaylistCreation, err)
		m.setState(StatePausedOnError, err)
		m.emitTrack(nil, false, err)
		return err
	}

	if err := m.deps.Imports.SetDestinationPlaylist(current.ImportUUID, *playlist); err != nil {
		m.setState(StatePausedOnError, err)
		m.emitTrack(nil, false, err)
		return err
	}

	current.Destination = playlist
	m.deps.Logger.Info("created destination playlist", "name", playlist.Name, "id", playlist.ID)
	return nil
}

// importTrack processes a single track: cache lookup, resolution, add to
// destination, persist, advance.
func (m *Manager) importTrack(ctx context.Context, current *PlaylistProgress, track models.Track) error {
	fresh, err := m.deps.Imports.GetTrack(track.UUID)
	if errors.Is(err, shared.ErrTrackNotFound) {
		return m.handleMissingRow(current, track, err)
	}
	if err != nil {
		m.setState(StatePausedOnError, err)
		m.emitTrack(nil, false, err)
		return err
	}
	m.inRowRetry = false

	key := matchcache.Key{
		SourceService:      fresh.Service,
		DestinationService: m.deps.Destination.Name(),
		SourceTrackID:      fresh.ID,
		RegionIdentifier:   m.deps.Destination.RegionIdentifier(),
	}

	var result *models.SearchResult
	var searches []models.Search
	fromCache := false

	if cached, ok := m.deps.Cache.Lookup(ctx, key); ok {
		result = cached
		fromCache = true
		m.deps.Logger.Debug("track matched from community cache", "track", fresh.Name)
	} else {
		resolution, err := m.deps.Resolver.Resolve(ctx, *fresh)

		if !m.deps.Reachability.Reachable() {
			// Network went away mid-resolve; discard and let the loop pause.
			return nil
		}

		if errors.Is(err, shared.ErrAuthToken) || errors.Is(err, shared.ErrStorefront) {
			m.setState(StatePausedOnError, err)
			m.emitTrack(nil, false, err)
			return err
		}

		searches = resolution.Searches

		if err != nil {
			return m.recordOutcome(current, fresh, models.StatusError, err.Error(), nil, searches, err)
		}
		result = resolution.Match
	}

	if result == nil {
		return m.recordOutcome(current, fresh, models.StatusNotFound, "", nil, searches, nil)
	}

	if err := m.addToDestination(ctx, current, result); err != nil {
		if !m.deps.Reachability.Reachable() {
			// Persisting a half-finished outcome would leave a stale search
			// trail; drop it and re-run the track after the pause.
			if clearErr := m.deps.Imports.ClearSearches(fresh.UUID); clearErr != nil {
				m.deps.Logger.Warn("failed to clear interrupted searches", "error", clearErr)
			}
			return nil
		}

		if errors.Is(err, shared.ErrPlaylistNotFound) {
			m.setState(StatePausedOnError, err)
			m.emitTrack(nil, false, err)
			return err
		}

		return m.recordOutcome(current, fresh, models.StatusError, err.Error(), nil, searches, err)
	}

	if !fromCache {
		query := ""
		if len(searches) > 0 {
			query = searches[len(searches)-1].Query
		}
		m.deps.Cache.Publish(ctx, key, query, *result)
	}

	return m.recordOutcome(current, fresh, models.StatusFound, "", result, searches, nil)
}

// addToDestination adds the matched track, recovering once from a
// destination playlist that was deleted out from under the import.
func (m *Manager) addToDestination(ctx context.Context, current *PlaylistProgress, result *models.SearchResult) error {
	err := m.deps.Destination.AddTrack(ctx, current.Destination.ID, result.TrackID)
	if err == nil {
		m.playlistRetried = false
		return nil
	}

	if !errors.Is(err, shared.ErrPlaylistNotFound) || m.playlistRetried {
		return err
	}

	m.playlistRetried = true
	m.deps.Logger.Warn("destination playlist gone, recreating", "name", current.Playlist.Name)

	playlist, createErr := m.deps.Destination.CreatePlaylist(ctx, current.Playlist.Name)
	if createErr != nil {
		return err
	}

	if replaceErr := m.deps.Imports.ReplaceDestinationPlaylist(current.ImportUUID, *playlist); replaceErr != nil {
		return replaceErr
	}
	current.Destination = playlist

	if retryErr := m.deps.Destination.AddTrack(ctx, current.Destination.ID, result.TrackID); retryErr != nil {
		return retryErr
	}

	m.playlistRetried = false
	return nil
}

// recordOutcome persists a track outcome, advances the cursor and fires the
// track callback.
func (m *Manager) recordOutcome(current *PlaylistProgress, track *models.Track, status models.TrackStatus, errDesc string, result *models.SearchResult, searches []models.Search, trackErr error) error {
	if err := m.deps.Imports.RecordOutcome(track.UUID, status, errDesc, result, searches); err != nil {
		m.setState(StatePausedOnError, err)
		m.emitTrack(nil, false, err)
		return err
	}

	track.Status = status
	track.ErrorDescription = errDesc
	track.Matched = result
	current.Tracks[current.TotalProcessed] = *track

	current.TotalProcessed++
	m.emitTrack(track, current.IsFinished(), trackErr)
	return nil
}

// handleMissingRow retries a transiently missing track row exactly once
// after a short delay, re-reading the playlist's rows so the retry sees the
// store's current state. A second consecutive miss is an unrecoverable store
// inconsistency.
func (m *Manager) handleMissingRow(current *PlaylistProgress, track models.Track, err error) error {
	if !m.inRowRetry {
		m.inRowRetry = true
		m.deps.Logger.Warn("track row missing, retrying once", "uuid", track.UUID, "error", err)
		time.Sleep(m.retryDelay)
		m.syncTracks(current)
		return nil
	}

	haltErr := fmt.Errorf("%w: track %s (%s - %s) still missing after retry: %v",
		shared.ErrStoreInconsistent, track.UUID, track.Artist, track.Name, err)
	m.deps.Logger.Error("import halted on store inconsistency",
		"uuid", track.UUID, "track", track.Name, "artist", track.Artist, "error", err)
	m.setState(StatePausedOnError, haltErr)
	m.emitTrack(nil, false, haltErr)
	return haltErr
}

// syncTracks re-reads the playlist's persisted rows into the read-model so
// mutations made outside the loop (appended tracks, another process) are
// visible before the cursor moves on.
func (m *Manager) syncTracks(current *PlaylistProgress) {
	tracks, err := m.deps.Imports.TracksForImport(current.ImportUUID)
	if err != nil {
		m.deps.Logger.Warn("failed to refresh track list", "import", current.ImportUUID, "error", err)
		return
	}
	current.UpdateTracks(tracks, m.refreshMode)
}

// finish clears the active-import pointer and interruption counter.
func (m *Manager) finish() {
	m.setState(StateFinished, nil)

	if err := m.deps.State.Delete(repositories.StateKeyActiveImport); err != nil {
		m.deps.Logger.Warn("failed to clear active import pointer", "error", err)
	}
	if err := m.deps.State.Delete(repositories.StateKeyInterruptions); err != nil {
		m.deps.Logger.Warn("failed to clear interruption counter", "error", err)
	}

	m.deps.Logger.Info("import finished",
		"playlists", len(m.progress.Playlists), "tracks", m.progress.TotalTracks())
}

func (m *Manager) emitTrack(track *models.Track, last bool, err error) {
	if m.onTrack != nil {
		m.onTrack(track, last, err)
	}
}

func (m *Manager) emitPlaylist(playlist models.Playlist, last bool) {
	if m.onPlaylist != nil {
		m.onPlaylist(playlist, last)
	}
}

// ActiveCollectionID returns the persisted active-import pointer, if set.
func ActiveCollectionID(state *repositories.StateRepository) (string, bool, error) {
	return state.Get(repositories.StateKeyActiveImport)
}
