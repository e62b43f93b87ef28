package repositories

import (
	"database/sql"
	"fmt"

	"github.com/tunebridge/tunebridge/internal/shared"
)

// Well-known app state keys.
const (
	// StateKeyActiveImport holds the UUID of the collection an interrupted
	// import should resume from. Cleared when the import finishes.
	StateKeyActiveImport = "active_import_collection"

	// StateKeyInterruptions counts app restarts that happened while an
	// import was still active.
	StateKeyInterruptions = "import_interruptions"

	// StateKeySpotifyToken and StateKeyAppleMusicToken cache the
	// serialized credentials for each service.
	StateKeySpotifyToken    = "spotify_token"
	StateKeyAppleMusicToken = "apple_music_token"
)

// StateRepository stores process-wide key/value state: the active import
// pointer, interruption counter and cached service credentials.
type StateRepository struct {
	db *sql.DB
}

// NewStateRepository creates a new StateRepository with the given database connection
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get retrieves the value for a key. Missing keys return ("", false, nil).
func (r *StateRepository) Get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read app state %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores a value for a key, replacing any previous value.
func (r *StateRepository) Set(key, value string) error {
	_, err := r.db.Exec("INSERT INTO app_state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, value)
	if err != nil {
		return fmt.Errorf("failed to write app state %q: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (r *StateRepository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM app_state WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete app state %q: %w", key, err)
	}
	return nil
}

// IncrementCounter adds one to an integer-valued key and returns the new
// value. Missing keys start at zero.
func (r *StateRepository) IncrementCounter(key string) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRow("SELECT CAST(value AS INTEGER) FROM app_state WHERE key = ?", key).Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to read counter %q: %w", key, err)
	}

	count++
	if _, err := tx.Exec("INSERT INTO app_state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, fmt.Sprintf("%d", count)); err != nil {
		return 0, fmt.Errorf("failed to write counter %q: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit counter: %v", shared.ErrStoreInconsistent, err)
	}

	return count, nil
}
