package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tunebridge/tunebridge/internal/models"
	"github.com/tunebridge/tunebridge/internal/shared"
	itesting "github.com/tunebridge/tunebridge/internal/testing"
	"github.com/urfave/cli/v3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Logger: shared.NewLogger(io.Discard),
		Output: output,
		DB:     setupTestDB(t),
	})

	return runner, output
}

// runCommand executes a CLI invocation against the runner's command tree.
func runCommand(r *Runner, args ...string) error {
	app := &cli.Command{
		Name:     "tunebridge",
		Commands: r.register(),
	}
	return app.Run(context.Background(), append([]string{"tunebridge"}, args...))
}

// seedImport persists a single-playlist import with one found and one
// unmatched track.
func seedImport(t *testing.T, r *Runner) *models.PlaylistImport {
	t.Helper()

	collection, err := r.imports.CreateCollection([]models.PlaylistSelection{
		{
			Playlist: models.Playlist{
				ID:      "pl1",
				Name:    "Road Trip",
				UserID:  "someone",
				Service: models.ServiceSpotify,
			},
			Tracks: []models.Track{
				{ID: "t1", Name: "Song One", Artist: "Artist One", Album: "Album One", Duration: 180, Service: models.ServiceSpotify},
				{ID: "t2", Name: "Song Two", Artist: "Artist Two", Album: "Album Two", Duration: 210, Service: models.ServiceSpotify},
			},
		},
	})
	if err != nil {
		t.Fatalf("failed to create collection: %v", err)
	}

	playlistImport := &collection.Imports[0]

	matched := &models.SearchResult{
		TrackID:      "am_t1",
		TrackName:    "Song One",
		Artist:       "Artist One",
		Duration:     180,
		IsStreamable: true,
	}
	if err := r.imports.RecordOutcome(playlistImport.Tracks[0].UUID, models.StatusFound, "", matched, nil); err != nil {
		t.Fatalf("failed to record outcome: %v", err)
	}
	if err := r.imports.RecordOutcome(playlistImport.Tracks[1].UUID, models.StatusNotFound, "", nil, nil); err != nil {
		t.Fatalf("failed to record outcome: %v", err)
	}

	return playlistImport
}

func TestWriteJSON(t *testing.T) {
	t.Run("Compact", func(t *testing.T) {
		runner, output := newTestRunner(t)

		if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
			t.Fatalf("writeJSON failed: %v", err)
		}

		got := output.String()
		if got != "{\"key\":\"value\"}\n" {
			t.Errorf("unexpected output: %q", got)
		}
	})

	t.Run("Pretty", func(t *testing.T) {
		runner, output := newTestRunner(t)

		if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
			t.Fatalf("writeJSON failed: %v", err)
		}

		if !strings.Contains(output.String(), "\n  \"key\"") {
			t.Errorf("expected indented output, got %q", output.String())
		}
	})

	t.Run("WriteFailure", func(t *testing.T) {
		runner, _ := newTestRunner(t)
		runner.output = &itesting.FWriter{}

		if err := runner.writeJSON(map[string]string{"key": "value"}, false); err == nil {
			t.Error("expected error from failing writer")
		}
	})

	t.Run("NewlineWriteFailure", func(t *testing.T) {
		runner, _ := newTestRunner(t)
		runner.output = &itesting.LimitedWriter{MaxWrites: 1, Target: &bytes.Buffer{}}

		if err := runner.writeJSON(map[string]string{"key": "value"}, false); err == nil {
			t.Error("expected error from limited writer")
		}
	})
}

func TestWritePlain(t *testing.T) {
	t.Run("Format", func(t *testing.T) {
		runner, output := newTestRunner(t)

		runner.writePlain("found %d of %d\n", 3, 5)

		if output.String() != "found 3 of 5\n" {
			t.Errorf("unexpected output: %q", output.String())
		}
	})

	t.Run("Line", func(t *testing.T) {
		runner, output := newTestRunner(t)

		runner.writePlainln("done")

		if output.String() != "\ndone\n" {
			t.Errorf("unexpected output: %q", output.String())
		}
	})

	t.Run("Header", func(t *testing.T) {
		runner, output := newTestRunner(t)

		runner.writePlainHeader("Road Trip")

		got := output.String()
		if !strings.Contains(got, "Road Trip") || !strings.Contains(got, "═") {
			t.Errorf("unexpected header output: %q", got)
		}
	})
}

func TestImportList(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		runner, output := newTestRunner(t)

		if err := runCommand(runner, "import", "list"); err != nil {
			t.Fatalf("import list failed: %v", err)
		}

		if !strings.Contains(output.String(), "No imports yet") {
			t.Errorf("unexpected output: %q", output.String())
		}
	})

	t.Run("Plain", func(t *testing.T) {
		runner, output := newTestRunner(t)
		playlistImport := seedImport(t, runner)

		if err := runCommand(runner, "import", "list"); err != nil {
			t.Fatalf("import list failed: %v", err)
		}

		got := output.String()
		if !strings.Contains(got, "Road Trip") {
			t.Errorf("expected playlist name in output: %q", got)
		}
		if !strings.Contains(got, playlistImport.UUID) {
			t.Errorf("expected import ID in output: %q", got)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		runner, output := newTestRunner(t)
		seedImport(t, runner)

		if err := runCommand(runner, "import", "list", "--json"); err != nil {
			t.Fatalf("import list failed: %v", err)
		}

		var imports []models.PlaylistImport
		if err := json.Unmarshal(output.Bytes(), &imports); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(imports) != 1 {
			t.Errorf("expected 1 import, got %d", len(imports))
		}
	})
}

func TestImportStatus(t *testing.T) {
	t.Run("ByID", func(t *testing.T) {
		runner, output := newTestRunner(t)
		playlistImport := seedImport(t, runner)

		if err := runCommand(runner, "import", "status", playlistImport.UUID); err != nil {
			t.Fatalf("import status failed: %v", err)
		}

		got := output.String()
		if !strings.Contains(got, "1 found, 1 not found") {
			t.Errorf("expected track counts in output: %q", got)
		}
		if !strings.Contains(got, "Artist Two - Song Two") {
			t.Errorf("expected unmatched track in output: %q", got)
		}
	})

	t.Run("NoActiveImport", func(t *testing.T) {
		runner, output := newTestRunner(t)

		if err := runCommand(runner, "import", "status"); err != nil {
			t.Fatalf("import status failed: %v", err)
		}

		if !strings.Contains(output.String(), "No active import") {
			t.Errorf("unexpected output: %q", output.String())
		}
	})

	t.Run("UnknownID", func(t *testing.T) {
		runner, _ := newTestRunner(t)

		if err := runCommand(runner, "import", "status", "missing"); err == nil {
			t.Error("expected error for unknown import ID")
		}
	})
}

func TestImportDelete(t *testing.T) {
	runner, output := newTestRunner(t)
	playlistImport := seedImport(t, runner)

	if err := runCommand(runner, "import", "delete", playlistImport.UUID); err != nil {
		t.Fatalf("import delete failed: %v", err)
	}

	if !strings.Contains(output.String(), "Deleted import") {
		t.Errorf("unexpected output: %q", output.String())
	}

	if _, err := runner.imports.GetImport(playlistImport.UUID); err == nil {
		t.Error("expected import to be gone")
	}
}

func TestImportExport(t *testing.T) {
	t.Run("CSV", func(t *testing.T) {
		runner, _ := newTestRunner(t)
		playlistImport := seedImport(t, runner)

		base := filepath.Join(t.TempDir(), "export")
		if err := runCommand(runner, "import", "export", "--output", base, playlistImport.UUID); err != nil {
			t.Fatalf("import export failed: %v", err)
		}

		data, err := os.ReadFile(base + "_tracks.csv")
		if err != nil {
			t.Fatalf("failed to read tracks file: %v", err)
		}
		if !strings.Contains(string(data), "Song One") {
			t.Errorf("expected track row in CSV: %q", string(data))
		}

		if _, err := os.Stat(base + "_metadata.json"); err != nil {
			t.Errorf("expected metadata file: %v", err)
		}
	})

	t.Run("Text", func(t *testing.T) {
		runner, _ := newTestRunner(t)
		playlistImport := seedImport(t, runner)

		target := filepath.Join(t.TempDir(), "export.txt")
		if err := runCommand(runner, "import", "export", "--format", "text", "--output", target, playlistImport.UUID); err != nil {
			t.Fatalf("import export failed: %v", err)
		}

		data, err := os.ReadFile(target)
		if err != nil {
			t.Fatalf("failed to read export: %v", err)
		}
		if !strings.Contains(string(data), "Road Trip") {
			t.Errorf("expected playlist name in export: %q", string(data))
		}
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		runner, _ := newTestRunner(t)
		playlistImport := seedImport(t, runner)

		err := runCommand(runner, "import", "export", "--format", "xml", playlistImport.UUID)
		if err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestSpotifyPlaylistsRequiresAuth(t *testing.T) {
	runner, _ := newTestRunner(t)
	runner.config.Credentials.Spotify.ClientID = "id"
	runner.config.Credentials.Spotify.ClientSecret = "secret"

	err := runCommand(runner, "spotify", "playlists")
	if err == nil {
		t.Fatal("expected error without stored token")
	}
	if !strings.Contains(err.Error(), "not authenticated") {
		t.Errorf("unexpected error: %v", err)
	}
}
