package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tunebridge/tunebridge/internal/shared"
	"golang.org/x/oauth2"
)

// memorySecrets is an in-memory SecretStore for tests.
type memorySecrets struct {
	values map[string]string
}

func newMemorySecrets() *memorySecrets {
	return &memorySecrets{values: map[string]string{}}
}

func (m *memorySecrets) Get(key string) (string, bool, error) {
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *memorySecrets) Set(key, value string) error {
	m.values[key] = value
	return nil
}

func (m *memorySecrets) Delete(key string) error {
	delete(m.values, key)
	return nil
}

func newTestSpotify(t *testing.T, handler http.Handler) (*SpotifyService, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	service, err := NewSpotifyService(shared.SpotifyConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost:8080/callback",
	}, newMemorySecrets())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	service.baseURL = server.URL
	service.token = &oauth2.Token{AccessToken: "test-token"}
	service.httpClient = http.DefaultClient

	return service, server
}

func TestSpotifyService(t *testing.T) {
	t.Run("RequiresCredentials", func(t *testing.T) {
		_, err := NewSpotifyService(shared.SpotifyConfig{}, newMemorySecrets())
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("RequiresAuthentication", func(t *testing.T) {
		service, err := NewSpotifyService(shared.SpotifyConfig{
			ClientID:     "client",
			ClientSecret: "secret",
		}, newMemorySecrets())
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		_, err = service.Playlists(context.Background())
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("RestoresStoredToken", func(t *testing.T) {
		secrets := newMemorySecrets()
		serialized, _ := json.Marshal(&oauth2.Token{AccessToken: "stored", RefreshToken: "refresh"})
		secrets.Set(spotifyTokenKey, string(serialized))

		service, err := NewSpotifyService(shared.SpotifyConfig{
			ClientID:     "client",
			ClientSecret: "secret",
		}, secrets)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		if !service.Authenticated() {
			t.Error("expected stored token to be restored")
		}
	})

	t.Run("PlaylistsPagination", func(t *testing.T) {
		var service *SpotifyService
		mux := http.NewServeMux()
		mux.HandleFunc("/me/playlists", func(w http.ResponseWriter, r *http.Request) {
			offset := r.URL.Query().Get("offset")

			var next *string
			items := `[{"id": "pl1", "name": "First", "owner": {"id": "user1"}, "tracks": {"total": 2}}]`
			if offset == "0" {
				url := service.baseURL + "/me/playlists?offset=50"
				next = &url
			} else {
				items = `[{"id": "pl2", "name": "Second", "owner": {"id": "user1"}, "tracks": {"total": 3}}]`
			}

			response := map[string]any{"items": json.RawMessage(items), "next": next}
			json.NewEncoder(w).Encode(response)
		})

		service, _ = newTestSpotify(t, mux)

		playlists, err := service.Playlists(context.Background())
		if err != nil {
			t.Fatalf("failed to get playlists: %v", err)
		}

		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists across pages, got %d", len(playlists))
		}

		if playlists[0].ID != "pl1" || playlists[1].ID != "pl2" {
			t.Errorf("unexpected playlists: %+v", playlists)
		}

		if playlists[0].UserID != "user1" {
			t.Errorf("expected owner user1, got %s", playlists[0].UserID)
		}
	})

	t.Run("PlaylistTracks", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/playlists/pl1", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"id": "pl1", "name": "Mix", "owner": {"id": "user1"}}`)
		})
		mux.HandleFunc("/playlists/pl1/tracks", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{
				"items": [
					{"track": {"id": "t1", "name": "Song One", "duration_ms": 201000,
						"artists": [{"name": "Artist"}],
						"album": {"name": "Album", "images": [{"url": "http://img/1"}]}}},
					{"track": {"id": "", "name": "Local File", "is_local": true, "duration_ms": 100000}},
					{"track": {"id": "t2", "name": "Song Two", "duration_ms": 185500,
						"artists": [{"name": "Artist"}], "album": {"name": "Album"}}}
				],
				"next": null
			}`)
		})

		service, _ := newTestSpotify(t, mux)

		playlist, tracks, err := service.PlaylistTracks(context.Background(), "pl1")
		if err != nil {
			t.Fatalf("failed to get tracks: %v", err)
		}

		if playlist.Name != "Mix" {
			t.Errorf("expected playlist Mix, got %s", playlist.Name)
		}

		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks (local file skipped), got %d", len(tracks))
		}

		if tracks[0].Duration != 201 {
			t.Errorf("expected duration in seconds, got %d", tracks[0].Duration)
		}

		if tracks[0].Artist != "Artist" || tracks[0].AlbumCoverURL != "http://img/1" {
			t.Errorf("track metadata incomplete: %+v", tracks[0])
		}
	})

	t.Run("PlaylistNotFound", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		service, _ := newTestSpotify(t, mux)

		_, _, err := service.PlaylistTracks(context.Background(), "missing")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		service, _ := newTestSpotify(t, mux)

		_, err := service.Playlists(context.Background())
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})
}

func TestParsePlaylistURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"web URL", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M", false},
		{"web URL with query", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc", "37i9dQZF1DXcBWIGoYBM5M", false},
		{"URI", "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M", false},
		{"bare ID", "37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M", false},
		{"album URL", "https://open.spotify.com/album/xyz", "", true},
		{"empty", "", "", true},
		{"garbage", "not a/playlist", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePlaylistURL(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParsePlaylistURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
