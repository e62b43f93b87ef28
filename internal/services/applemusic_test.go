package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tunebridge/tunebridge/internal/shared"
)

func newTestAppleMusic(t *testing.T, handler http.Handler) *AppleMusicService {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := shared.NewLogger(io.Discard)
	config := shared.AppleMusicConfig{
		FallbackToken:     "fallback-token",
		FallbackExpiresAt: time.Now().Add(time.Hour).Unix(),
		UserToken:         "user-token",
	}

	service := NewAppleMusicService(config, NewDeveloperTokenSource(config, newMemorySecrets(), logger), logger)
	service.baseURL = server.URL
	return service
}

func TestAppleMusicService(t *testing.T) {
	t.Run("AuthenticateLoadsStorefront", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/me/storefront", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Music-User-Token") != "user-token" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			fmt.Fprint(w, `{"data": [{"id": "br", "type": "storefronts"}]}`)
		})

		service := newTestAppleMusic(t, mux)

		if err := service.Authenticate(context.Background()); err != nil {
			t.Fatalf("authenticate failed: %v", err)
		}

		if service.RegionIdentifier() != "br" {
			t.Errorf("expected storefront br, got %q", service.RegionIdentifier())
		}
	})

	t.Run("AuthenticateMapsNumericStorefront", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/me/storefront", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data": [{"id": "143441"}]}`)
		})

		service := newTestAppleMusic(t, mux)

		if err := service.Authenticate(context.Background()); err != nil {
			t.Fatalf("authenticate failed: %v", err)
		}

		if service.RegionIdentifier() != "us" {
			t.Errorf("expected storefront us, got %q", service.RegionIdentifier())
		}
	})

	t.Run("AuthenticateRequiresUserToken", func(t *testing.T) {
		service := newTestAppleMusic(t, http.NewServeMux())
		service.userToken = ""

		err := service.Authenticate(context.Background())
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("AuthenticateStorefrontFailure", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/me/storefront", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		service := newTestAppleMusic(t, mux)

		err := service.Authenticate(context.Background())
		if !errors.Is(err, shared.ErrStorefront) {
			t.Errorf("expected ErrStorefront, got %v", err)
		}
	})

	t.Run("AuthenticateClassifiesForbidden", func(t *testing.T) {
		cases := []struct {
			name string
			body string
			want error
		}{
			{
				"no subscription",
				`{"errors": [{"status": "403", "code": "40300", "title": "Forbidden", "detail": "The user does not have an active subscription"}]}`,
				shared.ErrNotSubscribed,
			},
			{
				"eligible for offer",
				`{"errors": [{"title": "Forbidden", "detail": "The user is eligible for a subscription offer"}]}`,
				shared.ErrEligibleForSubscription,
			},
			{
				"cloud library disabled",
				`{"errors": [{"title": "Forbidden", "detail": "iCloud Music Library is disabled for this user"}]}`,
				shared.ErrLibraryDisabled,
			},
			{
				"opaque denial",
				`not json`,
				shared.ErrAccessDenied,
			},
		}

		for _, tt := range cases {
			t.Run(tt.name, func(t *testing.T) {
				mux := http.NewServeMux()
				mux.HandleFunc("/v1/me/storefront", func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusForbidden)
					fmt.Fprint(w, tt.body)
				})

				service := newTestAppleMusic(t, mux)

				err := service.Authenticate(context.Background())
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("Search", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/catalog/us/search", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("term") != "Heroes David Bowie" {
				t.Errorf("unexpected term %q", r.URL.Query().Get("term"))
			}
			fmt.Fprint(w, `{"results": {"songs": {"data": [
				{"id": "123", "attributes": {
					"name": "Heroes", "artistName": "David Bowie", "albumName": "Heroes",
					"durationInMillis": 217000,
					"artwork": {"url": "http://img/{w}x{h}.jpg"},
					"playParams": {"id": "123"}
				}},
				{"id": "456", "attributes": {
					"name": "Heroes (Unavailable)", "artistName": "David Bowie",
					"durationInMillis": 217000
				}}
			]}}}`)
		})

		service := newTestAppleMusic(t, mux)
		service.storefront = "us"

		results, err := service.Search(context.Background(), "Heroes David Bowie")
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}

		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}

		if !results[0].IsStreamable || results[1].IsStreamable {
			t.Errorf("streamable flags wrong: %+v", results)
		}

		if results[0].Duration != 217 {
			t.Errorf("expected duration in seconds, got %d", results[0].Duration)
		}

		if results[0].AlbumCoverURL != "http://img/120x120.jpg" {
			t.Errorf("artwork placeholders not filled: %q", results[0].AlbumCoverURL)
		}
	})

	t.Run("SearchWithoutStorefront", func(t *testing.T) {
		service := newTestAppleMusic(t, http.NewServeMux())

		_, err := service.Search(context.Background(), "anything")
		if !errors.Is(err, shared.ErrStorefront) {
			t.Errorf("expected ErrStorefront, got %v", err)
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/me/library/playlists", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"data": [{"id": "p.xyz", "attributes": {"name": "My Mix"}}]}`)
		})

		service := newTestAppleMusic(t, mux)

		playlist, err := service.CreatePlaylist(context.Background(), "My Mix")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		if playlist.ID != "p.xyz" || playlist.Name != "My Mix" {
			t.Errorf("unexpected playlist: %+v", playlist)
		}
	})

	t.Run("PlaylistNotFound", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		service := newTestAppleMusic(t, mux)

		_, err := service.Playlist(context.Background(), "p.gone")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}

		if err := service.AddTrack(context.Background(), "p.gone", "123"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound from AddTrack, got %v", err)
		}
	})

	t.Run("RejectedDeveloperToken", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		service := newTestAppleMusic(t, mux)
		service.storefront = "us"

		_, err := service.Search(context.Background(), "anything")
		if !errors.Is(err, shared.ErrAuthToken) {
			t.Errorf("expected ErrAuthToken, got %v", err)
		}
	})
}

func TestDeveloperTokenSource(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("FetchAndCache", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			fmt.Fprintf(w, `{"token": "fresh-token", "expiresAt": %d}`, time.Now().Add(time.Hour).Unix())
		}))
		defer server.Close()

		secrets := newMemorySecrets()
		source := NewDeveloperTokenSource(shared.AppleMusicConfig{TokenEndpoint: server.URL}, secrets, logger)

		token, err := source.Token(context.Background())
		if err != nil {
			t.Fatalf("token fetch failed: %v", err)
		}
		if token != "fresh-token" {
			t.Errorf("expected fresh-token, got %q", token)
		}

		// Second source instance reads the stored token instead of fetching.
		second := NewDeveloperTokenSource(shared.AppleMusicConfig{TokenEndpoint: server.URL}, secrets, logger)
		if _, err := second.Token(context.Background()); err != nil {
			t.Fatalf("stored token load failed: %v", err)
		}

		if requests != 1 {
			t.Errorf("expected 1 endpoint request, got %d", requests)
		}
	})

	t.Run("FallbackWhenEndpointDown", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		source := NewDeveloperTokenSource(shared.AppleMusicConfig{
			TokenEndpoint:     server.URL,
			FallbackToken:     "last-resort",
			FallbackExpiresAt: time.Now().Add(time.Hour).Unix(),
		}, newMemorySecrets(), logger)

		token, err := source.Token(context.Background())
		if err != nil {
			t.Fatalf("expected fallback token, got error: %v", err)
		}
		if token != "last-resort" {
			t.Errorf("expected last-resort, got %q", token)
		}
	})

	t.Run("NoTokenAvailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		source := NewDeveloperTokenSource(shared.AppleMusicConfig{
			TokenEndpoint: server.URL,
			FallbackToken: "expired",
		}, newMemorySecrets(), logger)

		_, err := source.Token(context.Background())
		if !errors.Is(err, shared.ErrAuthToken) {
			t.Errorf("expected ErrAuthToken, got %v", err)
		}
	})
}
