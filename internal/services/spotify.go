// Spotify source implementation of [SourceService]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tunebridge/tunebridge/internal/models"
	"github.com/tunebridge/tunebridge/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	spotifyTokenKey = "spotify_token"
	spotifyPageSize = 50
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	IsLocal    bool            `json:"is_local"`
}

type spotifyOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type spotifyTrackRef struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a playlist object as returned in lists.
type SpotifySimplePlaylist struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Owner  spotifyOwner    `json:"owner"`
	Tracks spotifyTrackRef `json:"tracks"`
	Images []SpotifyImage  `json:"images"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of playlist tracks.
type SpotifyPaginatedTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifyService implements [SourceService] for the Spotify Web API. Uses
// [oauth2] for authentication; the token is cached in a [SecretStore] so a
// single browser login survives restarts.
type SpotifyService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	secrets    SecretStore
	baseURL    string
}

// NewSpotifyService creates a new Spotify client from the configured OAuth2
// credentials, restoring a previously stored token if one exists.
func NewSpotifyService(credentials shared.SpotifyConfig, secrets SecretStore) (*SpotifyService, error) {
	if credentials.ClientID == "" || credentials.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     credentials.ClientID,
		ClientSecret: credentials.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-read-collaborative",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	service := &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		secrets:    secrets,
		baseURL:    spotifyBaseURL,
	}

	if err := service.restoreToken(); err != nil {
		return nil, err
	}

	return service, nil
}

func (s *SpotifyService) Name() models.Service {
	return models.ServiceSpotify
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and stores it.
func (s *SpotifyService) Exchange(ctx context.Context, code string) error {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}

	return s.setToken(ctx, token)
}

// Authenticated reports whether a usable token is present.
func (s *SpotifyService) Authenticated() bool {
	return s.token != nil
}

func (s *SpotifyService) setToken(ctx context.Context, token *oauth2.Token) error {
	s.token = token
	s.httpClient = s.config.Client(ctx, token)

	serialized, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to serialize token: %w", err)
	}

	if err := s.secrets.Set(spotifyTokenKey, string(serialized)); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	return nil
}

func (s *SpotifyService) restoreToken() error {
	serialized, ok, err := s.secrets.Get(spotifyTokenKey)
	if err != nil {
		return fmt.Errorf("failed to load stored token: %w", err)
	}
	if !ok {
		return nil
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(serialized), &token); err != nil {
		return fmt.Errorf("failed to parse stored token: %w", err)
	}

	// config.Client refreshes expired tokens using the refresh token, so a
	// stale access token is still worth restoring.
	s.token = &token
	s.httpClient = s.config.Client(context.Background(), &token)
	return nil
}

// doRequest performs an authenticated GET request against the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: run spotify auth first", shared.ErrNotAuthenticated)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify rejected the token", shared.ErrTokenExpired)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Playlists retrieves all playlists of the authenticated user, following
// pagination until exhausted.
func (s *SpotifyService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	offset := 0

	for {
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", spotifyPageSize, offset)

		var page SpotifyPaginatedPlaylists
		if err := s.doRequest(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			playlists = append(playlists, models.Playlist{
				ID:      item.ID,
				Name:    item.Name,
				UserID:  item.Owner.ID,
				Type:    models.PlaylistSource,
				Service: models.ServiceSpotify,
			})
		}

		if page.Next == nil {
			break
		}
		offset += spotifyPageSize
	}

	return playlists, nil
}

// PlaylistTracks retrieves a playlist and its full track list. Local files
// have no catalog identity anywhere else and are skipped.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) (*models.Playlist, []models.Track, error) {
	var header struct {
		ID     string         `json:"id"`
		Name   string         `json:"name"`
		Owner  spotifyOwner   `json:"owner"`
		Images []SpotifyImage `json:"images"`
	}
	if err := s.doRequest(ctx, "/playlists/"+playlistID+"?fields=id,name,owner,images", &header); err != nil {
		return nil, nil, err
	}

	playlist := models.Playlist{
		ID:      header.ID,
		Name:    header.Name,
		UserID:  header.Owner.ID,
		Type:    models.PlaylistSource,
		Service: models.ServiceSpotify,
	}

	var tracks []models.Track
	offset := 0
	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=100&offset=%d", playlistID, offset)

		var page SpotifyPaginatedTracks
		if err := s.doRequest(ctx, endpoint, &page); err != nil {
			return nil, nil, err
		}

		for _, item := range page.Items {
			if item.Track.ID == "" || item.Track.IsLocal {
				continue
			}
			tracks = append(tracks, trackFromSpotify(item.Track))
		}

		if page.Next == nil {
			break
		}
		offset += 100
	}

	return &playlist, tracks, nil
}

func trackFromSpotify(st SpotifyTrack) models.Track {
	track := models.Track{
		ID:       st.ID,
		Name:     st.Name,
		Album:    st.Album.Name,
		Duration: st.DurationMS / 1000,
		Service:  models.ServiceSpotify,
		Status:   models.StatusUnprocessed,
	}

	if len(st.Artists) > 0 {
		track.Artist = st.Artists[0].Name
	}

	if len(st.Album.Images) > 0 {
		track.AlbumCoverURL = st.Album.Images[0].URL
	}

	return track
}

// ParsePlaylistURL extracts a playlist ID from an open.spotify.com URL or a
// spotify: URI. A bare playlist ID passes through unchanged.
func ParsePlaylistURL(raw string) (string, error) {
	if strings.HasPrefix(raw, "spotify:playlist:") {
		id := strings.TrimPrefix(raw, "spotify:playlist:")
		if id == "" {
			return "", fmt.Errorf("%w: empty playlist ID in %q", shared.ErrInvalidArgument, raw)
		}
		return id, nil
	}

	if strings.Contains(raw, "open.spotify.com") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}

		parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if len(parts) >= 2 && parts[len(parts)-2] == "playlist" {
			return parts[len(parts)-1], nil
		}

		return "", fmt.Errorf("%w: not a playlist URL: %q", shared.ErrInvalidArgument, raw)
	}

	if raw == "" || strings.ContainsAny(raw, "/: ") {
		return "", fmt.Errorf("%w: not a playlist reference: %q", shared.ErrInvalidArgument, raw)
	}

	return raw, nil
}
