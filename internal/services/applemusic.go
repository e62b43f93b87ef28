// Apple Music implementation of [DestinationService]
//
// Uses the Apple Music API (https://developer.apple.com/documentation/applemusicapi)
// with a developer token for catalog access and a Music User Token for
// library writes.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/tunebridge/tunebridge/internal/models"
	"github.com/tunebridge/tunebridge/internal/shared"
)

const (
	appleMusicBaseURL    = "https://api.music.apple.com"
	searchResultLimit    = 25
	artworkThumbnailSize = "120"
)

type appleMusicArtwork struct {
	URL string `json:"url"`
}

type appleMusicErrorPayload struct {
	Errors []struct {
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

type appleMusicPlayParams struct {
	ID string `json:"id"`
}

type appleMusicSongAttributes struct {
	Name             string                `json:"name"`
	ArtistName       string                `json:"artistName"`
	AlbumName        string                `json:"albumName"`
	DurationInMillis int                   `json:"durationInMillis"`
	Artwork          *appleMusicArtwork    `json:"artwork"`
	PlayParams       *appleMusicPlayParams `json:"playParams"`
}

type appleMusicSong struct {
	ID         string                   `json:"id"`
	Attributes appleMusicSongAttributes `json:"attributes"`
}

type appleMusicPlaylistAttributes struct {
	Name string `json:"name"`
}

type appleMusicPlaylist struct {
	ID         string                       `json:"id"`
	Attributes appleMusicPlaylistAttributes `json:"attributes"`
}

// AppleMusicService implements [DestinationService] for the Apple Music API.
type AppleMusicService struct {
	tokens     *DeveloperTokenSource
	userToken  string
	httpClient *http.Client
	baseURL    string
	logger     *log.Logger
	storefront string
}

// NewAppleMusicService creates a new Apple Music client. Authenticate must
// succeed before catalog or library calls.
func NewAppleMusicService(config shared.AppleMusicConfig, tokens *DeveloperTokenSource, logger *log.Logger) *AppleMusicService {
	return &AppleMusicService{
		tokens:     tokens,
		userToken:  config.UserToken,
		httpClient: http.DefaultClient,
		baseURL:    appleMusicBaseURL,
		logger:     logger,
	}
}

func (s *AppleMusicService) Name() models.Service {
	return models.ServiceAppleMusic
}

// RegionIdentifier returns the user's storefront country code, or "" before
// Authenticate succeeds.
func (s *AppleMusicService) RegionIdentifier() string {
	return s.storefront
}

// Authenticate verifies the developer and user tokens by loading the user's
// storefront. The storefront endpoint reports either a country code directly
// or a numeric identifier that is mapped through the storefront table.
func (s *AppleMusicService) Authenticate(ctx context.Context) error {
	if s.userToken == "" {
		return fmt.Errorf("%w: apple music user_token", shared.ErrMissingCredentials)
	}

	var response struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}

	if err := s.doRequest(ctx, http.MethodGet, "/v1/me/storefront", nil, &response); err != nil {
		if errors.Is(err, shared.ErrAPIRequest) || errors.Is(err, shared.ErrPlaylistNotFound) {
			return fmt.Errorf("%w: %v", shared.ErrStorefront, err)
		}
		return err
	}

	if len(response.Data) == 0 {
		return fmt.Errorf("%w: no storefront for user", shared.ErrStorefront)
	}

	storefront := response.Data[0].ID
	if code, ok := CountryCode(storefront); ok {
		storefront = code
	}

	s.storefront = storefront
	s.logger.Debug("authenticated with apple music", "storefront", storefront)
	return nil
}

// Search queries the song catalog of the user's storefront. Results without
// play parameters are kept but marked non-streamable; match scoring prefers
// streamable candidates.
func (s *AppleMusicService) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	if s.storefront == "" {
		return nil, fmt.Errorf("%w: no storefront loaded", shared.ErrStorefront)
	}

	endpoint := fmt.Sprintf("/v1/catalog/%s/search?term=%s&types=songs&limit=%d",
		s.storefront, url.QueryEscape(query), searchResultLimit)

	var response struct {
		Results struct {
			Songs struct {
				Data []appleMusicSong `json:"data"`
			} `json:"songs"`
		} `json:"results"`
	}

	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		// Token and storefront failures must stay recognizable so the
		// import loop can pause instead of burning the track.
		if errors.Is(err, shared.ErrAuthToken) || errors.Is(err, shared.ErrStorefront) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrSearchFailed, err)
	}

	results := make([]models.SearchResult, 0, len(response.Results.Songs.Data))
	for _, song := range response.Results.Songs.Data {
		results = append(results, models.SearchResult{
			Service:       models.ServiceAppleMusic,
			TrackID:       song.ID,
			TrackName:     song.Attributes.Name,
			Artist:        song.Attributes.ArtistName,
			Album:         song.Attributes.AlbumName,
			AlbumCoverURL: artworkURL(song.Attributes.Artwork),
			Duration:      song.Attributes.DurationInMillis / 1000,
			IsStreamable:  song.Attributes.PlayParams != nil,
		})
	}

	return results, nil
}

// CreatePlaylist creates a new library playlist with the given name.
func (s *AppleMusicService) CreatePlaylist(ctx context.Context, name string) (*models.Playlist, error) {
	body := map[string]any{
		"attributes": map[string]string{"name": name},
	}

	var response struct {
		Data []appleMusicPlaylist `json:"data"`
	}

	if err := s.doRequest(ctx, http.MethodPost, "/v1/me/library/playlists", body, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPlaylistCreation, err)
	}

	if len(response.Data) == 0 {
		return nil, fmt.Errorf("%w: no playlist in response", shared.ErrPlaylistCreation)
	}

	return &models.Playlist{
		ID:      response.Data[0].ID,
		Name:    name,
		Type:    models.PlaylistDestination,
		Service: models.ServiceAppleMusic,
	}, nil
}

// Playlist retrieves an existing library playlist.
func (s *AppleMusicService) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	var response struct {
		Data []appleMusicPlaylist `json:"data"`
	}

	if err := s.doRequest(ctx, http.MethodGet, "/v1/me/library/playlists/"+playlistID, nil, &response); err != nil {
		return nil, err
	}

	if len(response.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}

	return &models.Playlist{
		ID:      response.Data[0].ID,
		Name:    response.Data[0].Attributes.Name,
		Type:    models.PlaylistDestination,
		Service: models.ServiceAppleMusic,
	}, nil
}

// AddTrack appends a catalog song to a library playlist.
func (s *AppleMusicService) AddTrack(ctx context.Context, playlistID, trackID string) error {
	body := map[string]any{
		"data": []map[string]string{{"id": trackID, "type": "songs"}},
	}

	endpoint := fmt.Sprintf("/v1/me/library/playlists/%s/tracks", playlistID)
	return s.doRequest(ctx, http.MethodPost, endpoint, body, nil)
}

// doRequest performs an authenticated request against the Apple Music API.
func (s *AppleMusicService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Music-User-Token", s.userToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		s.tokens.Invalidate()
		return fmt.Errorf("%w: apple music rejected the developer token", shared.ErrAuthToken)
	case resp.StatusCode == http.StatusForbidden:
		return forbiddenError(resp.Body)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: apple music status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// forbiddenError classifies a 403 response. Apple names the reason in the
// error payload: a user without any subscription, a user who is eligible for
// a trial but not subscribed, and a user whose cloud library is switched off
// all get a 403 with distinct wording, and the import loop reports them
// differently.
func forbiddenError(body io.Reader) error {
	var payload appleMusicErrorPayload
	if err := json.NewDecoder(body).Decode(&payload); err != nil || len(payload.Errors) == 0 {
		return fmt.Errorf("%w: apple music denied the request", shared.ErrAccessDenied)
	}

	detail := payload.Errors[0].Detail
	if detail == "" {
		detail = payload.Errors[0].Title
	}

	switch text := strings.ToLower(payload.Errors[0].Title + " " + payload.Errors[0].Detail); {
	case strings.Contains(text, "eligible"):
		return fmt.Errorf("%w: %s", shared.ErrEligibleForSubscription, detail)
	case strings.Contains(text, "subscri"):
		return fmt.Errorf("%w: %s", shared.ErrNotSubscribed, detail)
	case strings.Contains(text, "library"):
		return fmt.Errorf("%w: %s", shared.ErrLibraryDisabled, detail)
	default:
		return fmt.Errorf("%w: %s", shared.ErrAccessDenied, detail)
	}
}

// artworkURL fills the size placeholders of an artwork URL template.
func artworkURL(artwork *appleMusicArtwork) string {
	if artwork == nil || artwork.URL == "" {
		return ""
	}

	replacer := strings.NewReplacer("{w}", artworkThumbnailSize, "{h}", artworkThumbnailSize)
	return replacer.Replace(artwork.URL)
}
