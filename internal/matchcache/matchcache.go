// package matchcache shares confirmed track matches between users.
//
// Resolving a track costs up to nine catalog searches; a match another user
// already confirmed costs one cache lookup. The cache is a community service
// keyed by source track and destination region, so region-specific catalog
// differences never leak across storefronts. The cache is an accelerator
// only: every operation fails soft and the import proceeds without it.
package matchcache

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tunebridge/tunebridge/internal/models"
)

// Key identifies a cached match. Matches are scoped per region because
// catalog availability differs between storefronts.
type Key struct {
	SourceService      models.Service
	DestinationService models.Service
	SourceTrackID      string
	RegionIdentifier   string
}

// Cache looks up and publishes community matches.
type Cache interface {
	// Lookup returns a previously confirmed match for the key, or
	// (nil, false) on miss or any failure. A hit also bumps the match's
	// usage counter on the service.
	Lookup(ctx context.Context, key Key) (*models.SearchResult, bool)

	// Publish shares a confirmed match. Non-streamable results are not
	// published; a result that can't be played for the publishing user is
	// not worth recommending. Failures are logged and dropped.
	Publish(ctx context.Context, key Key, query string, result models.SearchResult)
}

// matchRecord is the wire format of a cached match.
type matchRecord struct {
	ID                        string `json:"id,omitempty"`
	SourceService             string `json:"sourceService"`
	SourceServiceTrackID      string `json:"sourceServiceTrackID"`
	DestinationService        string `json:"destinationService"`
	DestinationServiceTrackID string `json:"destinationServiceTrackID"`
	RegionIdentifier          string `json:"regionIdentifier"`
	TrackName                 string `json:"trackName"`
	Artist                    string `json:"artist"`
	Album                     string `json:"album"`
	AlbumCoverURL             string `json:"albumCoverURL,omitempty"`
	Duration                  int    `json:"duration"`
	IsStreamable              bool   `json:"isStreamable"`
	Query                     string `json:"query,omitempty"`
	TotalMatches              int    `json:"totalMatches"`
}

// Client talks to the community match service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient creates a match cache client.
func NewClient(baseURL string, logger *log.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (c *Client) Lookup(ctx context.Context, key Key) (*models.SearchResult, bool) {
	query := url.Values{
		"sourceService":        {string(key.SourceService)},
		"destinationService":   {string(key.DestinationService)},
		"sourceServiceTrackID": {key.SourceTrackID},
		"regionIdentifier":     {key.RegionIdentifier},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/matches?"+query.Encode(), nil)
	if err != nil {
		c.logger.Warn("match cache lookup skipped", "error", err)
		return nil, false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("match cache unreachable", "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("match cache lookup failed", "status", resp.StatusCode)
		return nil, false
	}

	var payload struct {
		Matches []matchRecord `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Warn("match cache response unreadable", "error", err)
		return nil, false
	}

	if len(payload.Matches) == 0 {
		return nil, false
	}

	record := payload.Matches[0]
	c.registerHit(record.ID)

	return &models.SearchResult{
		Service:       models.Service(record.DestinationService),
		TrackID:       record.DestinationServiceTrackID,
		TrackName:     record.TrackName,
		Artist:        record.Artist,
		Album:         record.Album,
		AlbumCoverURL: record.AlbumCoverURL,
		Duration:      record.Duration,
		IsStreamable:  record.IsStreamable,
	}, true
}

// registerHit bumps the usage counter. Fire-and-forget: the lookup result
// does not depend on it.
func (c *Client) registerHit(id string) {
	if id == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/matches/"+url.PathEscape(id)+"/hit", nil)
		if err != nil {
			return
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Debug("match cache hit count not updated", "error", err)
			return
		}
		resp.Body.Close()
	}()
}

func (c *Client) Publish(ctx context.Context, key Key, query string, result models.SearchResult) {
	if !result.IsStreamable || query == "" {
		return
	}

	record := matchRecord{
		SourceService:             string(key.SourceService),
		SourceServiceTrackID:      key.SourceTrackID,
		DestinationService:        string(key.DestinationService),
		DestinationServiceTrackID: result.TrackID,
		RegionIdentifier:          key.RegionIdentifier,
		TrackName:                 result.TrackName,
		Artist:                    result.Artist,
		Album:                     result.Album,
		AlbumCoverURL:             result.AlbumCoverURL,
		Duration:                  result.Duration,
		IsStreamable:              result.IsStreamable,
		Query:                     query,
		TotalMatches:              1,
	}

	payload, err := json.Marshal(record)
	if err != nil {
		c.logger.Warn("match not published", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/matches", bytes.NewReader(payload))
	if err != nil {
		c.logger.Warn("match not published", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("match not published", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("match not published", "status", resp.StatusCode)
		return
	}

	c.logger.Debug("match published", "track", result.TrackName)
}

// Disabled is a Cache that never hits and never publishes, used when the
// match cache is turned off in config.
type Disabled struct{}

func (Disabled) Lookup(ctx context.Context, key Key) (*models.SearchResult, bool) { return nil, false }

func (Disabled) Publish(ctx context.Context, key Key, query string, result models.SearchResult) {}

var _ Cache = (*Client)(nil)
var _ Cache = Disabled{}

// FromConfig returns a Client when the cache is enabled and configured,
// Disabled otherwise.
func FromConfig(baseURL string, enabled bool, logger *log.Logger) Cache {
	if !enabled || baseURL == "" {
		return Disabled{}
	}
	return NewClient(baseURL, logger)
}
