package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/tunebridge/tunebridge/internal/models"
	"github.com/tunebridge/tunebridge/internal/shared"
	"golang.org/x/time/rate"
)

// scriptedDestination returns canned search results per query.
type scriptedDestination struct {
	results   map[string][]models.SearchResult
	errs      map[string]error
	transient int // transient failures before any search succeeds
	queries   []string
}

func (d *scriptedDestination) Name() models.Service { return models.ServiceAppleMusic }
func (d *scriptedDestination) RegionIdentifier() string { return "us" }

func (d *scriptedDestination) Authenticate(ctx context.Context) error { return nil }

func (d *scriptedDestination) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	if d.transient > 0 {
		d.transient--
		return nil, errors.New("transient failure")
	}

	d.queries = append(d.queries, query)

	if err, ok := d.errs[query]; ok {
		return nil, err
	}
	return d.results[query], nil
}

func (d *scriptedDestination) CreatePlaylist(ctx context.Context, name string) (*models.Playlist, error) {
	return nil, shared.ErrNotImplemented
}

func (d *scriptedDestination) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	return nil, shared.ErrNotImplemented
}

func (d *scriptedDestination) AddTrack(ctx context.Context, playlistID, trackID string) error {
	return shared.ErrNotImplemented
}

func testResolver(dest DestinationService) *Resolver {
	r := NewResolver(dest, shared.NewLogger(io.Discard))
	r.limiter = rate.NewLimiter(rate.Inf, 1)
	r.retryDelay = time.Millisecond
	return r
}

func candidate(name, artist string, duration int, streamable bool) models.SearchResult {
	return models.SearchResult{
		Service:      models.ServiceAppleMusic,
		TrackID:      "am_" + name,
		TrackName:    name,
		Artist:       artist,
		Duration:     duration,
		IsStreamable: streamable,
	}
}

func TestResolver(t *testing.T) {
	track := models.Track{
		Name:     "Heroes",
		Artist:   "David Bowie",
		Album:    "Heroes",
		Duration: 217,
		Service:  models.ServiceSpotify,
	}

	t.Run("MatchOnFirstPass", func(t *testing.T) {
		dest := &scriptedDestination{
			results: map[string][]models.SearchResult{
				"Heroes David Bowie": {candidate("Heroes", "David Bowie", 218, true)},
			},
		}

		resolution, err := testResolver(dest).Resolve(context.Background(), track)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}

		if resolution.Match == nil || resolution.Match.TrackName != "Heroes" {
			t.Errorf("expected match, got %+v", resolution.Match)
		}

		if len(resolution.Searches) != 1 {
			t.Errorf("expected 1 search, got %d", len(resolution.Searches))
		}
	})

	t.Run("DuplicateQueriesSkipped", func(t *testing.T) {
		// A plain name produces the same query on passes 0-2, so only the
		// distinct queries hit the service.
		dest := &scriptedDestination{}

		if _, err := testResolver(dest).Resolve(context.Background(), track); err != nil {
			t.Fatalf("resolve failed: %v", err)
		}

		seen := map[string]int{}
		for _, q := range dest.queries {
			seen[q]++
			if seen[q] > 1 {
				t.Errorf("query %q executed twice", q)
			}
		}
	})

	t.Run("ArtistFilterRejectsImpostor", func(t *testing.T) {
		dest := &scriptedDestination{
			results: map[string][]models.SearchResult{
				"Heroes David Bowie": {candidate("Heroes", "Some Cover Band", 217, true)},
			},
		}

		resolution, err := testResolver(dest).Resolve(context.Background(), track)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}

		if resolution.Match != nil {
			t.Errorf("expected no match, got %+v", resolution.Match)
		}
	})

	t.Run("ArtistAlias", func(t *testing.T) {
		aliased := models.Track{Name: "Capitol", Artist: "Trust", Album: "TRST", Duration: 240}
		dest := &scriptedDestination{
			results: map[string][]models.SearchResult{
				"Capitol Trust": {candidate("Capitol", "TR/ST", 241, true)},
			},
		}

		resolution, err := testResolver(dest).Resolve(context.Background(), aliased)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}

		if resolution.Match == nil || resolution.Match.Artist != "TR/ST" {
			t.Errorf("expected aliased artist to match, got %+v", resolution.Match)
		}
	})

	t.Run("StreamablePreferred", func(t *testing.T) {
		dest := &scriptedDestination{
			results: map[string][]models.SearchResult{
				"Heroes David Bowie": {
					candidate("Heroes", "David Bowie", 217, false),
					candidate("Heroes", "David Bowie", 218, true),
				},
			},
		}

		resolution, err := testResolver(dest).Resolve(context.Background(), track)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}

		if resolution.Match == nil || !resolution.Match.IsStreamable {
			t.Errorf("expected streamable match, got %+v", resolution.Match)
		}
	})

	t.Run("NonStreamableWhenOnlyOption", func(t *testing.T) {
		dest := &scriptedDestination{
			results: map[string][]models.SearchResult{
				"Heroes David Bowie": {candidate("Heroes", "David Bowie", 217, false)},
			},
		}

		resolution, err := testResolver(dest).Resolve(context.Background(), track)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}

		if resolution.Match == nil || resolution.Match.IsStreamable {
			t.Errorf("expected non-streamable match, got %+v", resolution.Match)
		}
	})

	t.Run("FallbackAtExhaustion", func(t *testing.T) {
		// The only candidate fails the duration test, so no pass scores a
		// match and the early-pass candidate is returned at the end.
		dest := &scriptedDestination{
			results: map[string][]models.SearchResult{
				"Heroes David Bowie": {candidate("Heroes (Live)", "David Bowie", 300, true)},
			},
		}

		resolution, err := testResolver(dest).Resolve(context.Background(), track)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}

		if resolution.Match == nil || resolution.Match.TrackName != "Heroes (Live)" {
			t.Errorf("expected fallback match, got %+v", resolution.Match)
		}
	})

	t.Run("NoFallbackFromLatePasses", func(t *testing.T) {
		// Artist-only and album-only passes are too loose to supply a
		// fallback candidate.
		dest := &scriptedDestination{
			results: map[string][]models.SearchResult{
				"David Bowie": {candidate("Completely Different Song", "David Bowie", 500, true)},
			},
		}

		resolution, err := testResolver(dest).Resolve(context.Background(), track)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}

		if resolution.Match != nil {
			t.Errorf("expected no match, got %+v", resolution.Match)
		}
	})

	t.Run("MatchOnLaterPass", func(t *testing.T) {
		decorated := models.Track{
			Name:     "Song (Album Version)",
			Artist:   "The Band",
			Album:    "Record",
			Duration: 200,
		}
		dest := &scriptedDestination{
			results: map[string][]models.SearchResult{
				// Only the name-only query of the last pass hits.
				"Song ": {candidate("Song", "The Band", 199, true)},
			},
		}

		resolution, err := testResolver(dest).Resolve(context.Background(), decorated)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}

		if resolution.Match == nil || resolution.Match.TrackID != "am_Song" {
			t.Errorf("expected match on final pass, got %+v", resolution.Match)
		}
	})

	t.Run("TransientErrorsRetried", func(t *testing.T) {
		dest := &scriptedDestination{
			transient: 2,
			results: map[string][]models.SearchResult{
				"Heroes David Bowie": {candidate("Heroes", "David Bowie", 217, true)},
			},
		}

		resolution, err := testResolver(dest).Resolve(context.Background(), track)
		if err != nil {
			t.Fatalf("expected retries to recover, got %v", err)
		}

		if resolution.Match == nil {
			t.Error("expected match after retries")
		}
	})

	t.Run("TokenErrorTerminal", func(t *testing.T) {
		dest := &scriptedDestination{
			errs: map[string]error{
				"Heroes David Bowie": shared.ErrAuthToken,
			},
		}

		resolution, err := testResolver(dest).Resolve(context.Background(), track)
		if !errors.Is(err, shared.ErrAuthToken) {
			t.Fatalf("expected ErrAuthToken, got %v", err)
		}

		if resolution == nil {
			t.Fatal("resolution should carry searches performed so far")
		}
	})

	t.Run("RejectedTokenHaltsWithoutRetry", func(t *testing.T) {
		// A 401 from the catalog must surface as ErrAuthToken through the
		// whole search stack, not get retried as a transient failure.
		requests := 0
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/catalog/us/search", func(w http.ResponseWriter, r *http.Request) {
			requests++
			w.WriteHeader(http.StatusUnauthorized)
		})

		service := newTestAppleMusic(t, mux)
		service.storefront = "us"

		_, err := testResolver(service).Resolve(context.Background(), track)
		if !errors.Is(err, shared.ErrAuthToken) {
			t.Fatalf("expected ErrAuthToken, got %v", err)
		}

		if requests != 1 {
			t.Errorf("expected a single search request, got %d", requests)
		}
	})

	t.Run("SearchTrailAccumulates", func(t *testing.T) {
		dest := &scriptedDestination{}

		resolution, err := testResolver(dest).Resolve(context.Background(), track)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}

		if len(resolution.Searches) != len(dest.queries) {
			t.Errorf("expected %d searches recorded, got %d", len(dest.queries), len(resolution.Searches))
		}
	})
}
