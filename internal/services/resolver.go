package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mozillazg/go-unidecode"
	"github.com/tunebridge/tunebridge/internal/models"
	"github.com/tunebridge/tunebridge/internal/normalize"
	"github.com/tunebridge/tunebridge/internal/shared"
	"golang.org/x/time/rate"
)

const (
	searchMaxRetries = 3
	searchRetryDelay = time.Second

	// matchDurationTolerance is the maximum difference in seconds between a
	// source track and a candidate for the candidate to count as a match.
	matchDurationTolerance = 5

	// fallbackPassLimit bounds which passes may contribute a fallback
	// candidate. Later passes search with queries too loose (artist only,
	// album only) for an unscored first result to be trustworthy.
	fallbackPassLimit = 4
)

// ArtistAlias allows two differently named artists to pass the artist
// containment check. Some artists carry different names across catalogs.
type ArtistAlias struct {
	ResultArtist string   // normalized candidate artist name
	TrackArtist  string   // normalized source artist name
	Albums       []string // lowercased album names the alias applies to, empty for all
}

// DefaultArtistAliases covers known cross-catalog renames.
var DefaultArtistAliases = []ArtistAlias{
	// On iTunes: TR/ST, on Spotify: Trust.
	{ResultArtist: "trst", TrackArtist: "trust"},
	// Kakkmaddafakka renamed themselves to KMF on Spotify.
	{ResultArtist: "kakkmaddafakka", TrackArtist: "kmf", Albums: []string{"hest", "six months is a long time", "kmf", "down to earth"}},
}

// Resolution is the outcome of resolving one track: the matched catalog
// entry, or nil when nothing matched, plus the full search audit trail.
type Resolution struct {
	Match    *models.SearchResult
	Searches []models.Search
}

// Resolver finds the destination catalog entry for a source track.
//
// It runs up to normalize.TotalPasses+1 search passes with progressively
// looser queries, filters candidates by artist, and scores the survivors by
// duration and name prefix. A filtered but unscored candidate from an early
// pass is remembered as a fallback and used only when every pass has been
// exhausted without a scored match.
type Resolver struct {
	destination DestinationService
	limiter     *rate.Limiter
	logger      *log.Logger
	aliases     []ArtistAlias
	maxRetries  int
	retryDelay  time.Duration
}

// NewResolver creates a resolver on top of a destination service.
func NewResolver(destination DestinationService, logger *log.Logger) *Resolver {
	return &Resolver{
		destination: destination,
		limiter:     rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		logger:      logger,
		aliases:     DefaultArtistAliases,
		maxRetries:  searchMaxRetries,
		retryDelay:  searchRetryDelay,
	}
}

// Resolve finds the best destination match for a track.
//
// The returned Resolution always carries the searches performed so far, also
// on error, so the caller can persist the audit trail. Token and storefront
// errors are terminal; transient search errors are retried with a fixed
// delay before giving up.
func (r *Resolver) Resolve(ctx context.Context, track models.Track) (*Resolution, error) {
	resolution := &Resolution{}

	var fallback *models.SearchResult
	var lastQuery string

	for pass := 0; pass <= normalize.TotalPasses; pass++ {
		query := normalize.Query(track.Name, track.Artist, track.Album, pass)
		if query == "" || query == lastQuery {
			continue
		}
		lastQuery = query

		results, err := r.search(ctx, query)
		if err != nil {
			return resolution, err
		}

		resolution.Searches = append(resolution.Searches, models.Search{
			Query:   query,
			Date:    time.Now(),
			Results: results,
		})

		filtered := r.filterByArtist(results, track)
		if len(filtered) == 0 {
			continue
		}

		if match := bestMatch(track, filtered); match != nil {
			r.logger.Debug("track resolved", "track", track.Name, "pass", pass, "match", match.TrackName)
			resolution.Match = match
			return resolution, nil
		}

		if fallback == nil && pass < fallbackPassLimit {
			first := filtered[0]
			fallback = &first
		}
	}

	if fallback != nil {
		r.logger.Debug("track resolved via fallback", "track", track.Name, "match", fallback.TrackName)
	}
	resolution.Match = fallback
	return resolution, nil
}

// search performs one rate-limited catalog search, retrying transient
// failures. Token and storefront errors abort immediately since no retry
// can fix them here.
func (r *Resolver) search(ctx context.Context, query string) ([]models.SearchResult, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			r.logger.Debug("retrying search", "query", query, "attempt", attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.retryDelay):
			}
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		results, err := r.destination.Search(ctx, query)
		if err == nil {
			return results, nil
		}

		if errors.Is(err, shared.ErrAuthToken) || errors.Is(err, shared.ErrStorefront) {
			return nil, err
		}

		lastErr = err
	}

	return nil, fmt.Errorf("search exhausted retries: %w", lastErr)
}

// filterByArtist keeps candidates whose artist name contains, or is
// contained in, the source track's artist name. Known alias pairs pass
// regardless.
func (r *Resolver) filterByArtist(results []models.SearchResult, track models.Track) []models.SearchResult {
	trackArtist := normalize.ArtistName(track.Artist)

	var filtered []models.SearchResult
	for _, result := range results {
		resultArtist := normalize.ArtistName(result.Artist)

		if r.aliasMatch(resultArtist, trackArtist, track.Album) ||
			strings.Contains(resultArtist, trackArtist) ||
			strings.Contains(trackArtist, resultArtist) {
			filtered = append(filtered, result)
		}
	}

	return filtered
}

func (r *Resolver) aliasMatch(resultArtist, trackArtist, album string) bool {
	for _, alias := range r.aliases {
		if alias.ResultArtist != resultArtist || alias.TrackArtist != trackArtist {
			continue
		}
		if len(alias.Albums) == 0 {
			return true
		}
		for _, aliasAlbum := range alias.Albums {
			if aliasAlbum == strings.ToLower(album) {
				return true
			}
		}
	}
	return false
}

// bestMatch scores candidates in order: duration within tolerance and the
// candidate name starting with the cleaned source name. Streamable
// candidates are preferred; the non-streamable rule only applies when no
// streamable candidate scores.
func bestMatch(track models.Track, results []models.SearchResult) *models.SearchResult {
	cleanName := normalize.MatchName(track.Name)

	for _, forceStreamable := range []bool{true, false} {
		for _, result := range results {
			if forceStreamable && !result.IsStreamable {
				continue
			}

			diff := result.Duration - track.Duration
			if diff < 0 {
				diff = -diff
			}
			if diff > matchDurationTolerance {
				continue
			}

			candidateName := unidecode.Unidecode(strings.ToLower(result.TrackName))
			if !strings.HasPrefix(candidateName, cleanName) {
				continue
			}

			match := result
			return &match
		}
	}

	return nil
}
