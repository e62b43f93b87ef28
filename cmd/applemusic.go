package main

import (
	"context"
	"fmt"

	"github.com/tunebridge/tunebridge/internal/shared"
	"github.com/urfave/cli/v3"
)

// AppleMusicAuth verifies the configured credentials by fetching a developer
// token and resolving the user's storefront.
func (r *Runner) AppleMusicAuth(ctx context.Context, cmd *cli.Command) error {
	r.loadConfigFlag(cmd)

	applemusic, err := r.appleMusicClient()
	if err != nil {
		return err
	}

	if err := applemusic.Authenticate(ctx); err != nil {
		return fmt.Errorf("apple music authentication failed: %w", err)
	}

	r.writePlainln("✓ Apple Music credentials verified")
	r.writePlain("Storefront: %s\n", applemusic.RegionIdentifier())

	return nil
}

// AppleMusicSearch searches the Apple Music catalog for songs.
func (r *Runner) AppleMusicSearch(ctx context.Context, cmd *cli.Command) error {
	r.loadConfigFlag(cmd)

	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	applemusic, err := r.appleMusicClient()
	if err != nil {
		return err
	}

	if err := applemusic.Authenticate(ctx); err != nil {
		return fmt.Errorf("apple music authentication failed: %w", err)
	}

	results, err := applemusic.Search(ctx, query)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, true)
	}

	r.writePlain("Found %d results:\n\n", len(results))
	for i, result := range results {
		streamable := ""
		if !result.IsStreamable {
			streamable = " (not streamable)"
		}
		r.writePlain("%d. %s - %s [%s]%s\n", i+1, result.Artist, result.TrackName,
			shared.FormatDuration(result.Duration), streamable)
	}

	return nil
}
