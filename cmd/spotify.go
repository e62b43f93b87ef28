package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tunebridge/tunebridge/internal/server"
	"github.com/tunebridge/tunebridge/internal/shared"
	"github.com/urfave/cli/v3"
)

// SpotifyAuth performs the OAuth2 authentication flow for Spotify.
//
// Starts a local HTTP server, opens the browser for user authorization, and
// stores the exchanged token in the state store.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	r.loadConfigFlag(cmd)

	spotify, err := r.spotifyClient()
	if err != nil {
		return err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return err
	}

	handler := server.NewCallbackHandler(spotify, state)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(handler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	authURL := spotify.AuthURL(state)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var flowErr error
	select {
	case flowErr = <-handler.Done():
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		flowErr = fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if flowErr != nil {
		return fmt.Errorf("authorization failed: %w", flowErr)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("You can now use: tunebridge spotify playlists\n")

	return nil
}

// SpotifyPlaylists lists Spotify playlists with an optional limit.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	r.loadConfigFlag(cmd)

	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	spotify, err := r.spotifyClient()
	if err != nil {
		return err
	}

	if !spotify.Authenticated() {
		return fmt.Errorf("%w: run tunebridge spotify auth first", shared.ErrNotAuthenticated)
	}

	r.logger.Infof("listing spotify playlists with limit %v", limit)

	playlists, err := spotify.Playlists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if useJSON {
		return r.writeJSON(playlists, pretty)
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		r.writePlain("   ID: %s\n", p.ID)
		if p.UserID != "" {
			r.writePlain("   Owner: %s\n", p.UserID)
		}
		r.writePlain("\n")
	}

	return nil
}
