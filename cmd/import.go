package main

import (
	"context"
	"fmt"

	"github.com/tunebridge/tunebridge/internal/formatter"
	"github.com/tunebridge/tunebridge/internal/importer"
	"github.com/tunebridge/tunebridge/internal/models"
	"github.com/tunebridge/tunebridge/internal/services"
	"github.com/tunebridge/tunebridge/internal/shared"
	"github.com/urfave/cli/v3"
)

// ImportRun imports the given playlists from Spotify to Apple Music.
func (r *Runner) ImportRun(ctx context.Context, cmd *cli.Command) error {
	r.loadConfigFlag(cmd)

	spotify, err := r.spotifyClient()
	if err != nil {
		return err
	}
	if !spotify.Authenticated() {
		return fmt.Errorf("%w: run tunebridge spotify auth first", shared.ErrNotAuthenticated)
	}

	var selections []models.PlaylistSelection
	for _, ref := range cmd.StringSlice("playlist") {
		playlistID, err := services.ParsePlaylistURL(ref)
		if err != nil {
			return err
		}

		r.logger.Info("fetching playlist", "id", playlistID)
		playlist, tracks, err := spotify.PlaylistTracks(ctx, playlistID)
		if err != nil {
			return fmt.Errorf("failed to fetch playlist %s: %w", playlistID, err)
		}

		selections = append(selections, models.PlaylistSelection{
			Playlist: *playlist,
			Tracks:   tracks,
		})
	}

	deps, err := r.importDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.Reachability.Stop()

	manager, err := importer.NewManager(deps, selections)
	if err != nil {
		return fmt.Errorf("failed to create import: %w", err)
	}

	return r.consoleRun(ctx, manager)
}

// ImportResume resumes the interrupted import recorded in the state store.
func (r *Runner) ImportResume(ctx context.Context, cmd *cli.Command) error {
	r.loadConfigFlag(cmd)

	if err := r.openStore(); err != nil {
		return err
	}

	collectionID, ok, err := importer.ActiveCollectionID(r.state)
	if err != nil {
		return err
	}
	if !ok {
		r.writePlain("No interrupted import to resume.\n")
		return nil
	}

	deps, err := r.importDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.Reachability.Stop()

	manager, err := importer.Restore(deps, collectionID)
	if err != nil {
		return fmt.Errorf("failed to restore import: %w", err)
	}

	r.writePlain("Resuming import %s (%d/%d tracks done)\n",
		collectionID, manager.Progress().ProcessedTracks(), manager.Progress().TotalTracks())

	return r.consoleRun(ctx, manager)
}

// ImportRefresh re-imports the unmatched tracks of an existing import and
// picks up tracks newly added to the source playlist.
func (r *Runner) ImportRefresh(ctx context.Context, cmd *cli.Command) error {
	r.loadConfigFlag(cmd)

	importID := cmd.StringArg("import-id")
	if importID == "" {
		return fmt.Errorf("%w: import-id", shared.ErrMissingArgument)
	}

	spotify, err := r.spotifyClient()
	if err != nil {
		return err
	}
	if !spotify.Authenticated() {
		return fmt.Errorf("%w: run tunebridge spotify auth first", shared.ErrNotAuthenticated)
	}

	playlistImport, err := r.imports.GetImport(importID)
	if err != nil {
		return err
	}

	_, sourceTracks, err := spotify.PlaylistTracks(ctx, playlistImport.SourcePlaylist.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch source playlist: %w", err)
	}

	known := map[string]bool{}
	for _, track := range playlistImport.Tracks {
		known[track.ID] = true
	}

	var added []models.Track
	for _, track := range sourceTracks {
		if !known[track.ID] {
			added = append(added, track)
		}
	}

	deps, err := r.importDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.Reachability.Stop()

	manager, err := importer.NewRefresh(deps, []string{importID}, map[string][]models.Track{importID: added})
	if err != nil {
		return fmt.Errorf("failed to create refresh: %w", err)
	}

	r.writePlain("Refreshing %s: %d tracks to process (%d newly added)\n",
		playlistImport.SourcePlaylist.Name, manager.Progress().TotalTracks(), len(added))

	return r.consoleRun(ctx, manager)
}

// ImportList lists past imports, newest first.
func (r *Runner) ImportList(ctx context.Context, cmd *cli.Command) error {
	r.loadConfigFlag(cmd)

	if err := r.openStore(); err != nil {
		return err
	}

	imports, err := r.imports.ListImports()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(imports, cmd.Bool("pretty"))
	}

	if len(imports) == 0 {
		r.writePlain("No imports yet.\n")
		return nil
	}

	r.writePlain("Found %d imports:\n\n", len(imports))
	for i, playlistImport := range imports {
		r.writePlain("%d. %s\n", i+1, playlistImport.SourcePlaylist.Name)
		r.writePlain("   ID: %s\n", playlistImport.UUID)
		r.writePlain("   Date: %s\n", playlistImport.Date.Format("2006-01-02 15:04"))
		if playlistImport.DestinationPlaylist != nil {
			r.writePlain("   Destination: %s\n", playlistImport.DestinationPlaylist.Name)
		}
		r.writePlain("\n")
	}

	return nil
}

// ImportStatus shows per-track details of an import, or the active import
// when no ID is given.
func (r *Runner) ImportStatus(ctx context.Context, cmd *cli.Command) error {
	r.loadConfigFlag(cmd)

	if err := r.openStore(); err != nil {
		return err
	}

	importID := cmd.StringArg("import-id")
	if importID == "" {
		collectionID, ok, err := importer.ActiveCollectionID(r.state)
		if err != nil {
			return err
		}
		if !ok {
			r.writePlain("No active import. Pass an import ID to inspect a past import.\n")
			return nil
		}
		return r.collectionStatus(collectionID)
	}

	playlistImport, err := r.imports.GetImport(importID)
	if err != nil {
		return err
	}

	r.printImportStatus(playlistImport)
	return nil
}

func (r *Runner) collectionStatus(collectionID string) error {
	collection, err := r.imports.GetCollection(collectionID)
	if err != nil {
		return err
	}

	r.writePlain("Active import %s (%d playlists)\n", collection.UUID, len(collection.Imports))
	for i := range collection.Imports {
		r.printImportStatus(&collection.Imports[i])
	}
	return nil
}

func (r *Runner) printImportStatus(playlistImport *models.PlaylistImport) {
	r.writePlainHeader(playlistImport.SourcePlaylist.Name)

	counts := map[models.TrackStatus]int{}
	for _, track := range playlistImport.Tracks {
		counts[track.Status]++
	}

	r.writePlain("Tracks: %d found, %d not found, %d errors, %d pending\n",
		counts[models.StatusFound], counts[models.StatusNotFound],
		counts[models.StatusError], counts[models.StatusUnprocessed])

	for _, track := range playlistImport.Tracks {
		if track.Status == models.StatusFound || track.Status == models.StatusUnprocessed {
			continue
		}
		line := fmt.Sprintf("  ✗ %s - %s (%s)", track.Artist, track.Name, track.Status)
		if track.ErrorDescription != "" {
			line += ": " + track.ErrorDescription
		}
		r.writePlain("%s\n", line)
	}
}

// ImportDelete deletes an import and all its tracks.
func (r *Runner) ImportDelete(ctx context.Context, cmd *cli.Command) error {
	r.loadConfigFlag(cmd)

	importID := cmd.StringArg("import-id")
	if importID == "" {
		return fmt.Errorf("%w: import-id", shared.ErrMissingArgument)
	}

	if err := r.openStore(); err != nil {
		return err
	}

	if err := r.imports.DeleteImport(importID); err != nil {
		return err
	}

	r.writePlain("✓ Deleted import %s\n", importID)
	return nil
}

// ImportExport writes an import's results to CSV, Markdown, or plain text.
func (r *Runner) ImportExport(ctx context.Context, cmd *cli.Command) error {
	r.loadConfigFlag(cmd)

	importID := cmd.StringArg("import-id")
	if importID == "" {
		return fmt.Errorf("%w: import-id", shared.ErrMissingArgument)
	}

	if err := r.openStore(); err != nil {
		return err
	}

	playlistImport, err := r.imports.GetImport(importID)
	if err != nil {
		return err
	}

	output := cmd.String("output")

	switch format := cmd.String("format"); format {
	case "csv":
		result, err := formatter.WriteCSVExport(playlistImport, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported to %s and %s\n", result.TracksFile, result.MetadataFile)

	case "markdown", "md":
		coverURL := ""
		if len(playlistImport.Tracks) > 0 {
			coverURL = playlistImport.Tracks[0].AlbumCoverURL
		}
		result, err := formatter.WriteMarkdownExport(playlistImport, output, coverURL)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported to %s\n", result.Directory)

	case "text", "txt":
		written, err := formatter.WriteTextExport(playlistImport, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported to %s\n", written)

	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}

	return nil
}

// consoleRun drives an import with plain-text progress output.
func (r *Runner) consoleRun(ctx context.Context, manager *importer.Manager) error {
	r.writePlainHeader(manager.Progress().Current().Playlist.Name)

	onTrack := func(track *models.Track, last bool, err error) {
		switch {
		case track == nil && err != nil:
			r.writePlain("! %v\n", err)
		case track == nil:
		case track.Status == models.StatusFound:
			r.writePlain("✓ %s - %s\n", track.Artist, track.Name)
		case track.Status == models.StatusNotFound:
			r.writePlain("✗ %s - %s (no match)\n", track.Artist, track.Name)
		default:
			r.writePlain("! %s - %s: %s\n", track.Artist, track.Name, track.ErrorDescription)
		}
	}

	onPlaylist := func(playlist models.Playlist, last bool) {
		if !last {
			r.writePlainHeader(playlist.Name)
		}
	}

	runErr := manager.Run(ctx, onTrack, onPlaylist)

	progress := manager.Progress()
	found := 0
	for _, playlist := range progress.Playlists {
		for _, track := range playlist.Tracks {
			if track.Status == models.StatusFound {
				found++
			}
		}
	}

	switch manager.State() {
	case importer.StateFinished:
		r.writePlainln("✓ Import complete: %d/%d tracks imported", found, progress.TotalTracks())
	case importer.StatePausedManual:
		r.writePlainln("Import paused at %d/%d tracks. Run 'tunebridge import resume' to continue.",
			progress.ProcessedTracks(), progress.TotalTracks())
	default:
		r.writePlainln("Import stopped at %d/%d tracks. Run 'tunebridge import resume' to retry.",
			progress.ProcessedTracks(), progress.TotalTracks())
	}

	return runErr
}
