package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tunebridge/tunebridge/internal/importer"
	"github.com/tunebridge/tunebridge/internal/matchcache"
	"github.com/tunebridge/tunebridge/internal/repositories"
	"github.com/tunebridge/tunebridge/internal/services"
	"github.com/tunebridge/tunebridge/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer

	db      *sql.DB
	imports *repositories.ImportRepository
	state   *repositories.StateRepository
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
	DB     *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}

	if opts.DB != nil {
		r.attachDB(opts.DB)
	}

	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, spotifyCommand, appleMusicCommand, importCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) attachDB(db *sql.DB) {
	r.db = db
	r.imports = repositories.NewImportRepository(db)
	r.state = repositories.NewStateRepository(db)
}

// loadConfigFlag reloads the runner's config when a non-default --config path
// is given. The default config.toml is already loaded by main.
func (r *Runner) loadConfigFlag(cmd *cli.Command) {
	configPath := cmd.String("config")
	if configPath == "" || configPath == "config.toml" {
		return
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		r.logger.Warn("failed to load config, keeping current", "path", configPath, "error", err)
		return
	}
	r.config = config
}

// openStore opens the configured database, runs migrations, and prepares the
// repositories. Safe to call more than once.
func (r *Runner) openStore() error {
	if r.db != nil {
		return nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.attachDB(db)
	return nil
}

// spotifyClient builds the Spotify source client on top of the state store.
func (r *Runner) spotifyClient() (*services.SpotifyService, error) {
	if err := r.openStore(); err != nil {
		return nil, err
	}
	return services.NewSpotifyService(r.config.Credentials.Spotify, r.state)
}

// appleMusicClient builds the Apple Music destination client.
func (r *Runner) appleMusicClient() (*services.AppleMusicService, error) {
	if err := r.openStore(); err != nil {
		return nil, err
	}
	tokens := services.NewDeveloperTokenSource(r.config.Credentials.AppleMusic, r.state, r.logger)
	return services.NewAppleMusicService(r.config.Credentials.AppleMusic, tokens, r.logger), nil
}

// importDeps assembles the import loop's collaborators: an authenticated
// destination client, the resolver, the community match cache, and the
// network prober. Callers must Stop the returned Reachability when done.
func (r *Runner) importDeps(ctx context.Context) (importer.Deps, error) {
	destination, err := r.appleMusicClient()
	if err != nil {
		return importer.Deps{}, err
	}

	if err := destination.Authenticate(ctx); err != nil {
		return importer.Deps{}, fmt.Errorf("apple music authentication failed: %w", err)
	}

	return importer.Deps{
		Imports:      r.imports,
		State:        r.state,
		Destination:  destination,
		Resolver:     services.NewResolver(destination, r.logger),
		Cache:        matchcache.FromConfig(r.config.MatchCache.BaseURL, r.config.MatchCache.Enabled, r.logger),
		Reachability: r.reachability(),
		Logger:       r.logger,
	}, nil
}

func (r *Runner) reachability() importer.Reachability {
	if r.config.Network.ProbeURL == "" {
		return importer.AlwaysReachable{}
	}

	interval := time.Duration(r.config.Network.ProbeIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return importer.NewProber(r.config.Network.ProbeURL, interval, r.logger)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
