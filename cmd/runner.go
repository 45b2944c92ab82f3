package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/goals"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/player"
	"github.com/desertthunder/cadence/internal/repositories"
	"github.com/desertthunder/cadence/internal/scoring"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/similarity"
	"github.com/desertthunder/cadence/internal/sources"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    services.Catalog
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	resolver   *goals.Resolver
	expander   *sources.Expander
	history    *similarity.Guard
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    services.Catalog
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
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
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	overrides := make([]models.GoalDescriptor, len(opts.Config.Goals))
	for i, g := range opts.Config.Goals {
		overrides[i] = g.Descriptor()
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		resolver:   goals.NewResolver(overrides...),
	}
	r.expander = sources.NewExpander(opts.Config.Sources, opts.Logger)
	r.history = similarity.NewGuard(similarity.GuardOpts{
		HistoryLimit: opts.Config.Engine.HistoryLimit,
		Threshold:    opts.Config.Engine.RepetitionThreshold,
		Logger:       opts.Logger,
	})
	return r
}

// SetLogger replaces the logger used by the runner and the collaborators it creates.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, goalsCommand, sourcesCommand, tracksCommand, playCommand, sessionsCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// listenerID returns the --listener flag when set, otherwise the configured listener.
func (r *Runner) listenerID(cmd *cli.Command) string {
	if id := cmd.String("listener"); id != "" {
		return id
	}
	return r.config.Engine.ListenerID
}

// openDatabase opens the configured database and applies pending migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if r.config.Database.Path != ":memory:" {
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// offlineDatabase opens the database only when --offline is set; otherwise it returns nil.
func (r *Runner) offlineDatabase(cmd *cli.Command) (*sql.DB, error) {
	if !cmd.Bool("offline") {
		return nil, nil
	}
	return r.openDatabase()
}

// catalogFor returns the local library when --offline is set, otherwise the remote catalog.
func (r *Runner) catalogFor(cmd *cli.Command, db *sql.DB) (services.Catalog, error) {
	if cmd.Bool("offline") {
		if db == nil {
			return nil, fmt.Errorf("%w: offline mode needs the local database", shared.ErrServiceUnavailable)
		}
		return repositories.NewTrackRepository(db), nil
	}
	if r.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	return r.catalog, nil
}

// builderOpts wires the configured collaborators into [tasks.BuilderOpts].
func (r *Runner) builderOpts(catalog services.Catalog, cache tasks.TrackCacher) tasks.BuilderOpts {
	return tasks.BuilderOpts{
		Catalog:   catalog,
		Resolver:  r.resolver,
		Expander:  r.expander,
		Scorer:    scoring.NewEngine(scoring.EngineOpts{VADTolerance: r.config.Engine.VADTolerance, Logger: r.logger}),
		History:   r.history,
		Threshold: r.config.Engine.RepetitionThreshold,
		Cache:     cache,
		Logger:    r.logger,
	}
}

func (r *Runner) streamResolver() services.StreamResolver {
	return services.NewStreamResolver(r.config.Catalog.StreamBaseURL)
}

// newPlayer creates a playback engine over a headless probe output. Tracks that start
// playing are added to the listener's repetition history.
func (r *Runner) newPlayer(listener string) *player.Engine {
	out := player.NewProbeOutput(player.ProbeOutputOpts{
		Client:          r.httpClient,
		Logger:          r.logger,
		DefaultDuration: time.Duration(r.config.Engine.DefaultTrackSeconds) * time.Second,
	})
	engine := player.NewEngine(out, player.EngineOpts{
		Resolver:               r.streamResolver(),
		Logger:                 r.logger,
		MaxConsecutiveFailures: r.config.Engine.MaxConsecutiveFailures,
		AutoAdvance:            r.config.Engine.AutoAdvance,
		AutoPlay:               true,
	})
	engine.AddObserver(player.ObserverFunc(func(n player.Notice) {
		if n.Kind == player.TrackStarted {
			r.history.AddToHistory(n.Track, listener)
		}
	}))
	return engine
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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
