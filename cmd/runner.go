package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/labeltree/internal/formatter"
	"github.com/desertthunder/labeltree/internal/metrics"
	"github.com/desertthunder/labeltree/internal/queue"
	"github.com/desertthunder/labeltree/internal/repositories"
	"github.com/desertthunder/labeltree/internal/server"
	"github.com/desertthunder/labeltree/internal/services"
	"github.com/desertthunder/labeltree/internal/shared"
	"github.com/desertthunder/labeltree/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	musicbrainz *services.MusicBrainzService
	session     *services.Session
	spotify     *services.SpotifyService
	runs        *repositories.ExportRunRepository
	metrics     *metrics.Metrics
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	now         func() time.Time
	openBrowser func(url string) error

	db       *sql.DB
	listener *server.Listener
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Services left nil are built from the configuration when the first command runs.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	MusicBrainz *services.MusicBrainzService
	Session     *services.Session
	Spotify     *services.SpotifyService
	Runs        *repositories.ExportRunRepository
	Metrics     *metrics.Metrics
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Now         func() time.Time
	OpenBrowser func(url string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		musicbrainz: opts.MusicBrainz,
		session:     opts.Session,
		spotify:     opts.Spotify,
		runs:        opts.Runs,
		metrics:     opts.Metrics,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		now:         opts.Now,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, artistCommand, labelCommand, releaseCommand, playlistCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration and wires the services shared by every command.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if path := cmd.String("config"); path != "" && r.configPath == "" {
		r.configPath = path
	}
	if r.config == nil {
		r.config = r.loadConfig()
	}

	if err := r.init(); err != nil {
		return ctx, err
	}

	if addr := cmd.String("metrics-addr"); addr != "" {
		if err := r.serveMetrics(addr); err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

// After releases what [Runner.Before] acquired.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	if r.listener != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.listener.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down metrics server", "error", err)
		}
	}
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Runner) loadConfig() *shared.Config {
	if r.configPath == "" {
		return shared.DefaultConfig()
	}
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		return shared.DefaultConfig()
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		return shared.DefaultConfig()
	}
	return config
}

// init builds the services not supplied through [RunnerOpts].
func (r *Runner) init() error {
	if r.musicbrainz == nil || r.runs == nil {
		db, err := shared.OpenCache(r.config.Cache)
		if err != nil {
			return fmt.Errorf("failed to open response cache: %w", err)
		}
		r.db = db

		if r.runs == nil {
			r.runs = repositories.NewExportRunRepository(db)
		}
		if r.musicbrainz == nil {
			store := repositories.NewResponseCacheRepository(db, r.config.MusicBrainz.CacheTTL(), r.metrics)
			r.musicbrainz = services.NewMusicBrainzService(services.MusicBrainzOptions{
				Config:     r.config.MusicBrainz,
				HTTPClient: r.httpClient,
				Store:      store,
				Logger:     r.logger,
				Metrics:    r.metrics,
			})
		}
	}

	if r.session == nil {
		session, err := services.NewSession(r.config.Credentials.Spotify)
		if err != nil {
			r.logger.Debug("spotify not configured", "error", err)
			return nil
		}
		r.session = session
	}
	r.session.OnTokenRefresh(r.saveToken)
	r.session.OnReauthorize(r.reauthorize)

	if r.spotify == nil {
		policy := services.DefaultRetryPolicy()
		if n := r.config.Spotify.MaxAttempts; n > 0 {
			policy.MaxAttempts = n
		}
		if d := r.config.Spotify.MaxBackoff(); d > 0 {
			policy.MaxDelay = d
		}

		svc, err := services.NewSpotifyService(services.SpotifyOptions{
			Session:    r.session,
			HTTPClient: r.httpClient,
			Queue: queue.New(queue.Options{
				Name:     "spotify",
				Interval: r.config.Spotify.Interval(),
				Logger:   r.logger,
				Metrics:  r.metrics,
			}),
			Retry:   policy,
			Logger:  r.logger,
			Metrics: r.metrics,
		})
		if err != nil {
			return fmt.Errorf("failed to create Spotify service: %w", err)
		}
		r.spotify = svc
	}
	return nil
}

// reauthorize sends the user through the authorization redirect again after the API rejected
// the saved token. The URL is logged when no browser can be opened.
func (r *Runner) reauthorize(authURL string) {
	r.logger.Warn("spotify authorization expired, opening browser to reauthorize")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warn("could not open browser, visit the URL or run `labeltree auth spotify`", "url", authURL, "error", err)
	}
}

// CancelPending rejects every queued upstream request that has not started yet.
func (r *Runner) CancelPending() int {
	n := 0
	if r.musicbrainz != nil {
		n += r.musicbrainz.Queue().Clear()
	}
	if r.spotify != nil {
		n += r.spotify.Queue().Clear()
	}
	return n
}

// saveToken persists a refreshed or newly exchanged token to the config file.
func (r *Runner) saveToken(tok *oauth2.Token) {
	if r.configPath == "" {
		return
	}
	if err := r.config.Credentials.Spotify.Update(tok); err != nil {
		r.logger.Warn("failed to update spotify configuration", "error", err)
		return
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		r.logger.Warn("failed to save config", "error", err)
	}
}

func (r *Runner) serveMetrics(addr string) error {
	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(server.NewMetricsHandler(r.metrics.Registry))

	l, err := server.Listen(addr, router)
	if err != nil {
		return err
	}
	r.listener = l
	r.logger.Info("serving metrics", "addr", l.Addr())
	return nil
}

// progress starts a consumer logging every update. The returned stop func closes the
// channel and waits for the consumer to drain it.
func (r *Runner) progress() (chan<- tasks.ProgressUpdate, func()) {
	ch := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range ch {
			r.logger.Info(update.Message, "phase", update.Phase)
		}
	}()
	return ch, func() {
		close(ch)
		<-done
	}
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

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// emit writes rendered output to path, or to the runner's output when path is empty.
func (r *Runner) emit(data []byte, path string) error {
	if path == "" {
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if err := formatter.WriteFile(path, data); err != nil {
		return err
	}
	r.logger.Info("output written", "path", path)
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) requireSpotify() error {
	if r.spotify == nil {
		return fmt.Errorf("%w: set credentials.spotify in %s", shared.ErrMissingCredentials, r.configPath)
	}
	if !r.spotify.Session().Authenticated() {
		return fmt.Errorf("%w: run `labeltree auth spotify` first", shared.ErrNotAuthenticated)
	}
	return nil
}
