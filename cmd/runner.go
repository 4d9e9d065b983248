package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/listsync/internal/realtime"
	"github.com/desertthunder/listsync/internal/services"
	"github.com/desertthunder/listsync/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	api        *services.ListService
	dialer     realtime.Dialer
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        *services.ListService
	Dialer     realtime.Dialer
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
// Missing collaborators are built from the config.
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
	if opts.API == nil {
		opts.API = newListService(opts.Config)
	}
	if opts.Dialer == nil {
		opts.Dialer = newDialer(opts.Config.Realtime, opts.Config.API.AccessToken)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		api:        opts.API,
		dialer:     opts.Dialer,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func newListService(c *shared.Config) *services.ListService {
	return services.NewListService(services.Options{
		BaseURL:     c.API.BaseURL,
		AccessToken: c.API.AccessToken,
		RateLimit:   c.API.RateLimit,
		Timeout:     c.API.Timeout.Duration,
	})
}

// newDialer picks the realtime transport named in the config.
func newDialer(c shared.RealtimeConfig, token string) realtime.Dialer {
	if strings.EqualFold(c.Transport, "websocket") {
		d := &realtime.WebSocketDialer{}
		if token != "" {
			d.Header = http.Header{"Authorization": {"Bearer " + token}}
		}
		return d
	}

	d := &realtime.SocketIODialer{Path: c.Path}
	if token != "" {
		d.Auth = map[string]any{"token": token}
	}
	return d
}

// session opens the realtime session used by watch. The caller closes it.
func (r *Runner) session() *realtime.Session {
	rc := r.config.Realtime
	return realtime.NewSession(realtime.Options{
		Endpoint: rc.Endpoint,
		Dialer:   r.dialer,
		Backoff: realtime.Backoff{
			Initial:       rc.ReconnectDelay.Duration,
			Max:           rc.ReconnectDelayMax.Duration,
			Multiplier:    2,
			Randomization: rc.Randomization,
		},
		Logger:   r.logger,
		Listener: &statusListener{logger: shared.WithLogger(r.logger, "component", "watch")},
	})
}

// openCache opens the snapshot cache and applies pending migrations.
func (r *Runner) openCache() (*sql.DB, error) {
	db, err := shared.OpenCache(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return db, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, listsCommand, itemsCommand, shareCommand, watchCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
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

// writeResult prints v as JSON when --json is set, otherwise runs plain.
func (r *Runner) writeResult(cmd *cli.Command, v any, plain func() error) error {
	if cmd.Bool("json") {
		return r.writeJSON(v, cmd.Bool("pretty"))
	}
	return plain()
}
