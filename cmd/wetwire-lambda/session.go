package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-lambda-go"
	"github.com/lex00/wetwire-lambda-go/internal/bundle"
	"github.com/lex00/wetwire-lambda-go/internal/config"
	"github.com/lex00/wetwire-lambda-go/internal/stack"
	"github.com/lex00/wetwire-lambda-go/internal/synth"
	"github.com/lex00/wetwire-lambda-go/internal/template"
)

// session carries what every command needs: settings, a logger and the
// stack being worked on.
type session struct {
	cfg    *config.Config
	arch   bundle.Arch
	logger *slog.Logger
	stack  *stack.Stack
	path   string
}

// newSession loads settings and the stack named by args (default
// stack.yaml).
func newSession(cmd *cobra.Command, args []string) (*session, error) {
	configFile, _ := cmd.Flags().GetString("config")
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(config.Options{ConfigFile: configFile, EnvFiles: envFiles})
	if err != nil {
		return nil, err
	}
	logger := newLogger(verbose || cfg.Verbose)
	if cfg.File != "" {
		logger.Debug("loaded settings", "file", cfg.File)
	}

	arch, err := bundle.ParseArch(cfg.Arch)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	path := stack.DefaultFile
	if len(args) > 0 {
		path = args[0]
	}
	s, err := stack.Load(path)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, arch: arch, logger: logger, stack: s, path: path}, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// signalContext is cancelled on SIGINT or SIGTERM, which stops a running
// build container.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// bundler connects to the local Docker daemon. The returned close function
// releases the client.
func (s *session) bundler(ctx context.Context) (synth.Bundler, func(), error) {
	env, err := bundle.NewDockerEnvironment(s.logger)
	if err != nil {
		return nil, nil, err
	}
	if err := env.CheckDaemon(ctx); err != nil {
		_ = env.Close()
		return nil, nil, err
	}
	env.SkipPull = s.cfg.SkipPull
	b := bundle.New(env, bundle.WithTimeout(s.cfg.BuildTimeout), bundle.WithLogger(s.logger))
	return b, func() { _ = env.Close() }, nil
}

// synthesize bundles and emits the whole stack.
func (s *session) synthesize(ctx context.Context) (*synth.Result, error) {
	b, closeFn, err := s.bundler(ctx)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return synth.Run(ctx, s.stack, s.synthOptions(b))
}

// discardArtifacts removes the staging directories of a finished pass.
func (s *session) discardArtifacts(res *synth.Result) {
	if err := res.Cleanup(); err != nil {
		s.logger.Warn("failed to remove staged artifacts", "error", err)
	}
}

func (s *session) synthOptions(b synth.Bundler) synth.Options {
	return synth.Options{
		Bundler: b,
		Lookup:  config.EnvLookup(),
		Arch:    s.arch,
		Logger:  s.logger,
	}
}

func (s *session) templateOptions(export bool) template.Options {
	return template.Options{
		Description:   s.stack.Description,
		AssetBucket:   s.cfg.AssetBucket,
		ExportOutputs: export,
	}
}

// encodeTemplate encodes t as json or yaml.
func encodeTemplate(t *wetwire.Template, format string) ([]byte, error) {
	switch format {
	case "json":
		return template.ToJSON(t)
	case "yaml":
		return template.ToYAML(t)
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

// writeOutput prints data, or writes it to file when one is given.
func writeOutput(data []byte, file string) error {
	if file == "" {
		fmt.Println(string(data))
		return nil
	}
	return os.WriteFile(file, data, 0644)
}
