package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	blobcore "kittycore/internal/blob/core"
	"kittycore/internal/config"
	"kittycore/internal/core"
	"kittycore/internal/logging"
	"kittycore/internal/telemetry"
	"kittycore/pkg/domain"
)

type app struct {
	stdout io.Writer
	stderr io.Writer

	openStore   func(context.Context, config.Storage) (domain.PersistentStore, error)
	openArchive func(context.Context, config.Archive) (blobcore.Store, error)

	configPath string
	seed       string
	index      uint32
	sequence   uint64
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:      stdout,
		stderr:      stderr,
		openStore:   core.OpenPersistentStore,
		openArchive: core.OpenArchiveStore,
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "kittyctl",
		Short:         "kittyctl manages a kittycore creature registry",
		Long:          `kittyctl creates and breeds creatures, inspects the registry and archives snapshots.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "kittycore.yaml", "Path to the YAML configuration file")
	flags.StringVar(&a.seed, "seed", "", "Hex entropy seed (defaults to the configured seed)")
	flags.Uint32Var(&a.index, "index", 0, "Operation index within the current batch")
	flags.Uint64Var(&a.sequence, "sequence", 0, "Batch sequence number")

	root.AddCommand(
		a.createCommand(),
		a.breedCommand(),
		a.showCommand(),
		a.statsCommand(),
		a.archiveCommand(),
		a.restoreCommand(),
	)
	return root
}

// session holds everything one command invocation needs.
type session struct {
	cfg      config.Config
	logger   core.Logger
	store    domain.PersistentStore
	service  *core.Service
	metrics  *prometheus.Registry
	shutdown func(context.Context) error
}

func (a *app) open(ctx context.Context) (*session, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithWriter(a.stderr, level, format)

	entropy, err := a.entropy(cfg)
	if err != nil {
		return nil, err
	}
	opts := []core.ServiceOption{
		core.WithLogger(logger),
		core.WithAuditRecorder(core.LoggerAuditRecorder{Logger: logger}),
	}
	s := &session{cfg: cfg, logger: logger}

	if cfg.Telemetry.MetricsFile != "" {
		s.metrics = prometheus.NewRegistry()
		recorder, err := core.NewPrometheusMetricsRecorder(s.metrics)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, core.WithMetricsRecorder(recorder))
	}
	provider, shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.OTelEndpoint)
	if err != nil {
		return nil, err
	}
	s.shutdown = shutdown
	if provider != nil {
		opts = append(opts, core.WithTracer(core.NewOTelTracer(provider)))
	}

	store, err := a.openStore(ctx, cfg.Storage)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	s.store = store
	s.service = core.NewService(store, domain.FixedRandomness{Entropy: entropy}, opts...)
	return s, nil
}

// Close releases the store, flushes spans and writes the metrics file.
func (s *session) Close(ctx context.Context) {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close store", "error", err)
	}
	if err := s.shutdown(ctx); err != nil {
		s.logger.Warn("flush traces", "error", err)
	}
	if s.metrics != nil {
		if err := prometheus.WriteToTextfile(s.cfg.Telemetry.MetricsFile, s.metrics); err != nil {
			s.logger.Warn("write metrics", "path", s.cfg.Telemetry.MetricsFile, "error", err)
		}
	}
}

func (a *app) entropy(cfg config.Config) (domain.Entropy, error) {
	seed := cfg.Seed
	if a.seed != "" {
		seed = a.seed
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(seed, "0x"))
	if err != nil {
		return domain.Entropy{}, fmt.Errorf("invalid seed %q: %w", seed, err)
	}
	return domain.Entropy{Seed: raw, OperationIndex: a.index, Sequence: a.sequence}, nil
}

// withSession opens a session for the duration of fn.
func (a *app) withSession(cmd *cobra.Command, fn func(*session) error) error {
	s, err := a.open(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close(cmd.Context())
	return fn(s)
}
