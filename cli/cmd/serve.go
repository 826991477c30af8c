package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/criteria/internal/api"
	"github.com/fluxbase-eu/criteria/internal/config"
	"github.com/fluxbase-eu/criteria/internal/criteria"
	"github.com/fluxbase-eu/criteria/internal/metadata"
	"github.com/fluxbase-eu/criteria/internal/resource"
	"github.com/fluxbase-eu/criteria/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	setupLogging(cfg.Logging)

	registry, resources, err := buildRegistries(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	var opts []criteria.Option
	if cfg.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parsing redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		ttl := time.Duration(cfg.Redis.TTLSeconds) * time.Second
		opts = append(opts, criteria.WithCacheStore(metadata.NewRedisStore(client, "", ttl)))
		log.Info().Msg("using redis metadata cache")
	}

	crit := criteria.New(registry, resources, cfg.Criteria, opts...)
	repo := store.NewRepository(pool, crit, registry)
	rest := api.NewRestHandler(repo, resources, cfg.API)
	server := api.NewServer(cfg.API, rest)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		return server.Shutdown()
	}
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// buildRegistries turns the declarative model and resource sections of
// the config into the runtime registries.
func buildRegistries(cfg *config.Config) (*metadata.Registry, *resource.Registry, error) {
	registry := metadata.NewRegistry()
	for _, mc := range cfg.Models {
		relations := make([]metadata.Relation, 0, len(mc.Relations))
		for _, rc := range mc.Relations {
			relations = append(relations, metadata.Relation{
				Name:       rc.Name,
				Target:     rc.Target,
				Kind:       metadata.RelationKind(rc.Kind),
				ForeignKey: rc.ForeignKey,
				LocalKey:   rc.LocalKey,
			})
		}
		err := registry.Register(&metadata.Model{
			Name:       mc.Name,
			Table:      mc.Table,
			PrimaryKey: mc.PrimaryKey,
			Columns:    mc.Columns,
			Relations:  relations,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("registering model %s: %w", mc.Name, err)
		}
	}

	resources := resource.NewRegistry()
	for _, rc := range cfg.Resources {
		err := resources.Register(&resource.Resource{
			Name:   rc.Name,
			Model:  rc.Model,
			Fields: rc.Fields,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("registering resource %s: %w", rc.Name, err)
		}
	}
	log.Info().Int("models", len(cfg.Models)).Int("resources", len(cfg.Resources)).Msg("registries loaded")
	return registry, resources, nil
}
