package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/MiteyIronPaw/selfoss/pkg/api"
	"github.com/MiteyIronPaw/selfoss/pkg/api/auth"
	"github.com/MiteyIronPaw/selfoss/pkg/config"
	"github.com/MiteyIronPaw/selfoss/pkg/lib/log"
	"github.com/MiteyIronPaw/selfoss/pkg/sources"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/github"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/hackernews"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/mastodon"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/reddit"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/rss"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/twitter"
	"github.com/MiteyIronPaw/selfoss/pkg/storage/memory"
	"github.com/MiteyIronPaw/selfoss/pkg/storage/postgres"
)

func main() {
	err := run()
	if err != nil {
		panic(err)
	}
}

func run() error {
	// A missing .env is fine, the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := log.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	ctx := context.Background()

	store, err := initStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize source store: %w", err)
	}

	registry := initRegistry(logger)

	promRegistry := prometheus.NewRegistry()
	metrics := sources.NewMetrics(promRegistry)

	orchestrator := sources.NewOrchestrator(
		logger,
		registry,
		store,
		memory.NewItemStore(),
		metrics,
		&cfg.Sources,
	)

	server, err := initServer(logger, cfg, registry, orchestrator, store, promRegistry)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := orchestrator.Run(ctx); err != nil {
			return fmt.Errorf("run orchestrator: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		if err := server.Start(); err != nil {
			return fmt.Errorf("start server: %w", err)
		}
		return nil
	})

	return group.Wait()
}

func initStore(ctx context.Context, cfg *config.Config) (sources.Store, error) {
	switch cfg.Storage {
	case "memory":
		return memory.NewSourceStore(), nil
	case "remote":
		return api.NewStoreClient(cfg.RemoteStoreURL, cfg.RemoteStoreAuth), nil
	default:
		db := postgres.NewDB(&cfg.DB)
		if err := db.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		return postgres.NewSourceRepository(db), nil
	}
}

func initRegistry(logger *zerolog.Logger) *spouts.Registry {
	registry := spouts.NewRegistry(logger)
	clientFactory := twitter.NewClientFactory(logger)

	register := func(desc spouts.Descriptor, factory spouts.Factory) {
		if err := registry.Register(desc, factory); err != nil {
			// Registration only fails on a programming error in the
			// compiled-in descriptors.
			panic(err)
		}
	}

	register(twitter.HomeTimelineDescriptor(), func() spouts.Spout { return twitter.NewHomeTimeline(clientFactory) })
	register(twitter.ListTimelineDescriptor(), func() spouts.Spout { return twitter.NewListTimeline(clientFactory) })
	register(rss.FeedDescriptor(), func() spouts.Spout { return rss.NewFeed(logger) })
	register(mastodon.AccountDescriptor(), func() spouts.Spout { return mastodon.NewAccount(logger) })
	register(reddit.SubredditDescriptor(), func() spouts.Spout { return reddit.NewSubreddit(logger) })
	register(hackernews.PostsDescriptor(), func() spouts.Spout { return hackernews.NewPosts(logger) })
	register(github.ReleasesDescriptor(), func() spouts.Spout { return github.NewReleases(logger) })

	registry.RegisterPresetFetcher(&rss.PresetFetcher{})
	registry.RegisterPresetFetcher(&hackernews.PresetFetcher{})

	return registry
}

func initServer(
	logger *zerolog.Logger,
	cfg *config.Config,
	registry *spouts.Registry,
	orchestrator *sources.Orchestrator,
	store sources.Store,
	promRegistry *prometheus.Registry,
) (*api.Server, error) {
	sessions := auth.NewSessionAuthProvider(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)

	authMiddleware := auth.NewRouteAuthMiddleware(&auth.AuthConfig{
		Provider: sessions,
		Required: true,
	})
	authMiddleware.SetRouteAuth("POST /login", auth.AuthConfig{})
	authMiddleware.SetRouteAuth("GET /metrics", auth.AuthConfig{})

	apiKeys, err := cfg.Auth.ParseAPIKeys()
	if err != nil {
		return nil, fmt.Errorf("parse API keys: %w", err)
	}
	if len(apiKeys) > 0 {
		keys := auth.NewKeyAuthProvider(apiKeys)
		// Machine clients sync source records with bearer keys instead
		// of a browser session.
		authMiddleware.SetRouteAuthProvider("PUT /sources/{id}", keys, true)
	}

	metricsHandler := promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})

	server := api.NewServer(
		logger,
		&cfg.API,
		&cfg.Auth,
		authMiddleware,
		sessions,
		registry,
		orchestrator,
		store,
		metricsHandler,
	)

	return server, nil
}
