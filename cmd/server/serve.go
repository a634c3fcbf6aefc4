package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voip_chat/internal/config"
	"voip_chat/internal/model"
	"voip_chat/internal/repository/message"
	"voip_chat/internal/repository/roster"
	redisSvc "voip_chat/internal/service/redis"
	"voip_chat/internal/service/server"
)

const dependencyTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start accepting client connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	entries, closeRoster, err := openRoster(ctx, cfg)
	if err != nil {
		return err
	}
	closeRoster()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := server.New(entries, store, server.Options{
		Address:       cfg.ListenAddress,
		AdminAddress:  cfg.AdminAddress,
		MaxFrameSize:  cfg.MaxFrameSize,
		SweepInterval: cfg.SweepInterval,
		Logger:        logger,
		OnCallRequest: func(caller, callee model.RosterEntry) {
			logger.Info("incoming call", zap.String("caller", caller.Username), zap.String("callee", callee.Username))
		},
	})
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down", zap.Duration("grace", cfg.ShutdownGracePeriod))

	done := make(chan struct{})
	go func() {
		srv.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.ShutdownGracePeriod):
		logger.Warn("graceful shutdown timed out")
	}
	return nil
}

// openRoster loads the allow-list from the configured source. The returned func releases
// any connection the loader holds.
func openRoster(ctx context.Context, cfg config.Config) (*model.Roster, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, dependencyTimeout)
	defer cancel()

	switch cfg.Roster.Source {
	case config.SourceMongo:
		loader, closeFn, err := mongoLoader(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		r, err := roster.Load(ctx, loader)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		return r, closeFn, nil
	default:
		r, err := roster.Load(ctx, roster.NewFileLoader(cfg.Roster.Path))
		if err != nil {
			return nil, nil, err
		}
		return r, func() {}, nil
	}
}

func mongoLoader(ctx context.Context, cfg config.Config) (*roster.MongoLoader, func(), error) {
	client, err := roster.ConnectMongo(ctx, cfg.Roster.MongoURI)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	loader := roster.NewMongoLoader(client.Database(cfg.Roster.MongoDatabase), cfg.Roster.MongoCollection)
	return loader, func() {
		ctx, cancel := context.WithTimeout(context.Background(), dependencyTimeout)
		defer cancel()
		_ = client.Disconnect(ctx)
	}, nil
}

func openStore(ctx context.Context, cfg config.Config) (message.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		ctx, cancel := context.WithTimeout(ctx, dependencyTimeout)
		defer cancel()
		rdb, err := redisSvc.Dial(ctx, redisSvc.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return message.NewRedisStore(rdb), nil
	default:
		return message.NewFileStore(cfg.Store.Path)
	}
}
