package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	assetbiz "github.com/lk2023060901/signage-backend/internal/asset/biz"
	assetdata "github.com/lk2023060901/signage-backend/internal/asset/data"
	assetservice "github.com/lk2023060901/signage-backend/internal/asset/service"
	assignmentbiz "github.com/lk2023060901/signage-backend/internal/assignment/biz"
	assignmentdata "github.com/lk2023060901/signage-backend/internal/assignment/data"
	assignmentservice "github.com/lk2023060901/signage-backend/internal/assignment/service"
	"github.com/lk2023060901/signage-backend/internal/auth"
	"github.com/lk2023060901/signage-backend/internal/conf"
	"github.com/lk2023060901/signage-backend/internal/data"
	directorydata "github.com/lk2023060901/signage-backend/internal/directory/data"
	"github.com/lk2023060901/signage-backend/internal/media"
	"github.com/lk2023060901/signage-backend/internal/notify"
	"github.com/lk2023060901/signage-backend/internal/pkg/keylock"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/lk2023060901/signage-backend/internal/pkg/sse"
	"github.com/lk2023060901/signage-backend/internal/pkg/tracing"
	"github.com/lk2023060901/signage-backend/internal/pkg/workerpool"
	playlistbiz "github.com/lk2023060901/signage-backend/internal/playlist/biz"
	playlistdata "github.com/lk2023060901/signage-backend/internal/playlist/data"
	playlistservice "github.com/lk2023060901/signage-backend/internal/playlist/service"
	"github.com/lk2023060901/signage-backend/internal/server"
	"github.com/lk2023060901/signage-backend/internal/settings"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("config loaded successfully", zap.String("path", *configFile))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, &config.Tracing, log)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	d, cleanup, err := data.NewData(config, log)
	if err != nil {
		log.Fatal("failed to initialize data layer", zap.Error(err))
	}
	defer cleanup()

	// system_configs 优先, YAML 兜底
	settingsSource := settings.Layered{settings.NewDBSource(d.DB), config.SettingsDefaults()}
	limits, err := settings.LoadMediaLimits(ctx, settingsSource)
	if err != nil {
		log.Fatal("failed to load media settings", zap.Error(err))
	}
	volume, err := d.Volume(config, limits.StoragePath)
	if err != nil {
		log.Fatal("failed to initialize storage volume", zap.Error(err))
	}
	log.Info("storage volume ready", zap.String("backend", config.Media.Storage), zap.String("root", volume.Describe("")))

	pool, err := workerpool.New(&config.Worker, log)
	if err != nil {
		log.Fatal("failed to initialize worker pool", zap.Error(err))
	}

	var locker keylock.Locker = keylock.NewLocal()
	if config.Lock.Backend == conf.LockRedis {
		locker = keylock.NewRedis(d.Redis, config.Lock.Prefix, config.Lock.TTL, log)
	}

	hub := sse.NewHub()
	sinks := []notify.Sink{notify.NewHubSink(hub)}
	if d.Redis != nil {
		sinks = append(sinks, notify.NewRedisSink(d.Redis, config.Notifier.RedisPrefix))
	}
	notifier := notify.NewNotifier(&config.Notifier, log, sinks...)
	notifier.Start()

	// Repositories
	directoryRepo := directorydata.NewDirectoryRepo(d.DB)
	assetRepo := assetdata.NewAssetRepo(d.DB)
	linkRepo := playlistdata.NewLinkRepo(d.DB)
	assignmentRepo := assignmentdata.NewAssignmentRepo(d.DB)

	// Use cases
	catalog := assetbiz.NewAssetCatalogUseCase(assetRepo, directoryRepo)
	store := assetbiz.NewAssetStoreUseCase(assetbiz.StoreDeps{
		Repo:      assetRepo,
		Links:     linkRepo,
		Directory: directoryRepo,
		Tx:        d.DB,
		Volume:    volume,
		Settings:  settingsSource,
		Prober:    media.NewFFprobe(&config.Media.Tools),
		Extractor: media.NewFFmpeg(&config.Media.Tools),
		Pool:      pool,
		Locker:    locker,
		Publisher: notifier,
		Logger:    log.Named("asset"),
	})
	playlists := playlistbiz.NewPlaylistUseCase(linkRepo, catalog, directoryRepo, d.DB, locker, notifier, log.Named("playlist"))
	ledger := assignmentbiz.NewLedgerUseCase(assignmentRepo, directoryRepo, playlists, d.DB, locker, notifier,
		settingsSource, log.Named("assignment"))

	// Servers
	jwtManager := auth.NewJWTManager(config.Auth.JWTSecret, config.Auth.JWTIssuer, config.Auth.TokenTTL)
	httpServer := server.NewHTTPServer(config, log, jwtManager, d.DB, d.Redis,
		assetservice.NewAssetService(store, catalog, log),
		playlistservice.NewPlaylistService(playlists, hub, config.Server.SSEKeepAlive, log),
		assignmentservice.NewAssignmentService(ledger, log),
	)
	grpcServer := server.NewGRPCServer(config, log, d.DB)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpServer.Start)
	g.Go(grpcServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcServer.Stop()
		if err := httpServer.Stop(shutdownCtx); err != nil {
			log.Error("HTTP server forced to shutdown", zap.Error(err))
		}
		// 在途事件在关闭前投递完
		if err := notifier.Stop(shutdownCtx); err != nil {
			log.Warn("notifier stopped with pending events", zap.Error(err))
		}
		pool.Shutdown(shutdownTimeout)
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
		return nil
	})

	log.Info("servers started successfully")

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
		return
	}
	log.Info("servers exited")
}
