package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ferry/internal/backend"
	"ferry/internal/backend/clouddrive"
	"ferry/internal/backend/drive115"
	"ferry/internal/config"
	"ferry/internal/daemon"
	"ferry/internal/engine"
	"ferry/internal/folder"
	"ferry/internal/history"
	"ferry/internal/logging"
	"ferry/internal/media"
	"ferry/internal/metrics"
	"ferry/internal/nullbr"
	"ferry/internal/resolver"
	"ferry/internal/router"
	"ferry/internal/sessioncache"
	"ferry/internal/sharelink"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configFlag := flag.String("config", "", "configuration file path")
	flag.Parse()

	cfg, cfgPath, _, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr", filepath.Join(cfg.Paths.LogDir, "ferryd.log")},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	logger.Info("configuration loaded", logging.String("path", cfgPath))

	store, err := history.Open(cfg.Paths.DataDir)
	if err != nil {
		logger.Error("open history store", logging.Error(err))
		return
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	searcher, err := nullbr.New(cfg.Nullbr.AppID, cfg.Nullbr.APIKey, cfg.Nullbr.BaseURL,
		nullbr.WithTimeout(time.Duration(cfg.Nullbr.TimeoutSeconds)*time.Second),
		nullbr.WithRateLimit(cfg.Nullbr.RatePerSecond),
	)
	if err != nil {
		logger.Error("build search client", logging.Error(err))
		return
	}

	parser, err := sharelink.NewParser(cfg.Share.Domains)
	if err != nil {
		logger.Error("build share parser", logging.Error(err))
		return
	}

	routerOpts := router.Options{
		Parser:      parser,
		SavePath:    cfg.Drive115.SavePath,
		CloudPath:   cfg.CloudDrive.SavePath,
		OfflinePath: cfg.CloudDrive.OfflinePath,
		Metrics:     collector,
	}
	var queue backend.OfflineQueuer
	if cfg.Drive115Configured() {
		receiver, err := drive115.New(cfg.Drive115.Cookies, logger)
		if err != nil {
			logger.Error("build 115 client", logging.Error(err))
			return
		}
		routerOpts.Receiver = receiver
		routerOpts.Folders = folder.New(receiver, logger)
	}
	if cfg.CloudDriveConfigured() {
		client, err := clouddrive.New(cfg.CloudDrive.URL, clouddrive.Credential{
			APIToken: cfg.CloudDrive.APIToken,
			Username: cfg.CloudDrive.Username,
			Password: cfg.CloudDrive.Password,
		}, logger, clouddrive.WithTimeouts(
			time.Duration(cfg.CloudDrive.ConnectTimeoutSeconds)*time.Second,
			time.Duration(cfg.CloudDrive.RequestTimeoutSeconds)*time.Second,
		))
		if err != nil {
			logger.Error("build clouddrive client", logging.Error(err))
			return
		}
		routerOpts.Queue = client
		queue = client
	}

	eng, err := engine.New(engine.Options{
		Searcher:             searcher,
		Cache:                sessioncache.New(),
		Resolver:             resolver.New(logger),
		Router:               router.New(routerOpts, logger),
		History:              store,
		Metrics:              collector,
		Queue:                queue,
		Order:                media.ParsePriority(cfg.Resources.Priority),
		Enabled:              enabledFunc(cfg),
		OfflinePath:          cfg.CloudDrive.OfflinePath,
		CloudDriveConfigured: cfg.CloudDriveConfigured(),
		Drive115Configured:   cfg.Drive115Configured(),
	}, logger)
	if err != nil {
		logger.Error("build engine", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, eng, registry, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	d.Stop()
}

func enabledFunc(cfg *config.Config) func(media.ResourceType) bool {
	return func(t media.ResourceType) bool {
		switch t {
		case media.ResourceShare:
			return cfg.Resources.EnableShare
		case media.ResourceMagnet:
			return cfg.Resources.EnableMagnet
		case media.ResourceED2K:
			return cfg.Resources.EnableED2K
		case media.ResourceStream:
			return cfg.Resources.EnableStream
		default:
			return false
		}
	}
}
