package main

import (
	"errors"
	"flag"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"sportnews/internal/config"
	"sportnews/internal/media"
	"sportnews/internal/server"
	"sportnews/internal/store"
	"sportnews/internal/vk"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	setupLogging(cfg.Logging.Level)

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := store.Init(db); err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		log.Fatal(err)
	}

	storage := media.NewStorage(cfg.Upload.Dir)
	downloader := media.NewDownloader(storage, cfg.APITimeout())
	normalizer := vk.NewNormalizer(downloader, cfg.Location())
	client := vk.NewClient(cfg, normalizer)
	refresher := vk.NewRefresher(db, client)

	app := server.New(db, cfg, storage, refresher)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("sportnews running", "addr", srv.Addr, "db", cfg.Database.Path, "uploads", cfg.Upload.Dir)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// loadConfig reads the config file when it exists and falls back to defaults
// when it does not. Any other read or validation failure is fatal.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("config file not found, using defaults", "path", path)

		return config.Default(), nil
	}

	return nil, err
}

func setupLogging(level string) {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slogLevel(level),
	})
	slog.SetDefault(slog.New(handler))
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
