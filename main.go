package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"docsummary/internal/api"
	"docsummary/internal/config"
	"docsummary/internal/extract"
	"docsummary/internal/format"
	"docsummary/internal/pipeline"
	"docsummary/internal/redis"
	"docsummary/internal/service/assistant"
	"docsummary/internal/staging"
	"docsummary/internal/storage"
	"docsummary/internal/worker"
)

func main() {
	summarize := flag.String("summarize", "", "summarize a local file and exit")
	mediaType := flag.String("type", "", "declared media type for -summarize (default: from extension)")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("DOCSUMMARY_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.BasicConfig.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *summarize != "" {
		if err := runOnce(ctx, cfg, logger, *summarize, *mediaType); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// buildPipeline wires the orchestrator with the optional abstract and
// audit recorder.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, recorder pipeline.Recorder) (*pipeline.Orchestrator, error) {
	pcfg := pipeline.Config{
		Dispatcher: extract.DefaultDispatcher(logger),
		Logger:     logger,
		Recorder:   recorder,
	}
	abstracter, err := assistant.NewAbstracter(ctx, cfg.Abstract, cfg.Providers, logger)
	if err != nil {
		return nil, fmt.Errorf("init abstract: %w", err)
	}
	if abstracter != nil {
		pcfg.Abstracter = abstracter
	}
	return pipeline.New(pcfg)
}

func runOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger, path, mediaType string) error {
	if mediaType == "" {
		mediaType = format.FromExtension(filepath.Ext(path))
	}
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	store, err := staging.NewStore(cfg.BasicConfig.UploadDir)
	if err != nil {
		return err
	}
	staged, err := store.Stage(src, cfg.MaxUploadBytes())
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}

	orch, err := buildPipeline(ctx, cfg, logger, nil)
	if err != nil {
		_ = staged.Release()
		return err
	}
	res, err := orch.Process(ctx, pipeline.UploadedFile{
		OriginalName: filepath.Base(path),
		MediaType:    mediaType,
		Size:         staged.Size(),
		Content:      staged,
	})
	if err != nil {
		if pe, ok := pipeline.AsError(err); ok {
			return errors.New(pe.Message)
		}
		return err
	}
	fmt.Print(res.Summary)
	if res.Abstract != "" {
		fmt.Printf("\nAbstract:\n%s\n", res.Abstract)
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var (
		recorder pipeline.Recorder
		uploads  api.UploadLister
	)
	if cfg.Database.Driver != "" {
		db, err := storage.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := storage.Migrate(db, cfg.Database.Driver); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		store := storage.NewUploadStore(db)
		recorder, uploads = store, store
		logger.Info("upload audit log enabled", "driver", cfg.Database.Driver)
	}

	// rate_limit <= 0 disables limiting
	var limiter api.Limiter
	switch {
	case cfg.BasicConfig.RateLimit <= 0:
	case cfg.Redis.Enabled:
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			return fmt.Errorf("create redis client: %w", err)
		}
		defer rdb.Close()
		rl, err := redis.NewLimiter(rdb, cfg.BasicConfig.RateLimit, cfg.RateWindow())
		if err != nil {
			return fmt.Errorf("create redis limiter: %w", err)
		}
		limiter = rl
	default:
		limiter = api.NewMemoryLimiter(cfg.BasicConfig.RateLimit, cfg.RateWindow())
	}

	store, err := staging.NewStore(cfg.BasicConfig.UploadDir)
	if err != nil {
		return err
	}
	store.StartSweeper(ctx, cfg.CleanInterval(), cfg.StaleUploadAge(), logger)

	orch, err := buildPipeline(ctx, cfg, logger, recorder)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(api.Options{
		Processor:      orch,
		Staging:        store,
		Gate:           worker.NewGate(cfg.BasicConfig.MaxConcurrent, 0),
		Limiter:        limiter,
		Uploads:        uploads,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		StaticDir:      cfg.BasicConfig.StaticDir,
		Logger:         logger,
	})
	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
