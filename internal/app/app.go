package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/TeamViewMore/Poksin-Webcam/internal/config"
	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
	"github.com/TeamViewMore/Poksin-Webcam/internal/repository"
	"github.com/TeamViewMore/Poksin-Webcam/internal/repository/postgres"
	"github.com/TeamViewMore/Poksin-Webcam/internal/repository/sqlite"
	"github.com/TeamViewMore/Poksin-Webcam/internal/route"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/ai"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/annotate"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/auth"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/capture"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/evidence"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/notify"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/pipeline"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/storage"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/websocket"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	categories model.Categories
	hubService *websocket.HubService
	mqtt       *notify.MQTTEmitter
	manager    *pipeline.Manager
	server     *http.Server
	closers    []func() error
}

// Stores holds the opened repositories and the function releasing them.
type Stores struct {
	Evidence   repository.EvidenceRepository
	Categories repository.CategoryRepository
	Close      func() error
}

// OpenStores connects the postgres backend when DATABASE_URL is set and the
// sqlite file at DB_PATH otherwise. Both create their schema on open.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	if cfg.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Evidence:   postgres.NewEvidenceRepository(db),
			Categories: postgres.NewCategoryRepository(db),
			Close:      func() error { db.Close(); return nil },
		}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Evidence:   sqlite.NewEvidenceRepository(db),
		Categories: sqlite.NewCategoryRepository(db),
		Close:      db.Close,
	}, nil
}

// OpenObjectStore returns the configured object storage backend.
func OpenObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.StorageBackend {
	case "s3":
		return storage.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region)
	case "local":
		return storage.NewLocalStore(cfg.MediaDirectory(), "/media"), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)
	ctx := context.Background()

	a := &App{config: cfg, logger: log}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.config

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("invalid EVIDENCE_TIMEZONE %q: %w", cfg.EvidenceTimezone, err)
	}

	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, stores.Close)

	a.categories, err = repository.ResolveCategories(ctx, stores.Categories, cfg.CategoryWebcam, cfg.CategoryVideo, cfg.SeedCategories)
	if err != nil {
		return err
	}

	store, err := OpenObjectStore(ctx, cfg)
	if err != nil {
		return err
	}

	a.hubService = websocket.NewHubService(a.logger)
	publishers := []evidence.Publisher{a.hubService}

	if cfg.MQTTBroker != "" {
		a.mqtt, err = notify.NewMQTTEmitter(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, a.logger)
		if err != nil {
			a.logger.Warning("MQTT disabled: %v", err)
		} else {
			publishers = append(publishers, a.mqtt)
		}
	}

	opts := evidence.Options{
		Repo:          stores.Evidence,
		Store:         store,
		Publishers:    publishers,
		Categories:    a.categories,
		WebcamFolder:  cfg.S3WebcamFolder,
		VideoFolder:   cfg.S3VideoFolder,
		Location:      loc,
		NotifyTimeout: cfg.NotifyTimeout,
		Logger:        a.logger,
	}
	if cfg.OutputDirectory != "" {
		opts.Local = storage.NewLocalStore(cfg.OutputDirectory, "")
	}
	if cfg.ClassifyURL != "" {
		opts.Notifier = notify.NewClassifier(cfg.ClassifyURL, cfg.NotifyTimeout, a.logger)
	}
	recorder := evidence.NewRecorder(opts)

	annotator := annotate.NewAnnotator(90)
	detector, err := a.newDetector(annotator)
	if err != nil {
		return err
	}

	device := capture.NewDevice(cfg.CaptureDevice, a.logger)
	a.manager = pipeline.NewManager(pipeline.Options{
		Acquire: func() (pipeline.Source, error) {
			source, err := device.Acquire()
			if err != nil {
				return nil, err
			}
			return source, nil
		},
		Detector:  detector,
		Annotator: annotator,
		NewSink: func(sessionID string) pipeline.EventSink {
			return evidence.NewQueue(sessionID, recorder, cfg.EvidenceQueueSize, a.logger)
		},
		Threshold: cfg.ConfirmThreshold,
		Cutoff:    cfg.ConfidenceCutoff,
		Logger:    a.logger,
	})

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)
	if cfg.JWTSecret == "" {
		a.logger.Warning("JWT_SECRET not set, sessions will not survive a restart")
	}

	router := route.SetupRoutes(route.Services{
		Sessions:   a.manager,
		Evidence:   stores.Evidence,
		Categories: a.categories,
		Uploader:   recorder,
		Hub:        a.hubService,
		Login:      auth.NewClient(cfg.AuthURL, 10*time.Second),
		Tokens:     tokens,
	}, cfg, a.logger)

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: /video_feed responses stream for the whole session.
	}
	return nil
}

func (a *App) newDetector(encoder ai.FrameEncoder) (pipeline.Detector, error) {
	switch a.config.DetectorBackend {
	case "dnn":
		d, err := ai.NewDNNDetector(a.config, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, d.Close)
		return d, nil
	case "http":
		d := ai.NewRemoteDetector(a.config.InferenceURL, encoder, 10*time.Second)
		if err := d.CheckHealth(); err != nil {
			a.logger.Warning("Inference service not reachable yet: %v", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q", a.config.DetectorBackend)
	}
}

func (a *App) Run() error {
	go a.hubService.Run()

	a.logger.Info("Poksin webcam server on http://localhost:%d", a.config.Port)
	a.logger.Info("Capture device: %s, detector: %s, storage: %s", a.config.CaptureDevice, a.config.DetectorBackend, a.config.StorageBackend)
	a.logger.Info("Categories: webcam=%d video=%d",
		a.categories.ID(model.CategorySessionScoped), a.categories.ID(model.CategorySingleShot))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		a.close()
		return err
	case sig := <-stop:
		a.logger.Info("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Streams end when their sessions close, so close them before waiting on handlers.
	if err := a.manager.Shutdown(); err != nil {
		a.logger.Error("Error closing sessions: %v", err)
	}
	err := a.server.Shutdown(ctx)
	a.close()
	return err
}

func (a *App) close() {
	if a.hubService != nil {
		a.hubService.Stop()
	}
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("Error during shutdown: %v", err)
		}
	}
	a.closers = nil
	a.logger.Close()
}
