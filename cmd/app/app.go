package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"network/internal/api"
	"network/internal/config"
	"network/internal/database"
	"network/internal/models"
	"network/internal/query"
	"network/internal/repository"
	"network/internal/service"
	"network/internal/session"
	"network/internal/storage"
	"network/internal/toast"
)

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Client   *api.Client
	Cache    *query.Cache
	Toast    *toast.Notifier
	Services *service.Service
	Photos   storage.PhotoSource
	Router   *session.Router

	closers []func() error
}

// NewLogger builds the process logger from the log section of the config.
func NewLogger(cfg config.Log, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// New wires the client, cache, snapshot store and services from cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Router: session.NewRouter()}

	client, err := api.New(api.Options{
		BaseURL:        cfg.API.BaseURL,
		CSRFCookieName: cfg.API.CSRFCookieName,
		CSRFHeaderName: cfg.API.CSRFHeaderName,
		UserAgent:      cfg.API.UserAgent,
		Timeout:        cfg.API.Timeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}
	var cookies []*http.Cookie
	if cfg.API.SessionID != "" {
		cookies = append(cookies, &http.Cookie{Name: cfg.API.SessionCookie, Value: cfg.API.SessionID})
	}
	if cfg.API.CSRFToken != "" {
		cookies = append(cookies, &http.Cookie{Name: cfg.API.CSRFCookieName, Value: cfg.API.CSRFToken})
	}
	client.SetCookies(cookies...)
	a.Client = client

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Cache = query.New(client.FetchKey, query.Options{
		StaleTime: cfg.Cache.StaleTime,
		Store:     store,
		Logger:    logger,
	})
	if n, err := a.Cache.Hydrate(ctx); err != nil {
		logger.Warn("cache hydrate failed", "error", err)
	} else if n > 0 {
		logger.Debug("restored cached pages", "count", n)
	}

	a.Toast = toast.NewNotifier(cfg.Toast.AutoDismiss)
	a.Services = service.NewService(client, a.Cache, a.Toast, logger)

	photos := storage.Sources{Local: storage.LocalSource{}}
	if cfg.MinIO.Endpoint != "" {
		remote, err := storage.NewMinIOSource(cfg.MinIO)
		if err != nil {
			logger.Warn("minio photo source unavailable", "error", err)
		} else {
			photos.Remote = remote
		}
	}
	a.Photos = photos

	return a, nil
}

func (a *App) openStore(ctx context.Context) (query.Store, error) {
	cfg := a.Config
	switch cfg.Cache.Persist {
	case config.PersistPostgres:
		db, err := database.ConnectDB(ctx, cfg, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.CloseDB)

		repo := repository.NewSnapshotRepository(db.DB)
		if cfg.Cache.SnapshotTTL > 0 {
			removed, err := repo.Prune(ctx, time.Now().Add(-cfg.Cache.SnapshotTTL))
			if err != nil {
				a.Logger.Warn("snapshot prune failed", "error", err)
			} else if removed > 0 {
				a.Logger.Debug("pruned snapshots", "count", removed)
			}
		}
		return repo, nil

	case config.PersistRedis:
		client, err := repository.ConnectRedis(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return repository.NewRedisSnapshotRepository(client, cfg.Cache.SnapshotTTL), nil

	default:
		return nil, nil
	}
}

// Session resolves path to its view and loads who is logged in from the
// server's index document. Without a readable document the user counts as
// anonymous.
func (a *App) Session(ctx context.Context, path string) (*session.Context, error) {
	key, err := a.Router.Resolve(path)
	if err != nil {
		return nil, err
	}

	var boot models.Bootstrap
	doc, err := a.Client.Document(ctx, "/")
	if err != nil {
		a.Logger.Warn("could not load index document", "error", err)
	} else if boot, err = session.ParseBootstrap(bytes.NewReader(doc)); err != nil {
		if !errors.Is(err, session.ErrNoBootstrap) {
			a.Logger.Warn("could not read user info", "error", err)
		}
		boot = models.Bootstrap{}
	}

	return session.New(boot, key, a.Toast), nil
}

// OpenPhoto turns a photo reference into a file part for a profile update.
func (a *App) OpenPhoto(ctx context.Context, ref string) (*api.FilePart, func() error, error) {
	photo, err := a.Photos.Open(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	part := &api.FilePart{
		FieldName:   "photo",
		FileName:    photo.Name,
		ContentType: photo.ContentType,
		Reader:      photo.Reader,
	}
	return part, photo.Close, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Client != nil {
		a.Client.Abort()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
