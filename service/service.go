package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"locrepos/config"
	"locrepos/db"
	"locrepos/github"
	"locrepos/logger"
	"locrepos/models"
	"locrepos/table"
)

// GitHubClientInterface abstracts the GitHub client operations needed by the service
// (for testability)
type GitHubClientInterface interface {
	FetchUsersByLocation(ctx context.Context, location string, maxUsers int) ([]string, error)
	FetchRepoDetails(ctx context.Context, username string, maxRepos int) ([]models.Repository, error)
}

// StoreInterface abstracts the snapshot store
type StoreInterface interface {
	EnsureSchema(ctx context.Context) error
	StoreRun(ctx context.Context, runID uuid.UUID, records []models.Repository) error
	CountByRun(ctx context.Context, runID uuid.UUID) (int, error)
	Close() error
}

// Service errors
var (
	ErrServiceInit     = errors.New("service initialization error")
	ErrServiceShutdown = errors.New("service shutdown error")
)

// RunResult is the outcome of one collection.
type RunResult struct {
	ID    uuid.UUID
	Frame *table.Frame
}

// Service represents the main application service
type Service struct {
	config *config.Config
	client GitHubClientInterface
	store  StoreInterface
	out    io.Writer
	newID  func() uuid.UUID
}

// NewService wires the GitHub client and, when enabled, the snapshot store.
func NewService(ctx context.Context, cfg *config.Config, out io.Writer) (*Service, error) {
	client, err := github.NewClient(cfg.GitHubToken, cfg.APIBaseURL, cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create GitHub client: %v", ErrServiceInit, err)
	}

	var store StoreInterface
	if cfg.Store.Enabled {
		database, err := db.New(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to initialize database: %v", ErrServiceInit, err)
		}
		if err := database.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("%w: %v", ErrServiceInit, err)
		}
		store = database
	}

	logger.Info("Service initialized successfully",
		zap.Strings("locations", cfg.Locations),
		zap.Int("max_users_per_location", cfg.Quota.UsersPerLocation),
		zap.Int("max_repos_per_user", cfg.Quota.ReposPerUser),
		zap.Bool("store_enabled", store != nil))

	return New(cfg, client, store, out), nil
}

// New assembles a service from already built dependencies. store may be nil.
func New(cfg *config.Config, client GitHubClientInterface, store StoreInterface, out io.Writer) *Service {
	if out == nil {
		out = io.Discard
	}
	return &Service{
		config: cfg,
		client: client,
		store:  store,
		out:    out,
		newID:  uuid.New,
	}
}

// Run performs one collection, prints the preview and stores the run when a
// store is configured. On a fetch failure the partial preview is still
// printed and the records gathered so far are returned with the error.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{ID: s.newID()}
	log := logger.With(zap.String("run_id", result.ID.String()))

	log.Info("Starting collection", zap.Strings("locations", s.config.Locations))
	started := time.Now()

	records, err := Collect(ctx, s.client, s.config.Locations, s.config.Quota)
	result.Frame = table.FromRecords(records)

	s.printPreview(result, err != nil)

	if err != nil {
		log.Error("Collection failed", zap.Error(err), zap.Int("collected", len(records)))
		return result, err
	}

	log.Info("Collection finished",
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(started)))

	if s.store != nil && len(records) > 0 {
		if err := s.persist(ctx, result.ID, records); err != nil {
			return result, err
		}
	}

	return result, nil
}

// persist stores the run and reads back its row count. Duplicate users
// across locations collapse onto one row, so the count may be lower than
// len(records) but never higher.
func (s *Service) persist(ctx context.Context, runID uuid.UUID, records []models.Repository) error {
	if err := s.store.StoreRun(ctx, runID, records); err != nil {
		return fmt.Errorf("failed to store run %s: %w", runID, err)
	}

	stored, err := s.store.CountByRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to verify run %s: %w", runID, err)
	}
	if stored > len(records) {
		return fmt.Errorf("run %s stored %d rows for %d records", runID, stored, len(records))
	}

	logger.Info("Run persisted",
		zap.String("run_id", runID.String()),
		zap.Int("records", len(records)),
		zap.Int("stored", stored))
	return nil
}

// Start runs one collection, then repeats it every configured interval until
// ctx is cancelled or an interrupt arrives. Without an interval it returns
// after the first run.
func (s *Service) Start(ctx context.Context) error {
	if s.config.Interval <= 0 {
		_, err := s.Run(ctx)
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := s.Run(ctx); err != nil {
		// Continue despite a failed run; the next tick retries the whole collection
		logger.Warn("Collection run failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	logger.Info("Waiting for next collection", zap.Duration("interval", s.config.Interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, stopping collection loop")
			return nil
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				logger.Warn("Collection run failed", zap.Error(err))
			}
		}
	}
}

// Close performs cleanup operations
func (s *Service) Close() error {
	logger.Info("Closing service")
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("%w: failed to close database: %v", ErrServiceShutdown, err)
	}
	return nil
}

func (s *Service) printPreview(result *RunResult, partial bool) {
	status := "Collected"
	if partial {
		status = "Partially collected"
	}
	fmt.Fprintf(s.out, "%s %d repositories from %d location(s) (run %s)\n",
		status, result.Frame.Len(), len(s.config.Locations), result.ID)

	if s.config.PreviewRows > 0 && result.Frame.Len() > 0 {
		fmt.Fprintln(s.out, result.Frame.Head(s.config.PreviewRows).Render())
	}
}

// Collect walks locations, then the users found at each location, then
// their repositories, accumulating every record in order. It is strictly
// sequential. On error the records collected so far are returned with it.
func Collect(ctx context.Context, client GitHubClientInterface, locations []string, quota models.Quota) ([]models.Repository, error) {
	var all []models.Repository

	for _, location := range locations {
		if err := ctx.Err(); err != nil {
			return all, fmt.Errorf("context cancelled: %w", err)
		}

		users, err := client.FetchUsersByLocation(ctx, location, quota.UsersPerLocation)
		if err != nil {
			return all, fmt.Errorf("failed to fetch users for location %s: %w", location, err)
		}

		logger.Info("Processing location",
			zap.String("location", location),
			zap.Int("users", len(users)))

		for _, user := range users {
			if err := ctx.Err(); err != nil {
				return all, fmt.Errorf("context cancelled: %w", err)
			}

			repos, err := client.FetchRepoDetails(ctx, user, quota.ReposPerUser)
			if err != nil {
				return all, fmt.Errorf("failed to fetch repositories for %s: %w", user, err)
			}
			all = append(all, repos...)
		}
	}

	return all, nil
}
