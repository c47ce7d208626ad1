package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/multicontroller/internal/config"
	"github.com/muurk/multicontroller/internal/coordinator"
	"github.com/muurk/multicontroller/internal/entity"
	"github.com/muurk/multicontroller/internal/logging"
	"github.com/muurk/multicontroller/internal/rainmaker"
)

const (
	// Title names a newly configured entry
	Title = "Zehnder Multicontroller"

	// Version is stored on entries and drives entity migration
	Version = "0.0.6"
)

// Options tunes the API client and poller built by Setup
type Options struct {
	// Timeout for each cloud request (default: rainmaker.DefaultTimeout)
	Timeout time.Duration

	// Interval between scheduled refreshes (default: coordinator.DefaultInterval)
	Interval time.Duration
}

// Runtime is everything a configured entry needs while it is loaded
type Runtime struct {
	EntryID     string
	Entry       *config.Entry
	API         *rainmaker.API
	Coordinator *coordinator.Coordinator
	Entities    *entity.Set

	// Migrated is true when setup cleared entities left by another version
	Migrated bool
}

// NewAPI builds a cloud adapter for host
func NewAPI(host, username, password string, timeout time.Duration) *rainmaker.API {
	client := rainmaker.NewClient(host)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return rainmaker.NewAPIWithTransport(client.BaseURL, client, username, password)
}

// Setup connects, runs the first refresh, migrates the entry if needed and
// creates every platform's entities. Polling is not started; call Start.
//
// Errors wrap coordinator.ErrAuthFailed for rejected credentials and
// coordinator.ErrNotReady for anything that may succeed on a later attempt.
func Setup(ctx context.Context, entryID string, entry *config.Entry, password string, opts Options) (*Runtime, error) {
	return setup(ctx, entryID, entry, NewAPI(entry.Host, entry.Username, password, opts.Timeout), opts)
}

func setup(ctx context.Context, entryID string, entry *config.Entry, api *rainmaker.API, opts Options) (*Runtime, error) {
	logging.Info("Setting up entry", zap.String("entry_id", entryID), zap.String("host", api.Host))

	if err := api.Connect(ctx); err != nil {
		api.Close()
		if rainmaker.IsAuthError(err) {
			return nil, fmt.Errorf("%w: %w", coordinator.ErrAuthFailed, err)
		}
		return nil, fmt.Errorf("%w: %w", coordinator.ErrNotReady, err)
	}

	coord := coordinator.New(api, coordinator.Options{Interval: opts.Interval})
	if err := coord.FirstRefresh(ctx); err != nil {
		api.Close()
		return nil, err
	}
	logging.Debug("Initial data fetched", zap.Int("nodes", coord.Snapshot().Len()))

	migrated := config.MigrateEntry(entry, Version)

	entities, err := entity.Setup(entryID, coord, newRunRegistry(entry))
	if err != nil {
		api.Close()
		return nil, fmt.Errorf("failed to set up entities: %w", err)
	}

	logging.Info("Entry set up",
		zap.String("entry_id", entryID),
		zap.Int("nodes", coord.Snapshot().Len()),
		zap.Int("entities", entities.Len()),
	)

	return &Runtime{
		EntryID:     entryID,
		Entry:       entry,
		API:         api,
		Coordinator: coord,
		Entities:    entities,
		Migrated:    migrated,
	}, nil
}

// Start begins scheduled polling
func (r *Runtime) Start() {
	r.Coordinator.Start()
}

// Unload stops polling and closes the cloud session
func (r *Runtime) Unload() {
	r.Coordinator.Stop()
	r.API.Close()
	logging.Info("Entry unloaded", zap.String("entry_id", r.EntryID))
}

// runRegistry scopes the duplicate check to this process while recording
// every created entity on the persisted entry.
type runRegistry struct {
	*entity.MemoryRegistry
	entry *config.Entry
}

func newRunRegistry(entry *config.Entry) *runRegistry {
	return &runRegistry{MemoryRegistry: entity.NewMemoryRegistry(), entry: entry}
}

func (r *runRegistry) Register(platform, uniqueID string) error {
	if err := r.MemoryRegistry.Register(platform, uniqueID); err != nil {
		return err
	}
	return r.entry.Register(platform, uniqueID)
}

// Error keys reported by ValidateInput and AddEntry
const (
	ErrorKeyAuth              = "auth"
	ErrorKeyCannotConnect     = "cannot_connect"
	ErrorKeyAlreadyConfigured = "already_configured"
)

// FlowError is a user-facing configuration failure identified by Key
type FlowError struct {
	Key string
	Err error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Key, e.Err)
	}
	return e.Key
}

func (e *FlowError) Unwrap() error { return e.Err }

// ErrorKey returns the flow key of err, or "" if it is not a FlowError
func ErrorKey(err error) string {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Key
	}
	return ""
}

// ValidateInput checks credentials by logging in once and returns the title
// for the new entry.
func ValidateInput(ctx context.Context, host, username, password string, timeout time.Duration) (string, error) {
	api := NewAPI(host, username, password, timeout)
	defer api.Close()
	return validate(ctx, api)
}

func validate(ctx context.Context, api *rainmaker.API) (string, error) {
	if err := api.Connect(ctx); err != nil {
		if rainmaker.IsConnectionError(err) {
			return "", &FlowError{Key: ErrorKeyCannotConnect, Err: err}
		}
		return "", &FlowError{Key: ErrorKeyAuth, Err: err}
	}
	return Title, nil
}

// AddEntry validates the credentials and records a new entry in reg.
// Adding an account that already has an entry fails with already_configured.
func AddEntry(ctx context.Context, reg *config.Registry, host, username, password string, timeout time.Duration) (string, error) {
	if id, _ := reg.FindEntry(host, username); id != "" {
		return "", &FlowError{Key: ErrorKeyAlreadyConfigured, Err: config.ErrAlreadyConfigured}
	}

	if _, err := ValidateInput(ctx, host, username, password, timeout); err != nil {
		return "", err
	}

	id, _, err := reg.AddEntry(host, username, Version)
	if err != nil {
		if errors.Is(err, config.ErrAlreadyConfigured) {
			return "", &FlowError{Key: ErrorKeyAlreadyConfigured, Err: err}
		}
		return "", err
	}
	return id, nil
}
