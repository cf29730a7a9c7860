// Package wire provides dependency injection for the autohttps application.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	cliadapter "github.com/example/autohttps/internal/adapters/cli"
	"github.com/example/autohttps/internal/adapters/events"
	"github.com/example/autohttps/internal/adapters/prefsfile"
	"github.com/example/autohttps/internal/adapters/sqlite"
	"github.com/example/autohttps/internal/app"
	"github.com/example/autohttps/internal/config"
	"github.com/example/autohttps/internal/db"
	"github.com/example/autohttps/internal/logging"
	"github.com/example/autohttps/internal/metrics"
	"github.com/example/autohttps/internal/ports/primary"
	"github.com/example/autohttps/internal/ports/secondary"
)

// PreferenceBackend is a preference store that can also be written.
type PreferenceBackend interface {
	secondary.PreferenceStore
	secondary.PreferenceWriter
}

var (
	cfg          = config.Default()
	logger       *logging.Logger
	registry     *metrics.Metrics
	preferences  PreferenceBackend
	decisionRepo *sqlite.DecisionRepository

	preferenceAdmin    primary.PreferenceAdmin
	decisionLogService primary.DecisionLogService

	configured sync.Once
	once       sync.Once
)

// Configure sets the configuration used by every later call. Only the first
// call has an effect, and it must happen before any service is requested.
func Configure(c *config.Config) {
	configured.Do(func() {
		cfg = c
		if c.DBPath != "" {
			db.SetPath(c.DBPath)
		}
	})
}

// Config returns the active configuration.
func Config() *config.Config {
	return cfg
}

// Logger returns the singleton logger.
func Logger() *logging.Logger {
	once.Do(initServices)
	return logger
}

// Metrics returns the singleton metrics registry.
func Metrics() *metrics.Metrics {
	once.Do(initServices)
	return registry
}

// Preferences returns the configured preference backend.
func Preferences() PreferenceBackend {
	once.Do(initServices)
	return preferences
}

// PreferenceAdmin returns the singleton PreferenceAdmin instance.
func PreferenceAdmin() primary.PreferenceAdmin {
	once.Do(initServices)
	return preferenceAdmin
}

// DecisionLogService returns the singleton DecisionLogService instance.
func DecisionLogService() primary.DecisionLogService {
	once.Do(initServices)
	return decisionLogService
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	var err error
	logger, err = logging.New(logging.Config{Development: cfg.Development, Diagnostics: cfg.Diagnostics})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	registry = metrics.New()

	// Get database connection
	database, err := db.GetDB()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	decisionRepo = sqlite.NewDecisionRepository(database)

	switch cfg.PreferenceBackend {
	case config.BackendFile:
		preferences = prefsfile.NewStore(cfg.PreferencesFile, logger.Named("prefsfile"))
	default:
		preferences = sqlite.NewPreferenceRepository(database)
	}

	// Create services (primary ports implementation)
	preferenceAdmin = app.NewPreferenceAdminService(preferences, preferences)
	decisionLogService = app.NewDecisionLogService(decisionRepo)
}

// Engine bundles the services a host drives for one session.
type Engine struct {
	*app.UpgradeServiceImpl
	Preferences *app.PreferenceService
	Tracker     *app.RedirectTracker
}

// EngineOptions selects the collaborators of NewEngine.
type EngineOptions struct {
	Tabs   secondary.TabSource
	Events secondary.ResponseEvents

	// Store overrides the configured preference backend.
	Store secondary.PreferenceStore

	// Audit enables recording every decision in the database.
	Audit bool
}

// NewEngine assembles and starts an engine. Close releases its subscriptions.
func NewEngine(ctx context.Context, opts EngineOptions) (*Engine, error) {
	once.Do(initServices)

	store := opts.Store
	if store == nil {
		store = preferences
	}
	var audit secondary.DecisionLogWriter
	if opts.Audit {
		audit = decisionRepo
	}

	prefs := app.NewPreferenceService(store, logger.Named("preferences"), registry)
	if err := prefs.Start(ctx); err != nil {
		prefs.Close()
		return nil, fmt.Errorf("failed to start preferences: %w", err)
	}

	tracker := app.NewRedirectTracker(opts.Events, logger.Named("tracker"), registry)
	svc := app.NewUpgradeService(prefs, opts.Tabs, app.NewTabLedger(), tracker, audit, logger.Named("upgrade"), registry)

	return &Engine{UpgradeServiceImpl: svc, Preferences: prefs, Tracker: tracker}, nil
}

// Close stops tracking and preference watching.
func (e *Engine) Close() {
	e.Tracker.Close()
	e.Preferences.Close()
}

// NewHub returns an event hub for one host.
func NewHub() *events.Hub {
	return events.NewHub()
}

// PreferenceAdapter returns a new PreferenceAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func PreferenceAdapter() *cliadapter.PreferenceAdapter {
	return PreferenceAdapterWithOutput(os.Stdout)
}

// PreferenceAdapterWithOutput returns a new PreferenceAdapter writing to the given output.
func PreferenceAdapterWithOutput(out io.Writer) *cliadapter.PreferenceAdapter {
	once.Do(initServices)
	return cliadapter.NewPreferenceAdapter(preferenceAdmin, out)
}

// DecisionAdapter returns a new DecisionAdapter writing to stdout. upgrades
// may be nil for commands that only read the audit log.
func DecisionAdapter(upgrades primary.UpgradeService) *cliadapter.DecisionAdapter {
	return DecisionAdapterWithOutput(upgrades, os.Stdout)
}

// DecisionAdapterWithOutput returns a new DecisionAdapter writing to the given output.
func DecisionAdapterWithOutput(upgrades primary.UpgradeService, out io.Writer) *cliadapter.DecisionAdapter {
	once.Do(initServices)
	return cliadapter.NewDecisionAdapter(upgrades, decisionLogService, out)
}
