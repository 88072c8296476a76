// Package app assembles the finance client from configuration: durable
// state, the API gateway, the query cache, the notification channel and the
// workflows built on them.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"finance/internal/amqp"
	"finance/internal/api"
	"finance/internal/auth"
	"finance/internal/backend"
	"finance/internal/cache"
	"finance/internal/config"
	"finance/internal/log"
	"finance/internal/middleware/trace"
	"finance/internal/notify"
	"finance/internal/render"
	"finance/internal/services"
	"finance/internal/session"
	"finance/internal/storage"
	"finance/internal/worker"
)

const relayStopTimeout = 5 * time.Second

// ErrLoginRequired is returned after the server rejected the session.
var ErrLoginRequired = errors.New("session expired, run `finance login`")

type App struct {
	cfg    *config.Config
	logger *log.Logger

	repo    *storage.SQLiteRepository
	Session *session.Session
	API     *api.Client
	Cache   *cache.Store
	Notify  *notify.Channel

	Queries   *services.Queries
	Movements *services.MovementService
	Catalog   *services.CatalogService
	Auth      *services.AuthService
	Biometric *auth.Biometric
	Sync      *services.SyncWorkflow

	exportFactory backend.Factory
	export        *services.ExportService
	exportCleanup backend.CleanupFunc

	broker *amqp.Client
	relay  *worker.EventRelay

	unsubscribe func()
	loggedOut   atomic.Bool
}

// Options overrides process-level collaborators, mostly for tests.
type Options struct {
	Repo          *storage.SQLiteRepository
	Out           io.Writer
	Err           io.Writer
	ExportFactory backend.Factory
}

var openStateDB = storage.NewSQLiteRepository

// New wires every component. The AMQP relay is started only when AMQP_URL
// is set; a broker that cannot be reached is logged and skipped.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger, opts Options) (*App, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	a := &App{cfg: cfg, logger: logger.WithComponent(log.ComponentApp), exportFactory: opts.ExportFactory}

	a.repo = opts.Repo
	ownsRepo := a.repo == nil
	if ownsRepo {
		repo, err := openStateDB(cfg.StateDBPath)
		if err != nil {
			return nil, fmt.Errorf("open state db: %w", err)
		}
		a.repo = repo
	}

	sess, err := session.New(ctx, a.repo)
	if err != nil {
		if ownsRepo {
			a.repo.Close()
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	a.Session = sess

	a.API = api.New(cfg.APIBaseURL, sess, logger,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithRoundTripper(trace.Wrap),
		api.WithUnauthorizedHandler(a.onUnauthorized(opts.Err)))

	a.Cache = cache.New()
	a.Notify = notify.New(notify.WithDefaultDuration(cfg.NotificationDuration))
	a.unsubscribe = a.Notify.Subscribe(printer(opts.Out, opts.Err))

	if cfg.AMQPURL != "" {
		a.startRelay(ctx)
	}

	syncCfg := services.DefaultSyncWorkflowConfig()
	syncCfg.CompletionDelay = cfg.SyncCompletionDelay
	if a.relay != nil {
		syncCfg.OnReport = a.relay.HandleSyncReport
	}

	a.Queries = services.NewQueries(a.API, a.Cache)
	a.Movements = services.NewMovementService(a.API, a.Cache, a.Notify)
	a.Catalog = services.NewCatalogService(a.API, a.Cache, a.Notify)
	a.Auth = services.NewAuthService(a.API)
	a.Sync = services.NewSyncWorkflow(a.API, a.Cache, a.Notify, syncCfg)
	a.Biometric = auth.NewBiometric(a.API,
		auth.NewCredentialStore(a.repo),
		auth.NewSoftwareAuthenticator(a.repo),
		auth.Config{RPID: cfg.BiometricRPID, Origin: cfg.BiometricOrigin})

	return a, nil
}

func (a *App) startRelay(ctx context.Context) {
	client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue)
	if err != nil {
		a.logger.WarnContext(ctx, "AMQP relay disabled", log.FieldError, err)
		return
	}
	a.broker = client
	a.relay = worker.NewEventRelay(client, 0)
	a.relay.Start(context.WithoutCancel(ctx))
	a.Notify.Subscribe(a.relay.HandleNotification)
	a.logger.InfoContext(ctx, "AMQP relay started", "exchange", a.cfg.AMQPExchange)
}

// Broker returns the AMQP client, or nil when no relay is configured.
func (a *App) Broker() *amqp.Client { return a.broker }

// Exporter lazily builds the configured invoice exporter.
func (a *App) Exporter(ctx context.Context) (*services.ExportService, error) {
	if a.export != nil {
		return a.export, nil
	}
	bcfg, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	factory := a.exportFactory
	if factory == nil {
		factory = backend.NewFactory(a.logger.Logger)
	}
	res, err := factory.CreateExporter(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	a.exportCleanup = res.Cleanup
	a.export = services.NewExportService(a.Queries, res.Exporter, a.Notify)
	return a.export, nil
}

// LoggedOut reports whether a 401 ended the session during this run.
func (a *App) LoggedOut() bool { return a.loggedOut.Load() }

func (a *App) onUnauthorized(errOut io.Writer) api.UnauthorizedHandler {
	return func(ctx context.Context, err *api.AuthError) {
		a.loggedOut.Store(true)
		a.logger.WarnContext(ctx, "Session rejected by server", log.FieldStatusCode, err.StatusCode)
		fmt.Fprintln(errOut, ErrLoginRequired.Error())
	}
}

// printer writes each new notification as a line. Errors and progress go to
// errOut so stdout carries only results.
func printer(out, errOut io.Writer) func(notify.Event) {
	return func(e notify.Event) {
		if e.Type != notify.EventAdded {
			return
		}
		w := out
		if k := e.Notification.Kind; k == notify.KindError || k == notify.KindLoading {
			w = errOut
		}
		fmt.Fprintln(w, render.Notification(e.Notification))
	}
}

// Close flushes the relay and releases durable state.
func (a *App) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.Cache.Wait()
	if a.relay != nil {
		a.relay.Stop(relayStopTimeout)
	}

	var errs []error
	if a.broker != nil {
		errs = append(errs, a.broker.Close())
	}
	if a.exportCleanup != nil {
		errs = append(errs, a.exportCleanup())
	}
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
	}
	return errors.Join(errs...)
}
