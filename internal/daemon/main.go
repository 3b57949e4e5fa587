// Package daemon wires the services of the identity gate together.
package daemon

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/agromano/identity-gate/internal/audit"
	"github.com/agromano/identity-gate/internal/auth"
	"github.com/agromano/identity-gate/internal/config"
	"github.com/agromano/identity-gate/internal/db/dsn"
	"github.com/agromano/identity-gate/internal/db/models"
	"github.com/agromano/identity-gate/internal/db/seed"
	"github.com/agromano/identity-gate/internal/db/store"
	"github.com/agromano/identity-gate/internal/idp"
	gormadapter "github.com/agromano/identity-gate/internal/logger/adapter/gorm"
	"github.com/agromano/identity-gate/internal/reconcile"
	"github.com/agromano/identity-gate/internal/web"
	"github.com/agromano/identity-gate/internal/web/handler"
)

const (
	slowQueryThreshold = 200 * time.Millisecond
	closeTimeout       = 10 * time.Second
)

// Daemon holds the wired services.
type Daemon struct {
	cfg *config.Config
	db  *gorm.DB

	Store     *store.Store
	Probe     *idp.Probe
	Audit     *audit.Sink
	Reconcile *reconcile.Service

	cancel context.CancelFunc
}

// New opens the database and wires every service except the web server.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, handler.ErrNilDependency
	}

	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	return Wire(cfg, db, idp.NewAuth0Client)
}

// GatewayFactory creates the provider client. The context lives as long as the daemon.
type GatewayFactory func(ctx context.Context, cfg config.IdP) *idp.Auth0Client

// Wire migrates db and builds the services on it.
func Wire(cfg *config.Config, db *gorm.DB, newGateway GatewayFactory) (*Daemon, error) {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if cfg.DevMode {
		if err := seed.Run(context.Background(), db); err != nil {
			return nil, fmt.Errorf("failed to seed database: %w", err)
		}

		log.Warn().Msg("dev mode enabled: reference roles and permissions seeded")
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := store.New(db)
	probe := idp.NewProbe(newGateway(ctx, cfg.IdP), idp.NewFallbackDirectory(), cfg.Breaker.Cooldown)

	alerters := []audit.Alerter{audit.NewLogAlerter()}
	if cfg.Log.DataDog.Enabled {
		alerters = append(alerters, audit.NewDataDogAlerter(cfg.Log.DataDog, cfg.Log.ServiceName))
	}

	sink := audit.NewSink(db, cfg.Audit, alerters...)

	return &Daemon{
		cfg:       cfg,
		db:        db,
		Store:     s,
		Probe:     probe,
		Audit:     sink,
		Reconcile: reconcile.New(s, probe, sink, cfg.Reconcile),
		cancel:    cancel,
	}, nil
}

// Open connects to the configured database.
func Open(cfg *config.Config) (*gorm.DB, error) {
	source, err := dsn.Create(cfg.DB)
	if err != nil {
		return nil, err
	}

	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case config.EngineMySQL:
		dialector = gormmysql.Open(source)
	case config.EnginePostgres:
		dialector = gormpostgres.Open(source)
	default:
		dialector = sqlite.Open(source)
	}

	level := gormlogger.Warn
	if cfg.DevMode {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormadapter.New(level, slowQueryThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	return db, nil
}

// Serve runs the web server until SIGINT or SIGTERM.
func (d *Daemon) Serve() error {
	resolver := auth.NewResolver(d.Store, d.cfg.Auth.DegradedPermissions)
	gate := auth.NewGate(auth.NewVerifier(d.cfg.IdP, d.cfg.JWKS), d.Reconcile, resolver)

	svc, err := web.New(d.cfg, web.Deps{
		Deps: handler.Deps{
			Reconcile: d.Reconcile,
			Store:     d.Store,
			Audit:     d.Audit,
		},
		Gate:  gate,
		Probe: d.Probe,
	})
	if err != nil {
		return err
	}

	log.Info().Int("port", d.cfg.Webserver.Port).Str("idp", d.cfg.IdP.Domain).Msg("identity gate starting")

	go svc.WaitShutdown()

	return svc.Start(":" + strconv.Itoa(d.cfg.Webserver.Port))
}

// Close drains the audit queue and closes the database.
func (d *Daemon) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	defer d.cancel()

	if err := d.Audit.Close(ctx); err != nil {
		log.Error().Err(err).Msg("audit queue not drained")
	}

	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}

	return sqlDB.Close() //nolint:wrapcheck
}
