package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"laptop_tracker/config"
	"laptop_tracker/db"
	"laptop_tracker/lifecycle"
	"laptop_tracker/obs"
	"laptop_tracker/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Short aliases for handlers.
type Ctx = gin.Context
type H = gin.H

// App holds the process-wide dependencies.
type App struct {
	Router    *gin.Engine
	DB        *gorm.DB
	RDB       *redis.Client
	WA        *webauthn.WebAuthn
	Config    config.Config
	Repo      *db.Repo
	Lifecycle *lifecycle.Coordinator

	appSess *session.AppSessionStore
}

func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }

// New connects Postgres and Redis, migrates the schema and builds the
// router with the shared middleware.
func New(cfg config.Config) (*App, error) {
	dbConn, err := db.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(dbConn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: "Laptop Tracker",
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("webauthn: %w", err)
	}

	coord := lifecycle.New(
		db.NewLedgerStore(dbConn),
		lifecycle.WithPolicy(lifecycle.Policy{ClearBiometricOnCheckIn: cfg.CheckInClearsBiometric}),
	)

	obs.Init()
	r := gin.Default()
	r.Use(RequestID(), obs.Instrument())
	useCORS(r, cfg)

	log.Printf("lifecycle policy: clear biometric on check-in = %v", coord.Policy().ClearBiometricOnCheckIn)
	return &App{
		Router:    r,
		DB:        dbConn,
		RDB:       rdb,
		WA:        wa,
		Config:    cfg,
		Repo:      db.NewRepo(dbConn),
		Lifecycle: coord,
		appSess:   session.NewAppSessionStore(rdb, cfg.AppSessionTTL),
	}, nil
}

func (a *App) Close() {
	_ = a.RDB.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
