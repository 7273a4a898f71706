package app

import (
	"context"
	"net/http"

	"github.com/casbin/casbin/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/facegate/internal/identity/usecase"
	"github.com/shandysiswandi/facegate/internal/pkg/clock"
	"github.com/shandysiswandi/facegate/internal/pkg/config"
	"github.com/shandysiswandi/facegate/internal/pkg/goroutine"
	"github.com/shandysiswandi/facegate/internal/pkg/hash"
	"github.com/shandysiswandi/facegate/internal/pkg/instrument"
	"github.com/shandysiswandi/facegate/internal/pkg/jwt"
	"github.com/shandysiswandi/facegate/internal/pkg/messaging"
	"github.com/shandysiswandi/facegate/internal/pkg/mfa"
	"github.com/shandysiswandi/facegate/internal/pkg/otp"
	"github.com/shandysiswandi/facegate/internal/pkg/router"
	"github.com/shandysiswandi/facegate/internal/pkg/storage"
	"github.com/shandysiswandi/facegate/internal/pkg/uid"
	"github.com/shandysiswandi/facegate/internal/pkg/validator"
	"github.com/spf13/afero"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine    *goroutine.Manager
	validator    validator.Validator
	clock        clock.Clocker
	bcrypt       hash.Hash
	uuid         uid.StringID
	totp         otp.OTP
	jwt          jwt.JWT
	mfaEncryptor mfa.Encryptor
	fs           afero.Fs

	// resources, dbConn and cacheConn stay nil when not configured
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	messaging messaging.Publisher
	storage   storage.Storage
	casbin    *casbin.Enforcer

	// server
	router     *router.Router
	httpServer *http.Server

	// modules
	identity *usecase.Usecase

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initJWT()
	app.initDatabase()
	app.initCache()
	app.initStorage()
	app.initMessaging()
	app.initCasbin()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
