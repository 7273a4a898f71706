package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/facegate/internal/identity/enrollment"
	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/identity/inbound"
	"github.com/shandysiswandi/facegate/internal/identity/outbound/cache"
	"github.com/shandysiswandi/facegate/internal/identity/outbound/db"
	"github.com/shandysiswandi/facegate/internal/identity/outbound/extractor"
	"github.com/shandysiswandi/facegate/internal/identity/outbound/mq"
	"github.com/shandysiswandi/facegate/internal/identity/outbound/reference"
	"github.com/shandysiswandi/facegate/internal/identity/outbound/secret"
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

const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// ErrDatabaseRequired is returned when a postgres driver is selected but no
// pool was opened.
var ErrDatabaseRequired = errors.New("identity: postgres driver selected without a database connection")

// Dependency carries what the identity module needs from the app. DBConn,
// CacheConn and MFAEncryptor are optional and depend on the configured drivers.
type Dependency struct {
	DBConn       *pgxpool.Pool
	CacheConn    *redis.Client
	MFAEncryptor mfa.Encryptor
	Fs           afero.Fs                   `validate:"required"`
	Goroutine    *goroutine.Manager         `validate:"required"`
	Router       *router.Router             `validate:"required"`
	Messaging    messaging.Publisher        `validate:"required"`
	Storage      storage.Storage            `validate:"required"`
	Config       config.Config              `validate:"required"`
	Instrument   instrument.Instrumentation `validate:"required"`
	UUID         uid.StringID               `validate:"required"`
	Bcrypt       hash.Hash                  `validate:"required"`
	Clock        clock.Clocker              `validate:"required"`
	Totp         otp.OTP                    `validate:"required"`
	Validator    validator.Validator        `validate:"required"`
	JWT          jwt.JWT                    `validate:"required"`
}

// New wires the identity module, loads the enrolled faces and registers the
// HTTP endpoints.
func New(ctx context.Context, dep Dependency) (*usecase.Usecase, error) {
	if err := dep.Validator.Validate(dep); err != nil {
		return nil, err
	}

	encodingDriver := dep.Config.GetString("encoding.driver")
	credentialDriver := dep.Config.GetString("credential.driver")

	var repoDB *db.DB
	if encodingDriver == DriverPostgres || credentialDriver == DriverPostgres {
		if dep.DBConn == nil {
			return nil, ErrDatabaseRequired
		}
		repoDB = db.NewDB(dep.DBConn, dep.Instrument)
		if err := repoDB.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("identity: migrate: %w", err)
		}
	}

	var secrets secret.Store
	switch credentialDriver {
	case DriverPostgres:
		secrets = repoDB
	case DriverFile, "":
		secrets = secret.NewFile(dep.Fs, dep.Config.GetString("credential.file.path"))
	default:
		return nil, fmt.Errorf("identity: unknown credential driver %q", credentialDriver)
	}
	if dep.Config.GetBool("credential.encrypted") {
		if dep.MFAEncryptor == nil {
			return nil, errors.New("identity: credential.encrypted needs mfa.aes_key")
		}
		secrets = secret.NewEncrypted(secrets, dep.MFAEncryptor)
	}

	references := reference.NewStore(dep.Storage, dep.Config.GetString("storage.bucket"), dep.Instrument)

	var repoEncoding enrollment.Repository
	switch encodingDriver {
	case DriverPostgres:
		repoEncoding = repoDB
	case DriverMemory, "":
	default:
		return nil, fmt.Errorf("identity: unknown encoding driver %q", encodingDriver)
	}

	manager := enrollment.NewManager(enrollment.Options{
		Repository: repoEncoding,
		Clock:      dep.Clock,
		Dimension:  dep.Config.GetInt("face.encoding_dim"),
		Artifacts: []enrollment.Artifact{
			{Name: "secret", Remove: secrets.DeleteSecret},
			{Name: "reference", Remove: references.DeleteReference},
		},
	})
	if err := manager.Load(ctx); err != nil {
		return nil, fmt.Errorf("identity: load enrolled faces: %w", err)
	}

	var replay interface {
		ClaimCode(ctx context.Context, id entity.Identity, code string, ttl time.Duration) (bool, error)
	}
	if dep.CacheConn != nil {
		replay = cache.NewRedis(dep.CacheConn, dep.Instrument)
	} else {
		slog.WarnContext(ctx, "redis disabled, one-time code replay guard is process local")
		replay = cache.NewMemory(dep.Clock)
	}

	ext := extractor.NewClient(extractor.Config{
		BaseURL:          dep.Config.GetString("extractor.url"),
		Timeout:          dep.Config.GetMillisecond("extractor.timeout_ms"),
		MaxSide:          dep.Config.GetInt("extractor.max_side"),
		Dimension:        dep.Config.GetInt("face.encoding_dim"),
		MaxResponseBytes: int64(dep.Config.GetInt("extractor.max_response_bytes")),
	}, dep.Instrument)

	uc := usecase.New(usecase.Dependency{
		Enrollment:    manager,
		Extractor:     ext,
		RepoSecret:    secrets,
		RepoReference: references,
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		ReplayGuard:   replay,
		Validator:     dep.Validator,
		Config:        dep.Config,
		Clock:         dep.Clock,
		UUID:          dep.UUID,
		Totp:          dep.Totp,
		JWT:           dep.JWT,
		Bcrypt:        dep.Bcrypt,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, int64(dep.Config.GetInt("server.max_frame_bytes")))

	slog.InfoContext(ctx, "identity module ready",
		"encoding_driver", encodingDriver, "credential_driver", credentialDriver, "enrolled", manager.Len())

	return uc, nil
}
