package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/facegate/internal/identity"
)

func (a *App) initModules() {
	uc, err := identity.New(a.ctx, identity.Dependency{
		DBConn:       a.dbConn,
		CacheConn:    a.cacheConn,
		MFAEncryptor: a.mfaEncryptor,
		Fs:           a.fs,
		Goroutine:    a.goroutine,
		Router:       a.router,
		Messaging:    a.messaging,
		Storage:      a.storage,
		Config:       a.config,
		Instrument:   a.ins,
		UUID:         a.uuid,
		Bcrypt:       a.bcrypt,
		Clock:        a.clock,
		Totp:         a.totp,
		Validator:    a.validator,
		JWT:          a.jwt,
	})
	if err != nil {
		slog.Error("failed to init module identity", "error", err)
		os.Exit(1)
	}

	a.identity = uc
}
