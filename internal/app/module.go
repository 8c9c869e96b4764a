package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/otpgate/internal/notification"
	"github.com/shandysiswandi/otpgate/internal/otp"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.otp.enabled") {
		dep := otp.Dependency{
			Ctx:         a.ctx,
			DBConn:      a.dbConn,
			MongoDB:     a.mongoDB,
			Idempotency: a.idemp,
			Mail:        a.mail,
			Messaging:   a.messaging,
			Goroutine:   a.goroutine,
			Router:      a.router,
			Config:      a.config,
			Instrument:  a.ins,
			Codes:       a.codes,
			Hash:        a.codeHash,
			UID:         a.uid,
			Clock:       a.clock,
			Validator:   a.validator,
		}
		// keep the interface nil when redis is disabled
		if a.cacheConn != nil {
			dep.CacheConn = a.cacheConn
		}

		if err := otp.New(dep); err != nil {
			slog.Error("failed to init module otp", "error", err)
			os.Exit(1)
		}
	}

	if a.config.GetBool("modules.notification.enabled") {
		if err := notification.New(notification.Dependency{
			Ctx:        a.ctx,
			Messaging:  a.messaging,
			Mail:       a.mail,
			Config:     a.config,
			Instrument: a.ins,
			UUID:       a.uuid,
			Clock:      a.clock,
			Goroutine:  a.goroutine,
			Validator:  a.validator,
		}); err != nil {
			slog.Error("failed to init module notification", "error", err)
			os.Exit(1)
		}
	}
}
