// Package booking provides the appointment booking domain module.
package booking

import (
	"estatebot_backend/internal/booking/availability"
	"estatebot_backend/internal/booking/handler"
	"estatebot_backend/internal/booking/repository"
	"estatebot_backend/internal/booking/service"
	"estatebot_backend/internal/booking/timeparse"
	"estatebot_backend/internal/calendar"
	"estatebot_backend/internal/events"
	apphttp "estatebot_backend/internal/http"
	"estatebot_backend/internal/scheduler"
	"estatebot_backend/internal/video"
	"estatebot_backend/platform/config"
	"estatebot_backend/platform/lock"
	"estatebot_backend/platform/logger"
	"estatebot_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the booking domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new booking module with all dependencies wired
func NewModule(
	pool *pgxpool.Pool,
	val *validator.Validator,
	cal calendar.Provider,
	vid video.Provider,
	locker lock.SlotLocker,
	bus events.Bus,
	reminders scheduler.ReminderScheduler,
	notifier service.Notifier,
	cfg *config.Config,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	parser := timeparse.NewParser(cfg)
	finder := availability.NewFinder(cal, cfg, log)
	matcher := availability.NewMatcher(parser, finder, cfg.GetMatchTolerance())
	svc := service.New(repo, matcher, cal, vid, locker, bus, reminders, notifier, cfg, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "booking"
}

// RegisterRoutes registers the module's routes under /api/v1/bookings
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	bookings := ctx.V1.Group("/bookings")
	m.handler.RegisterRoutes(bookings)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
