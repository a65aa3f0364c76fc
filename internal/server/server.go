// Package server assembles the HTTP API: middleware, the /api gate and
// every domain handler.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/domain/dashboard"
	"github.com/clinic/clinic/internal/domain/medicalrecord"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/prescription"
	"github.com/clinic/clinic/internal/domain/user"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/memstore"
	"github.com/clinic/clinic/internal/platform/middleware"
)

const (
	apiPrefix = "/api"
	bodyLimit = "2M"
	version   = "1.0.0"
)

// Repositories is the persistence the server runs on.
type Repositories struct {
	Users         user.Repository
	Patients      patient.Repository
	Appointments  appointment.Repository
	Records       medicalrecord.Repository
	Prescriptions prescription.Repository
	// DB answers /health/db.
	DB db.Pinger
	// Snapshot runs read-only work in one transaction. Nil runs it directly.
	Snapshot func(ctx context.Context, fn func(ctx context.Context) error) error
}

func PostgresRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Users:         user.NewRepoPG(pool),
		Patients:      patient.NewRepoPG(pool),
		Appointments:  appointment.NewRepoPG(pool),
		Records:       medicalrecord.NewRepoPG(pool),
		Prescriptions: prescription.NewRepoPG(pool),
		DB:            pool,
		Snapshot: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.InSnapshot(ctx, pool, fn)
		},
	}
}

func MemoryRepositories(s *memstore.Store) Repositories {
	return Repositories{
		Users:         s.Users(),
		Patients:      s.Patients(),
		Appointments:  s.Appointments(),
		Records:       s.MedicalRecords(),
		Prescriptions: s.Prescriptions(),
		DB:            s,
	}
}

// Deps are the collaborators New wires together. OAuth may be nil, which
// leaves calendar linking disabled.
type Deps struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Repos       Repositories
	Tokens      *auth.TokenIssuer
	Revocations auth.RevocationStore
	OAuth       *calendar.OAuth
	Events      calendar.EventClient
}

// New builds the echo instance. The config must already be validated.
func New(d Deps) (*echo.Echo, error) {
	cfg := d.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(d.Logger)

	e.Use(middleware.Recovery(d.Logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.Logger))
	e.Use(middleware.SecurityHeaders(apiPrefix))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
	}))
	e.Use(echomw.BodyLimit(bodyLimit))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(d.Repos.DB))

	opts := []auth.BearerOption{auth.WithRevocation(d.Revocations)}
	if cfg.DevBypassEnabled() {
		devID, err := uuid.Parse(cfg.AuthDevUserID)
		if err != nil {
			return nil, err
		}
		opts = append(opts, auth.WithDevUser(devID))
		d.Logger.Warn().Str("user_id", devID.String()).Msg("requests without a bearer token act as the development user")
	}
	authenticator := auth.NewBearerAuthenticator(d.Tokens, user.NewIdentityLookup(d.Repos.Users), opts...)

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	// Gate runs first so authenticated requests are limited per user.
	api := e.Group(apiPrefix,
		auth.Gate(authenticator, auth.PublicSkipper),
		middleware.RateLimit(rateLimitCfg),
	)

	userSvc := user.NewService(d.Repos.Users, d.Tokens, d.Revocations)
	patientSvc := patient.NewService(d.Repos.Patients)
	apptSvc := appointment.NewService(d.Repos.Appointments, d.Repos.Patients)
	recordSvc := medicalrecord.NewService(d.Repos.Records, d.Repos.Patients)
	rxSvc := prescription.NewService(d.Repos.Prescriptions, d.Repos.Patients)
	dashSvc := dashboard.NewService(patientSvc, apptSvc, rxSvc, recordSvc).WithSnapshot(d.Repos.Snapshot)
	calSvc := calendar.NewService(apptSvc, userSvc, d.OAuth, d.Events, d.Logger)

	user.NewHandler(userSvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	appointment.NewHandler(apptSvc).RegisterRoutes(api)
	medicalrecord.NewHandler(recordSvc).RegisterRoutes(api)
	prescription.NewHandler(rxSvc).RegisterRoutes(api)
	dashboard.NewHandler(dashSvc).RegisterRoutes(api)
	calendar.NewHandler(calSvc).RegisterRoutes(api)

	if cfg.WebDir != "" {
		e.Use(echomw.StaticWithConfig(echomw.StaticConfig{
			Root:  cfg.WebDir,
			HTML5: true,
			Skipper: func(c echo.Context) bool {
				p := c.Request().URL.Path
				return strings.HasPrefix(p, apiPrefix) || strings.HasPrefix(p, "/health")
			},
		}))
	}

	return e, nil
}

// Shutdown stops e, waiting up to grace for in-flight requests.
func Shutdown(e *echo.Echo, grace time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return e.Shutdown(ctx)
}
