package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/migrant-health-api/internal/application/auth"
	"github.com/migrant-health-api/internal/application/healthrecord"
	"github.com/migrant-health-api/internal/application/qr"
	"github.com/migrant-health-api/internal/application/report"
	"github.com/migrant-health-api/internal/application/user"
	"github.com/migrant-health-api/internal/config"
	"github.com/migrant-health-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/migrant-health-api/internal/infrastructure/jwt"
	s3infra "github.com/migrant-health-api/internal/infrastructure/s3"
	"github.com/migrant-health-api/internal/infrastructure/sns"
	"github.com/migrant-health-api/internal/transport/http/handler"
	appmiddleware "github.com/migrant-health-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    *dynamo.UserRepo
	RecordRepo  *dynamo.HealthRecordRepo
	ReportRepo  *dynamo.ReportRepo
	QRRepo      *dynamo.QRCodeRepo
	S3Store     *s3infra.Store
	SMSSender   sns.SMSSender
	JWTProvider *jwtinfra.Provider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:            deps.UserRepo,
		Registrations:       auth.NewRegistrationStore(cfg.OTPTTL, nil),
		SMSSender:           deps.SMSSender,
		JWTProvider:         deps.JWTProvider,
		OTPTTL:              cfg.OTPTTL,
		MaxOTPAttempts:      cfg.MaxOTPAttempts,
		MaxLoginFailures:    cfg.MaxLoginFailures,
		LockDuration:        cfg.LockDuration,
		ExposeChallengeCode: cfg.ExposeChallengeCode,
	})
	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:   deps.UserRepo,
		RecordRepo: deps.RecordRepo,
		ReportRepo: deps.ReportRepo,
		QRRepo:     deps.QRRepo,
	})
	recordSvc := healthrecord.NewService(healthrecord.ServiceDeps{
		RecordRepo: deps.RecordRepo,
	})
	reportSvc := report.NewService(report.ServiceDeps{
		ReportRepo: deps.ReportRepo,
		RecordRepo: deps.RecordRepo,
		FileStore:  deps.S3Store,
	})
	qrSvc := qr.NewService(qr.ServiceDeps{
		QRRepo:     deps.QRRepo,
		UserRepo:   deps.UserRepo,
		RecordRepo: deps.RecordRepo,
		ReportRepo: deps.ReportRepo,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	userH := handler.NewUserHandler(userSvc)
	recordH := handler.NewRecordHandler(recordSvc)
	reportH := handler.NewReportHandler(reportSvc)
	qrH := handler.NewQRHandler(qrSvc)

	r.Get("/", healthH.Banner)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		r.With(sensitiveRL.Limit).Post("/auth/send-otp-registration", authH.SendRegistrationOTP)
		r.With(sensitiveRL.Limit).Post("/auth/verify-otp-registration", authH.VerifyRegistrationOTP)
		r.With(sensitiveRL.Limit).Post("/auth/send-otp-login", authH.SendLoginOTP)
		r.With(sensitiveRL.Limit).Post("/auth/verify-otp-login", authH.VerifyLoginOTP)

		r.With(sensitiveRL.Limit).Post("/qr/scan", qrH.Scan)
		r.With(sensitiveRL.Limit).Get("/reports/access/{code}", reportH.AccessByCode)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/auth/logout", authH.Logout)

			r.Get("/users/profile", userH.GetProfile)
			r.Put("/users/profile", userH.UpdateProfile)
			r.Get("/users/dashboard", userH.Dashboard)
			r.Get("/users/statistics", userH.Statistics)
			r.Put("/users/deactivate", userH.Deactivate)

			r.Post("/health-records", recordH.Create)
			r.Get("/health-records", recordH.List)
			r.Get("/health-records/timeline", recordH.Timeline)
			r.Get("/health-records/search", recordH.Search)
			r.Get("/health-records/summary", recordH.Summary)
			r.Get("/health-records/{id}", recordH.Get)
			r.Put("/health-records/{id}", recordH.Update)
			r.Delete("/health-records/{id}", recordH.Delete)

			r.Post("/reports", reportH.Upload)
			r.Get("/reports", reportH.List)
			r.Get("/reports/{id}", reportH.Get)
			r.Put("/reports/{id}", reportH.Update)
			r.Delete("/reports/{id}", reportH.Delete)
			r.Get("/reports/{id}/download", reportH.Download)

			r.Post("/qr/generate", qrH.Generate)
			r.Get("/qr", qrH.GetCard)
		})
	})

	return r
}
