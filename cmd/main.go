package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lshigami/Margays/config"
	"github.com/lshigami/Margays/database"
	adminctrl "github.com/lshigami/Margays/internal/controller/admin"
	userctrl "github.com/lshigami/Margays/internal/controller/user"
	"github.com/lshigami/Margays/internal/logger"
	"github.com/lshigami/Margays/internal/middleware"
	"github.com/lshigami/Margays/internal/model"
	"github.com/lshigami/Margays/internal/repository"
	"github.com/lshigami/Margays/internal/service"
	"github.com/lshigami/Margays/internal/ws"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Proctored Assessment Session API
// @version 1.0
// @description Attempt session engine: timed proctored attempts with live countdown sync, autosave, violation escalation and automatic grading.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		// Core application components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewGinEngine,
		),

		// Repositories layer
		fx.Provide(
			repository.NewExamRepository,
			repository.NewQuestionRepository,
			repository.NewAttemptRepository,
			repository.NewViolationRepository,
		),

		// Realtime hub doubles as the services' notifier
		fx.Provide(
			ws.NewHub,
			func(h *ws.Hub) service.Notifier { return h },
		),

		// Services layer
		fx.Provide(
			service.NewGradingService,
			func(cfg *config.Config, notifier service.Notifier) service.TimerSyncService {
				interval := time.Duration(cfg.Session.TimerSyncIntervalSeconds) * time.Second
				return service.NewTimerSyncService(interval, notifier)
			},
			service.NewAttemptService,
			func(
				attemptRepo repository.AttemptRepository,
				examRepo repository.ExamRepository,
				violationRepo repository.ViolationRepository,
				attempts service.AttemptService,
				notifier service.Notifier,
			) service.ViolationService {
				return service.NewViolationService(attemptRepo, examRepo, violationRepo, attempts, notifier, service.DefaultSeverityByCategory)
			},
			func(examRepo repository.ExamRepository, attemptRepo repository.AttemptRepository, cfg *config.Config) service.ReclaimService {
				interval := time.Duration(cfg.Session.ReclaimIntervalSeconds) * time.Second
				return service.NewReclaimService(examRepo, attemptRepo, interval)
			},
		),

		// API controllers and websocket session handler
		fx.Provide(
			userctrl.NewAttemptController,
			adminctrl.NewReviewController,
			ws.NewSessionHandler,
		),

		fx.Invoke(WireTimerExpiry),
		fx.Invoke(StartReclaimScheduler),
		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(AutoMigrateDB),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// WireTimerExpiry connects the countdown table to the session coordinator:
// a countdown reaching zero forces submission exactly once. ForceSubmit is
// idempotent, so a candidate click racing the expiry is safe.
func WireTimerExpiry(timers service.TimerSyncService, attempts service.AttemptService) {
	timers.SetExpiryHandler(func(attemptID uint) {
		if _, err := attempts.ForceSubmit(attemptID, model.ForcedReasonTimeout); err != nil {
			log.Error().Err(err).Uint("attemptID", attemptID).Msg("Timeout force submit failed")
		}
	})
}

func StartReclaimScheduler(lc fx.Lifecycle, reclaim service.ReclaimService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			reclaim.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			reclaim.Stop()
			return nil
		},
	})
}

func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	attemptCtrl *userctrl.AttemptController,
	reviewCtrl *adminctrl.ReviewController,
	sessionHandler *ws.SessionHandler,
) {
	authed := router.Group("/api/v1", middleware.RequireAuth(cfg.JWTSecret))
	{
		authed.POST("/exams/:exam_id/attempts", attemptCtrl.StartAttempt)
		authed.POST("/attempts/:attempt_id/answers", attemptCtrl.SaveAnswer)
		authed.POST("/attempts/:attempt_id/submit", attemptCtrl.SubmitAttempt)
		authed.POST("/attempts/:attempt_id/violations", attemptCtrl.ReportViolation)
		authed.GET("/attempts/:attempt_id", attemptCtrl.GetAttempt)
		authed.GET("/my-attempts", attemptCtrl.GetMyAttempts)

		// The proctoring/timer channel; auth via token query param on upgrade.
		authed.GET("/ws", sessionHandler.Handle)
	}

	review := authed.Group("/admin", middleware.RequireRole(service.RoleInstructor, service.RoleAdmin))
	{
		review.GET("/attempts", reviewCtrl.GetAllAttempts)
		review.GET("/attempts/:attempt_id/violations", reviewCtrl.GetAttemptViolations)
		review.POST("/attempts/:attempt_id/grade", reviewCtrl.GradeAnswer)
		review.POST("/attempts/:attempt_id/abandon", reviewCtrl.MarkAbandoned)
		review.POST("/reclamation/run", reviewCtrl.RunReclamation)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Attempt session API starting on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.Exam{},
		&model.Question{},
		&model.Attempt{},
		&model.Answer{},
		&model.ViolationLog{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
