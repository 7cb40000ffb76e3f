package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quickquiz/quickquiz/config"
	"github.com/quickquiz/quickquiz/database"
	_ "github.com/quickquiz/quickquiz/docs" // Swagger docs
	"github.com/quickquiz/quickquiz/internal/auth"
	studentctrl "github.com/quickquiz/quickquiz/internal/controller/student"
	teacherctrl "github.com/quickquiz/quickquiz/internal/controller/teacher"
	"github.com/quickquiz/quickquiz/internal/logger"
	"github.com/quickquiz/quickquiz/internal/model"
	"github.com/quickquiz/quickquiz/internal/repository"
	"github.com/quickquiz/quickquiz/internal/scheduler"
	"github.com/quickquiz/quickquiz/internal/service"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Quick Quiz API
// @version 1.0
// @description Timed assessment engine: AI-generated quizzes with scheduled windows, timed attempts and automatic grading.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()

	app := fx.New(
		// Core application components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewGinEngine,
			auth.NewMiddleware,
			scheduler.NewRealClock,
			scheduler.New,
		),

		// Repositories layer
		fx.Provide(
			repository.NewTestRepository,
			repository.NewQuestionRepository,
			repository.NewAttemptRepository,
			repository.NewQuestionAttemptRepository,
			repository.NewCourseRepository,
			repository.NewEnrollmentRepository,
		),

		// Services layer
		fx.Provide(
			service.NewGeminiQuestionGenerator,
			service.NewAttemptService,
			// The lifecycle service finalizes open attempts through the
			// attempt service when a test completes.
			func(
				db *gorm.DB,
				testRepo repository.TestRepository,
				courseRepo repository.CourseRepository,
				sched *scheduler.Scheduler,
				clock scheduler.Clock,
				generator service.QuestionGenerator,
				attempts service.AttemptService,
			) service.TestLifecycleService {
				return service.NewTestLifecycleService(db, testRepo, courseRepo, sched, clock, generator, attempts)
			},
			service.NewEnrollmentService,
			service.NewAnalyticsService,
		),

		// API controllers layer
		fx.Provide(
			teacherctrl.NewTestController,
			studentctrl.NewStudentController,
		),

		fx.Invoke(AutoMigrateDB),
		fx.Invoke(StartScheduler),
		fx.Invoke(RegisterRoutesAndStartServer),
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

	// Swagger UI at /swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// StartScheduler runs the timer loop for the app's lifetime and re-arms the
// lifecycle timers of tests that were mid-window at the last shutdown.
func StartScheduler(lc fx.Lifecycle, sched *scheduler.Scheduler, lifecycle service.TestLifecycleService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sched.Start()
			return lifecycle.RestoreSchedules(ctx)
		},
		OnStop: func(ctx context.Context) error {
			sched.Stop()
			return nil
		},
	})
}

// RegisterRoutesAndStartServer wires the role-scoped route groups and manages
// the HTTP server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	authMW *auth.Middleware,
	teacherCtl *teacherctrl.TestController,
	studentCtl *studentctrl.StudentController,
) {
	api := router.Group("/api/v1")
	api.Use(authMW.Authenticate())

	teacherGroup := api.Group("/teacher")
	teacherGroup.Use(authMW.RequireRole(model.RoleTeacher))
	{
		tests := teacherGroup.Group("/tests")
		tests.POST("", teacherCtl.CreateTest)
		tests.GET("", teacherCtl.ListTests)
		tests.GET("/:test_id", teacherCtl.GetTest)
		tests.DELETE("/:test_id", teacherCtl.DeleteTest)
		tests.POST("/:test_id/publish", teacherCtl.PublishTest)
		tests.PUT("/:test_id/duration", teacherCtl.ExtendDuration)
		tests.PUT("/:test_id/structure", teacherCtl.EditStructure)
		tests.GET("/:test_id/analytics", teacherCtl.TestAnalytics)
	}

	studentGroup := api.Group("/student")
	studentGroup.Use(authMW.RequireRole(model.RoleStudent))
	{
		courses := studentGroup.Group("/courses")
		courses.GET("", studentCtl.MyCourses)
		courses.GET("/available", studentCtl.AvailableCourses)
		courses.POST("/enroll", studentCtl.Enroll)
		courses.DELETE("/:course_id", studentCtl.Unenroll)

		studentGroup.GET("/tests", studentCtl.ListTests)
		studentGroup.POST("/tests/:test_id/attempts", studentCtl.StartAttempt)

		attempts := studentGroup.Group("/attempts")
		attempts.GET("/:attempt_id", studentCtl.AttemptSummary)
		attempts.GET("/:attempt_id/questions", studentCtl.AttemptQuestions)
		attempts.PUT("/:attempt_id/answers", studentCtl.SaveAnswer)
		attempts.POST("/:attempt_id/submit", studentCtl.SubmitAttempt)

		studentGroup.GET("/results", studentCtl.MyResults)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Quick Quiz API server starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
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

// AutoMigrateDB creates the schema. The partial unique index guaranteeing at
// most one in-progress attempt per (student, test) is raw SQL: gorm's index
// tags cannot express the WHERE clause.
func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Enrollment{},
		&model.Test{},
		&model.Question{},
		&model.Attempt{},
		&model.QuestionAttempt{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}

	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_one_in_progress
		ON attempts (student_id, test_id) WHERE status = 'in_progress'`).Error
	if err != nil {
		log.Error().Err(err).Msg("Failed to create partial unique index on attempts")
		return err
	}

	log.Info().Msg("Database migration completed")
	return nil
}
