package app

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"study_assistant_backend/internal/config"
	"study_assistant_backend/internal/controller"
	"study_assistant_backend/internal/repository"
	"study_assistant_backend/internal/service"
	"study_assistant_backend/pkg/configwatcher"
	"study_assistant_backend/pkg/database"
	"study_assistant_backend/pkg/logger"
	"study_assistant_backend/pkg/monitoring"
	"study_assistant_backend/pkg/security"
	"study_assistant_backend/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	// ConfigFile 热更新监听的配置文件，为空时不监听
	ConfigFile string
	Router     *gin.Engine
	DB         *gorm.DB
	Redis      *redis.Client

	llm             service.LLMClient
	services        *services
	worker          *service.AnalysisWorker
	limiter         *security.RateLimiter
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user      *repository.UserRepository
	material  *repository.MaterialRepository
	topic     *repository.TopicRepository
	job       *repository.AnalysisJobRepository
	studyPlan *repository.StudyPlanRepository
	quiz      *repository.QuizRepository
}

type services struct {
	auth     *service.AuthService
	material *service.MaterialService
	analysis *service.TopicAnalysisService
	plan     *service.StudyPlanService
	quiz     *service.QuizService
	report   *service.ReportService
}

type controllers struct {
	auth     *controller.AuthController
	material *controller.MaterialController
	analysis *controller.TopicAnalysisController
	plan     *controller.StudyPlanController
	quiz     *controller.QuizController
	report   *controller.ReportController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		material:  repository.NewMaterialRepository(db),
		topic:     repository.NewTopicRepository(db),
		job:       repository.NewAnalysisJobRepository(db),
		studyPlan: repository.NewStudyPlanRepository(db),
		quiz:      repository.NewQuizRepository(db),
	}
}

func (a *App) newQueue(cfg *config.Config) service.JobQueue {
	if cfg.Worker.Queue == "redis" {
		return service.NewRedisJobQueue(a.Redis, cfg.Worker.QueueKey)
	}
	return service.NewMemoryJobQueue(cfg.Worker.BufferSize)
}

func (a *App) initServices(repos *repositories, cfg *config.Config, storage service.StorageProvider, queue service.JobQueue) *services {
	s := &services{}
	timeout := cfg.AI.Timeout()
	extractor := service.NewTextExtractor()
	analyzer := service.NewTopicAnalyzer(a.llm, cfg.AI.MaxTextChars, timeout)

	s.auth = service.NewAuthService(repos.user, cfg, service.NewMailer(cfg.Mail))
	s.analysis = service.NewTopicAnalysisService(repos.material, repos.topic, repos.job, storage, extractor, analyzer, queue)
	s.material = service.NewMaterialService(repos.material, storage, s.analysis)
	s.plan = service.NewStudyPlanService(repos.studyPlan, repos.material, repos.topic, a.llm, timeout)
	s.quiz = service.NewQuizService(repos.quiz, repos.topic, storage, extractor, a.llm, cfg.AI.MaxTextChars, timeout)
	s.report = service.NewReportService(repos.quiz, repos.user)
	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		auth:     controller.NewAuthController(s.auth),
		material: controller.NewMaterialController(s.material),
		analysis: controller.NewTopicAnalysisController(s.analysis, s.material),
		plan:     controller.NewStudyPlanController(s.plan),
		quiz:     controller.NewQuizController(s.quiz),
		report:   controller.NewReportController(s.report),
		health:   controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(a.limiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// registerConfigCallbacks 模型名称和限流参数支持热更新，其余配置需要重启
func (a *App) registerConfigCallbacks() {
	a.RegisterConfigCallback(func(cfg *config.Config) {
		if cfg.AI.Model != "" && service.SetLLMModel(a.llm, cfg.AI.Model) {
			logger.Log.Info("AI model updated", zap.String("model", cfg.AI.Model))
		}
	})
	a.RegisterConfigCallback(func(cfg *config.Config) {
		a.limiter.Update(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
		logger.Log.Info("Rate limit updated",
			zap.Int("max_requests", cfg.RateLimit.MaxRequests),
			zap.Int("window_minutes", cfg.RateLimit.WindowMinutes),
		)
	})
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.ForceMigrate || cfg.Server.Mode == "debug"
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	app.Redis = rdb

	ctx := context.Background()
	app.llm, err = service.NewLLMClient(ctx, cfg.AI)
	if err != nil {
		logger.Log.Fatal("Failed to initialize AI client", zap.Error(err))
	}

	storage, err := service.NewStorageProvider(ctx, &cfg.Storage)
	if err != nil {
		logger.Log.Fatal("Failed to initialize storage", zap.Error(err), zap.String("type", cfg.Storage.Type))
	}

	queue := app.newQueue(cfg)
	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, storage, queue)
	app.worker = service.NewAnalysisWorker(queue, app.services.analysis.RunJob, cfg.Worker.Concurrency)
	controllers := app.initControllers(app.services)

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("study-assistant", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.limiter = security.NewRateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, repos, cfg)

	if storage.Name() == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.registerConfigCallbacks()
	return app
}

func (a *App) startBackgroundTasks(ctx context.Context) {
	a.worker.Start(ctx)

	// redis 队列中排队的任务重启后仍在，只需补回执行中断的任务
	recovered, err := a.services.analysis.RecoverJobs(ctx, a.Config.Worker.Queue != "redis")
	if err != nil {
		logger.Log.Error("Failed to recover analysis jobs", zap.Error(err))
	} else if recovered > 0 {
		logger.Log.Info("Recovered analysis jobs", zap.Int("count", recovered))
	}

	go a.limiter.RunJanitor(ctx)

	if a.ConfigFile != "" {
		if _, err := os.Stat(a.ConfigFile); err == nil {
			if err := configwatcher.Watch(ctx, a.ConfigFile, a.applyConfig); err != nil {
				logger.Log.Warn("Config hot reload disabled", zap.Error(err))
			}
		}
	}
}

func (a *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundTasks(ctx)

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 先停止后台分析，进行中的任务会执行完
	a.worker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if closer, ok := a.llm.(io.Closer); ok {
		closer.Close()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	log.Println("Server exiting")
}
