package app

import (
	"study_assistant_backend/docs"
	"study_assistant_backend/internal/config"
	"study_assistant_backend/internal/middleware"
	"study_assistant_backend/internal/model"
	"study_assistant_backend/internal/util"
	"study_assistant_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.NoRoute(util.NotFound)

	// 1. 公共路由(无需登录)
	registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		registerStudentRoutes(authGroup, c)

		// 3. 管理员接口
		admin := authGroup.Group("/admin")
		admin.Use(middleware.RoleMiddleware(model.Admin))
		{
			admin.GET("/user-stats", c.report.UserStats)
		}
	}
}

func registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)

		auth := public.Group("/auth")
		{
			auth.POST("/signup", c.auth.Signup)
			auth.POST("/verify-signup-otp", c.auth.VerifySignupOTP)
			auth.POST("/login", c.auth.Login)
			auth.POST("/token/refresh", c.auth.Refresh)
			auth.POST("/send-otp", c.auth.SendOTP)
			auth.POST("/verify-otp", c.auth.VerifyOTP)
		}
	}
}

func registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/auth/profile", c.auth.GetProfile)
	rg.PUT("/auth/update-profile", c.auth.UpdateProfile)

	// 学习资料
	rg.POST("/upload", c.material.Upload)
	rg.GET("/materials", c.material.List)
	rg.GET("/materials/:id", c.material.Get)
	rg.PUT("/materials/:id", c.material.Update)
	rg.DELETE("/materials/:id", c.material.Delete)

	// 主题分析
	analysis := rg.Group("/topic-analysis")
	{
		analysis.POST("/analyze/:materialId", c.analysis.Analyze)
		analysis.GET("/topics/:materialId", c.analysis.Topics)
		analysis.GET("/jobs/:jobId", c.analysis.Job)
	}

	// 学习计划
	timetable := rg.Group("/timetable")
	{
		timetable.POST("/generate-plan", c.plan.Generate)
		timetable.GET("/my-plan", c.plan.MyPlan)
		timetable.POST("/update-plan", c.plan.Update)
	}

	// 测验
	quiz := rg.Group("/quiz")
	{
		quiz.POST("/generate/:topicId", c.quiz.Generate)
		quiz.GET("/get/:topicId", c.quiz.Questions)
		quiz.POST("/submit-response", c.quiz.Submit)
	}

	// 报告
	reports := rg.Group("/reports")
	{
		reports.GET("/performance-summary", c.report.PerformanceSummary)
		reports.GET("/quiz-history", c.report.QuizHistory)
	}
}
