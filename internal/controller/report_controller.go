package controller

import (
	"study_assistant_backend/internal/service"
	"study_assistant_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ReportController struct {
	ReportService *service.ReportService
}

func NewReportController(reportService *service.ReportService) *ReportController {
	return &ReportController{ReportService: reportService}
}

// PerformanceSummary godoc
// @Summary 学习表现汇总
// @Description 学习率、涉及科目以及按时间排列的成绩走势
// @Tags 报告
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.PerformanceSummary} "成功"
// @Router /api/reports/performance-summary [get]
func (c *ReportController) PerformanceSummary(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	summary, err := c.ReportService.PerformanceSummary(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// QuizHistory godoc
// @Summary 测验历史
// @Tags 报告
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.QuizHistoryItem} "成功"
// @Router /api/reports/quiz-history [get]
func (c *ReportController) QuizHistory(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	history, err := c.ReportService.QuizHistory(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, history)
}

// UserStats godoc
// @Summary 用户统计
// @Description 总用户数、30天内登录的活跃用户数和非活跃用户数
// @Tags 管理
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.UserStats} "成功"
// @Failure 403 {object} util.Response "需要管理员权限"
// @Router /api/admin/user-stats [get]
func (c *ReportController) UserStats(ctx *gin.Context) {
	stats, err := c.ReportService.UserStats()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}
