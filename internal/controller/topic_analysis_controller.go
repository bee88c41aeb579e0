package controller

import (
	"study_assistant_backend/internal/service"
	"study_assistant_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TopicAnalysisController struct {
	AnalysisService *service.TopicAnalysisService
	MaterialService *service.MaterialService
}

func NewTopicAnalysisController(analysisService *service.TopicAnalysisService, materialService *service.MaterialService) *TopicAnalysisController {
	return &TopicAnalysisController{
		AnalysisService: analysisService,
		MaterialService: materialService,
	}
}

// Analyze godoc
// @Summary 触发主题分析
// @Description 为资料创建分析任务并入队，客户端轮询任务状态
// @Tags 主题分析
// @Produce  json
// @Security ApiKeyAuth
// @Param   materialId path int true "资料ID"
// @Success 202 {object} util.Response{data=model.AnalysisJob} "已入队"
// @Failure 404 {object} util.Response "资料不存在"
// @Failure 503 {object} util.Response "队列已满"
// @Router /api/topic-analysis/analyze/{materialId} [post]
func (c *TopicAnalysisController) Analyze(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "materialId")
	if !ok {
		return
	}
	if _, err := c.MaterialService.Authorize(claims.UserID, claims.Role, id); err != nil {
		respondError(ctx, err)
		return
	}

	job, err := c.AnalysisService.Enqueue(ctx.Request.Context(), claims.UserID, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Accepted(ctx, job)
}

// Topics godoc
// @Summary 获取资料的主题列表
// @Description 按序号升序返回
// @Tags 主题分析
// @Produce  json
// @Security ApiKeyAuth
// @Param   materialId path int true "资料ID"
// @Success 200 {object} util.Response{data=[]model.Topic} "成功"
// @Failure 404 {object} util.Response "资料不存在"
// @Router /api/topic-analysis/topics/{materialId} [get]
func (c *TopicAnalysisController) Topics(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "materialId")
	if !ok {
		return
	}
	if _, err := c.MaterialService.Authorize(claims.UserID, claims.Role, id); err != nil {
		respondError(ctx, err)
		return
	}

	topics, err := c.AnalysisService.ListTopics(id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, topics)
}

// Job godoc
// @Summary 查询分析任务状态
// @Tags 主题分析
// @Produce  json
// @Security ApiKeyAuth
// @Param   jobId path string true "任务ID"
// @Success 200 {object} util.Response{data=model.AnalysisJob} "成功"
// @Failure 404 {object} util.Response "任务不存在"
// @Router /api/topic-analysis/jobs/{jobId} [get]
func (c *TopicAnalysisController) Job(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	job, err := c.AnalysisService.GetJob(ctx.Param("jobId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if _, err := c.MaterialService.Authorize(claims.UserID, claims.Role, job.MaterialID); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, job)
}
