package controller

import (
	"study_assistant_backend/internal/service"
	"study_assistant_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type StudyPlanController struct {
	PlanService *service.StudyPlanService
}

func NewStudyPlanController(planService *service.StudyPlanService) *StudyPlanController {
	return &StudyPlanController{PlanService: planService}
}

// GeneratePlanRequest totalDays/hoursPerDay 为 0 时取默认值 7 / 2
// swagger:model GeneratePlanRequest
type GeneratePlanRequest struct {
	MaterialIDs []uint `json:"material_ids"`
	TotalDays   int    `json:"total_days"`
	HoursPerDay int    `json:"hours_per_day"`
}

// Generate godoc
// @Summary 生成学习计划
// @Description 根据所选资料的主题调用模型生成按天排列的学习计划
// @Tags 学习计划
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body GeneratePlanRequest true "计划参数"
// @Success 201 {object} util.Response{data=service.PlanResponse} "创建成功"
// @Failure 400 {object} util.Response "未选择资料或天数/时长超出范围"
// @Failure 404 {object} util.Response "资料不存在或没有主题"
// @Failure 500 {object} util.Response "模型返回无法解析，data 中附带原始输出"
// @Router /api/timetable/generate-plan [post]
func (c *StudyPlanController) Generate(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req GeneratePlanRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	plan, err := c.PlanService.Generate(ctx.Request.Context(), claims.UserID, req.MaterialIDs, req.TotalDays, req.HoursPerDay)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, plan)
}

// MyPlan godoc
// @Summary 获取最近的学习计划
// @Tags 学习计划
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.PlanResponse} "成功"
// @Failure 404 {object} util.Response "没有学习计划"
// @Router /api/timetable/my-plan [get]
func (c *StudyPlanController) MyPlan(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	plan, err := c.PlanService.GetLatest(ctx.Request.Context(), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, plan)
}

// UpdatePlanRequest 测验结果
type UpdatePlanRequest struct {
	TopicID        uint `json:"topic_id" binding:"required"`
	Score          int  `json:"score" binding:"min=0"`
	TotalQuestions int  `json:"total_questions" binding:"required,min=1"`
}

// Update godoc
// @Summary 根据测验结果修订学习计划
// @Description 没有计划或主题不在计划内时返回 updated=false 且不做修改
// @Tags 学习计划
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body UpdatePlanRequest true "测验结果"
// @Success 200 {object} util.Response{data=service.PlanRevision} "成功"
// @Failure 404 {object} util.Response "主题不存在"
// @Failure 500 {object} util.Response "模型返回无法解析，data 中附带原始输出"
// @Router /api/timetable/update-plan [post]
func (c *StudyPlanController) Update(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req UpdatePlanRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	revision, err := c.PlanService.Revise(ctx.Request.Context(), claims.UserID, req.TopicID, req.Score, req.TotalQuestions)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, revision)
}
