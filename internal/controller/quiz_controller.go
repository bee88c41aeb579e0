package controller

import (
	"strconv"
	"study_assistant_backend/internal/service"
	"study_assistant_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// Generate godoc
// @Summary 为主题生成测验题
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   topicId path int true "主题ID"
// @Param   count query int false "题目数量" default(5)
// @Success 201 {object} util.Response{data=service.QuizGeneration} "创建成功"
// @Failure 404 {object} util.Response "主题不存在"
// @Failure 500 {object} util.Response "模型返回无法解析"
// @Router /api/quiz/generate/{topicId} [post]
func (c *QuizController) Generate(ctx *gin.Context) {
	id, ok := util.ParseIDParam(ctx, "topicId")
	if !ok {
		return
	}
	count, _ := strconv.Atoi(ctx.DefaultQuery("count", strconv.Itoa(util.DefaultQuizQuestions)))

	gen, err := c.QuizService.Generate(ctx.Request.Context(), id, count)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, gen)
}

// Questions godoc
// @Summary 获取主题的测验题
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   topicId path int true "主题ID"
// @Success 200 {object} util.Response{data=[]model.QuizQuestion} "成功"
// @Failure 404 {object} util.Response "主题不存在"
// @Router /api/quiz/get/{topicId} [get]
func (c *QuizController) Questions(ctx *gin.Context) {
	id, ok := util.ParseIDParam(ctx, "topicId")
	if !ok {
		return
	}

	questions, err := c.QuizService.ListByTopic(id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, questions)
}

type SubmitQuizRequest struct {
	TopicID        uint `json:"topic_id" binding:"required"`
	Score          int  `json:"score"`
	TotalQuestions int  `json:"total_questions" binding:"required"`
}

// Submit godoc
// @Summary 提交测验结果
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body SubmitQuizRequest true "测验结果"
// @Success 201 {object} util.Response{data=model.QuizResult} "创建成功"
// @Failure 400 {object} util.Response "分数不合法"
// @Failure 404 {object} util.Response "主题不存在"
// @Router /api/quiz/submit-response [post]
func (c *QuizController) Submit(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req SubmitQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.QuizService.SubmitResult(claims.UserID, req.TopicID, req.Score, req.TotalQuestions)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, result)
}
