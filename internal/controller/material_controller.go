package controller

import (
	"fmt"
	"net/http"
	"strings"
	"study_assistant_backend/internal/service"
	"study_assistant_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type MaterialController struct {
	MaterialService *service.MaterialService
}

func NewMaterialController(materialService *service.MaterialService) *MaterialController {
	return &MaterialController{MaterialService: materialService}
}

// Upload godoc
// @Summary 上传学习资料
// @Description 上传 PDF 资料并排队进行主题分析，返回资料与分析任务
// @Tags 学习资料
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   file formData file true "PDF 文件"
// @Param   subject formData string true "科目"
// @Success 202 {object} util.Response{data=service.UploadResult} "已接收，分析排队中"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 413 {object} util.Response "文件过大"
// @Failure 500 {object} util.Response "存储服务异常"
// @Router /api/upload [post]
func (c *MaterialController) Upload(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	subject := strings.TrimSpace(ctx.PostForm("subject"))
	file, err := ctx.FormFile("file")
	if err != nil || subject == "" {
		util.BadRequest(ctx, "file and subject are required")
		return
	}
	if file.Size > util.MaxUploadSize {
		util.Error(ctx, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d MB", util.MaxUploadSize>>20))
		return
	}

	src, err := file.Open()
	if err != nil {
		util.BadRequest(ctx, "cannot read uploaded file")
		return
	}
	defer src.Close()

	result, err := c.MaterialService.Upload(ctx.Request.Context(), service.UploadInput{
		OwnerID:  claims.UserID,
		Filename: file.Filename,
		Subject:  subject,
		Size:     file.Size,
		Reader:   src,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Accepted(ctx, result)
}

// List godoc
// @Summary 我的学习资料
// @Tags 学习资料
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Material} "成功"
// @Router /api/materials [get]
func (c *MaterialController) List(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	materials, err := c.MaterialService.ListForUser(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, materials)
}

// Get godoc
// @Summary 获取学习资料
// @Tags 学习资料
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "资料ID"
// @Success 200 {object} util.Response{data=model.Material} "成功"
// @Failure 403 {object} util.Response "无权访问"
// @Failure 404 {object} util.Response "资料不存在"
// @Router /api/materials/{id} [get]
func (c *MaterialController) Get(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}

	material, err := c.MaterialService.Authorize(claims.UserID, claims.Role, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, material)
}

type UpdateMaterialRequest struct {
	Title   string `json:"title"`
	Subject string `json:"subject"`
}

// Update godoc
// @Summary 更新资料标题或科目
// @Tags 学习资料
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "资料ID"
// @Param   body body UpdateMaterialRequest true "为空的字段保持不变"
// @Success 200 {object} util.Response{data=model.Material} "成功"
// @Failure 403 {object} util.Response "无权访问"
// @Failure 404 {object} util.Response "资料不存在"
// @Router /api/materials/{id} [put]
func (c *MaterialController) Update(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}

	var req UpdateMaterialRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	material, err := c.MaterialService.UpdateMetadata(claims.UserID, claims.Role, id, req.Title, req.Subject)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, material)
}

// Delete godoc
// @Summary 删除学习资料
// @Description 先删除存储中的文件，再删除主题、授权和资料记录
// @Tags 学习资料
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "资料ID"
// @Success 200 {object} util.Response "删除成功"
// @Failure 403 {object} util.Response "无权访问"
// @Failure 404 {object} util.Response "资料不存在"
// @Failure 500 {object} util.Response "存储服务异常"
// @Router /api/materials/{id} [delete]
func (c *MaterialController) Delete(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(ctx, "id")
	if !ok {
		return
	}

	if err := c.MaterialService.Delete(ctx.Request.Context(), claims.UserID, claims.Role, id); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"message": "Material deleted"})
}
