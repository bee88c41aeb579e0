package controller

import (
	"errors"
	"net/http"
	"study_assistant_backend/internal/service"
	"study_assistant_backend/internal/util"

	"github.com/gin-gonic/gin"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{util.ErrMaterialNotFound, http.StatusNotFound},
	{util.ErrTopicNotFound, http.StatusNotFound},
	{util.ErrPlanNotFound, http.StatusNotFound},
	{util.ErrJobNotFound, http.StatusNotFound},
	{util.ErrUserNotFound, http.StatusNotFound},
	{util.ErrNoTopics, http.StatusNotFound},
	{util.ErrPermissionDenied, http.StatusForbidden},
	{util.ErrInvalidCredentials, http.StatusUnauthorized},
	{util.ErrInvalidToken, http.StatusUnauthorized},
	{util.ErrEmailRegistered, http.StatusConflict},
	{util.ErrUsernameTaken, http.StatusConflict},
	{util.ErrInvalidOTP, http.StatusBadRequest},
	{util.ErrOTPExpired, http.StatusBadRequest},
	{util.ErrNoMaterialsSelected, http.StatusBadRequest},
	{util.ErrInvalidPlanRange, http.StatusBadRequest},
	{util.ErrInvalidFileType, http.StatusBadRequest},
	{util.ErrInvalidQuizScore, http.StatusBadRequest},
	{util.ErrNoDownloadURL, http.StatusBadRequest},
	{util.ErrQueueFull, http.StatusServiceUnavailable},
}

// respondError 把业务错误映射为 HTTP 状态码，未知错误记日志后返回 500
func respondError(ctx *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			util.Error(ctx, e.status, e.err.Error())
			return
		}
	}

	var malformed *service.MalformedReplyError
	if errors.As(err, &malformed) {
		util.ErrorWithData(ctx, http.StatusInternalServerError, "Failed to parse model response", gin.H{
			"error":        malformed.Reason,
			"raw_response": malformed.Raw,
		})
		return
	}

	var upstream *service.UpstreamError
	if errors.As(err, &upstream) {
		util.ErrorWithData(ctx, http.StatusInternalServerError, upstream.Service+" request failed", gin.H{
			"error": upstream.Err.Error(),
		})
		return
	}

	util.LogInternalError(ctx, err)
}

// currentUser 由 AuthMiddleware 写入，缺失时直接返回 401
func currentUser(ctx *gin.Context) (*util.Claims, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	return claims, true
}
