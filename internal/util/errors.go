package util

import "errors"

var (
	ErrUserNotFound        = errors.New("用户不存在")
	ErrEmailRegistered     = errors.New("该邮箱已被注册")
	ErrUsernameTaken       = errors.New("用户名已被占用")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidOTP          = errors.New("invalid otp")
	ErrOTPExpired          = errors.New("otp has expired")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrMaterialNotFound    = errors.New("material not found")
	ErrTopicNotFound       = errors.New("topic not found")
	ErrPlanNotFound        = errors.New("study plan not found")
	ErrJobNotFound         = errors.New("analysis job not found")
	ErrNoMaterialsSelected = errors.New("no study materials selected")
	ErrNoTopics            = errors.New("no topic analysis data found")
	ErrNoDownloadURL       = errors.New("material has no stored file")
	ErrInvalidFileType     = errors.New("only pdf files are accepted")
	ErrInvalidQuizScore    = errors.New("score must be between 0 and total questions")
	ErrQueueFull           = errors.New("analysis queue is full")
	ErrObjectNotFound      = errors.New("stored object not found")
	ErrInvalidPlanRange    = errors.New("totalDays must be 1-60 and hoursPerDay 1-16")
)
