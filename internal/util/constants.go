package util

const (
	DateFormat        = "2006-01-02"
	HistoryTimeFormat = "02 Jan 2006, 03:04 PM"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
	StorageDrive = "drive"
)

// 文件上传相关常量
const (
	MimePDF       = "application/pdf"
	MaxUploadSize = 50 << 20
)

const (
	DefaultPlanDays        = 7
	DefaultPlanHoursPerDay = 2
	MaxPlanDays            = 60
	MaxPlanHoursPerDay     = 16
	DefaultQuizQuestions   = 5
	MaxQuizQuestions       = 20
	// ActiveUserWindowDays 管理员统计中"活跃用户"的时间窗口
	ActiveUserWindowDays = 30
)
