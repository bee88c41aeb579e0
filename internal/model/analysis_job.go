package model

import (
	"time"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	// JobSkipped 资料中没有可提取的文本
	JobSkipped JobStatus = "skipped"
)

// AnalysisJob 后台主题分析任务，客户端轮询其状态
// swagger:model AnalysisJob
type AnalysisJob struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MaterialID uint       `gorm:"index;not null" json:"materialId"`
	UserID     uint       `gorm:"index" json:"userId"`
	Status     JobStatus  `gorm:"size:20;not null;default:'queued'" json:"status"`
	TopicCount int        `json:"topicCount"`
	Error      string     `gorm:"type:text" json:"error,omitempty"`
	RawReply   string     `gorm:"type:text" json:"rawReply,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}

func (j *AnalysisJob) Finished() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed || j.Status == JobSkipped
}
