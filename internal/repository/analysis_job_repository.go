package repository

import (
	"study_assistant_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type AnalysisJobRepository struct {
	DB *gorm.DB
}

func NewAnalysisJobRepository(db *gorm.DB) *AnalysisJobRepository {
	return &AnalysisJobRepository{DB: db}
}

func (r *AnalysisJobRepository) Create(job *model.AnalysisJob) error {
	if job.ID == "" {
		job.ID = model.GenerateUUID()
	}
	if job.Status == "" {
		job.Status = model.JobQueued
	}
	return r.DB.Create(job).Error
}

func (r *AnalysisJobRepository) FindByID(id string) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	err := r.DB.Where("id = ?", id).First(&job).Error
	return &job, err
}

func (r *AnalysisJobRepository) MarkRunning(id string) error {
	now := time.Now()
	return r.DB.Model(&model.AnalysisJob{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     model.JobRunning,
		"started_at": now,
	}).Error
}

// Finish 记录任务的最终状态
func (r *AnalysisJobRepository) Finish(id string, status model.JobStatus, topicCount int, errMsg, rawReply string) error {
	now := time.Now()
	return r.DB.Model(&model.AnalysisJob{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      status,
		"topic_count": topicCount,
		"error":       errMsg,
		"raw_reply":   rawReply,
		"finished_at": now,
	}).Error
}

// ListUnfinished 进程重启后需要重新入队的任务
func (r *AnalysisJobRepository) ListUnfinished() ([]model.AnalysisJob, error) {
	var jobs []model.AnalysisJob
	err := r.DB.Where("status IN ?", []model.JobStatus{model.JobQueued, model.JobRunning}).
		Order("created_at ASC").
		Find(&jobs).Error
	return jobs, err
}

func (r *AnalysisJobRepository) LatestForMaterial(materialID uint) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	err := r.DB.Where("material_id = ?", materialID).Order("created_at DESC").First(&job).Error
	return &job, err
}
