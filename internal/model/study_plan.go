package model

import (
	"time"

	"gorm.io/datatypes"
)

// StudyPlanRequest 一次生成学习计划的参数，创建后不再修改
type StudyPlanRequest struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint       `gorm:"index;not null" json:"userId"`
	TotalDays   int        `gorm:"not null;default:7" json:"totalDays"`
	HoursPerDay int        `gorm:"not null;default:2" json:"hoursPerDay"`
	Materials   []Material `gorm:"many2many:study_plan_request_materials;" json:"materials,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (StudyPlanRequest) TableName() string {
	return "study_plan_requests"
}

// StudyPlan 与 StudyPlanRequest 一对一
type StudyPlan struct {
	ID        uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID uint              `gorm:"uniqueIndex;not null" json:"requestId"`
	Request   *StudyPlanRequest `gorm:"foreignKey:RequestID" json:"request,omitempty"`
	RawReply  datatypes.JSON    `json:"-"`
	RevisedAt *time.Time        `json:"revisedAt,omitempty"`
	CreatedAt time.Time         `gorm:"index" json:"createdAt"`
}

func (StudyPlan) TableName() string {
	return "study_plans"
}

// ScheduleTask 计划中的单个时间段任务，按 (day, id) 排序
type ScheduleTask struct {
	DerivedModel
	StudyPlanID uint   `gorm:"index;not null" json:"studyPlanId"`
	Day         int    `gorm:"not null" json:"day"`
	Duration    string `gorm:"size:100;not null" json:"duration"`
	Subject     string `gorm:"size:255;not null" json:"subject"`
	Topics      string `gorm:"type:text" json:"topics"`
	Notes       string `gorm:"type:text" json:"notes"`
}

func (ScheduleTask) TableName() string {
	return "schedule_tasks"
}
