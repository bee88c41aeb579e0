package repository

import (
	"study_assistant_backend/internal/model"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type StudyPlanRepository struct {
	DB *gorm.DB
}

func NewStudyPlanRepository(db *gorm.DB) *StudyPlanRepository {
	return &StudyPlanRepository{DB: db}
}

// Create 在一个事务中写入请求、计划和全部任务
func (r *StudyPlanRepository) Create(req *model.StudyPlanRequest, rawReply []byte, tasks []model.ScheduleTask) (*model.StudyPlan, error) {
	plan := &model.StudyPlan{RawReply: datatypes.JSON(rawReply)}

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		plan.RequestID = req.ID
		if err := tx.Create(plan).Error; err != nil {
			return err
		}
		return insertTasks(tx, plan.ID, tasks)
	})
	if err != nil {
		return nil, err
	}
	plan.Request = req
	return plan, nil
}

// LatestForUser 返回用户最近创建的计划，预加载请求及其资料
func (r *StudyPlanRepository) LatestForUser(userID uint) (*model.StudyPlan, error) {
	var plan model.StudyPlan
	err := r.DB.
		Joins("JOIN study_plan_requests ON study_plan_requests.id = study_plans.request_id").
		Where("study_plan_requests.user_id = ?", userID).
		Order("study_plans.created_at DESC, study_plans.id DESC").
		Preload("Request.Materials").
		First(&plan).Error
	return &plan, err
}

// ReplaceTasks 整体替换计划的任务，旧任务全部删除
func (r *StudyPlanRepository) ReplaceTasks(planID uint, rawReply []byte, tasks []model.ScheduleTask) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("study_plan_id = ?", planID).Delete(&model.ScheduleTask{}).Error; err != nil {
			return err
		}
		if err := insertTasks(tx, planID, tasks); err != nil {
			return err
		}
		return tx.Model(&model.StudyPlan{}).Where("id = ?", planID).Updates(map[string]interface{}{
			"raw_reply":  datatypes.JSON(rawReply),
			"revised_at": time.Now(),
		}).Error
	})
}

// Tasks 按 (day, id) 升序
func (r *StudyPlanRepository) Tasks(planID uint) ([]model.ScheduleTask, error) {
	var tasks []model.ScheduleTask
	err := r.DB.Where("study_plan_id = ?", planID).Order("day ASC, id ASC").Find(&tasks).Error
	return tasks, err
}

func insertTasks(tx *gorm.DB, planID uint, tasks []model.ScheduleTask) error {
	if len(tasks) == 0 {
		return nil
	}
	for i := range tasks {
		tasks[i].ID = 0
		tasks[i].StudyPlanID = planID
	}
	return tx.CreateInBatches(tasks, 200).Error
}
