package repository

import (
	"study_assistant_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) CreateQuestions(questions []model.QuizQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	return r.DB.CreateInBatches(questions, 100).Error
}

func (r *QuizRepository) QuestionsByTopic(topicID uint) ([]model.QuizQuestion, error) {
	var questions []model.QuizQuestion
	err := r.DB.Where("topic_id = ?", topicID).Order("id ASC").Find(&questions).Error
	return questions, err
}

// AddResult 测验结果只追加
func (r *QuizRepository) AddResult(result *model.QuizResult) error {
	return r.DB.Create(result).Error
}

// ResultsForUser 预加载主题和资料；newestFirst 决定时间排序方向
func (r *QuizRepository) ResultsForUser(userID uint, newestFirst bool) ([]model.QuizResult, error) {
	order := "created_at ASC, id ASC"
	if newestFirst {
		order = "created_at DESC, id DESC"
	}

	var results []model.QuizResult
	err := r.DB.Preload("Topic.Material", func(db *gorm.DB) *gorm.DB {
		return db.Unscoped()
	}).
		Where("user_id = ?", userID).
		Order(order).
		Find(&results).Error
	return results, err
}
