package model

import (
	"time"
)

const QuestionTypeMCQ = "mcq"

// QuizQuestion 针对某个主题生成的单选题
// swagger:model QuizQuestion
type QuizQuestion struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TopicID       uint      `gorm:"index;not null" json:"topicId"`
	QuestionText  string    `gorm:"type:text;not null" json:"questionText"`
	OptionA       string    `gorm:"size:255" json:"optionA"`
	OptionB       string    `gorm:"size:255" json:"optionB"`
	OptionC       string    `gorm:"size:255" json:"optionC"`
	OptionD       string    `gorm:"size:255" json:"optionD"`
	CorrectOption string    `gorm:"size:1" json:"correctOption"`
	QuestionType  string    `gorm:"size:50;default:'mcq'" json:"questionType"`
	Difficulty    string    `gorm:"size:20;default:'medium'" json:"difficulty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// QuizResult 存储用户的测验结果，只追加不修改
type QuizResult struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uint      `gorm:"index;not null" json:"userId"`
	TopicID        uint      `gorm:"index;not null" json:"topicId"`
	Topic          *Topic    `gorm:"foreignKey:TopicID" json:"topic,omitempty"`
	Score          int       `gorm:"not null" json:"score"`
	TotalQuestions int       `gorm:"not null" json:"totalQuestions"`
	CreatedAt      time.Time `gorm:"index" json:"timestamp"`
}

func (QuizResult) TableName() string {
	return "quiz_results"
}
