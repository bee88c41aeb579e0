package model

type DifficultyClass string

const (
	DifficultyEasy   DifficultyClass = "easy"
	DifficultyMedium DifficultyClass = "medium"
	DifficultyHard   DifficultyClass = "hard"
)

func (d DifficultyClass) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

const (
	MinDifficultyScore = 1.0
	MaxDifficultyScore = 10.0
)

// Topic 从资料中分析出的单个主题，同一资料内序号唯一
// swagger:model Topic
type Topic struct {
	DerivedModel
	MaterialID      uint            `gorm:"not null;uniqueIndex:idx_topic_material_sequence" json:"materialId"`
	Material        *Material       `gorm:"foreignKey:MaterialID" json:"material,omitempty"`
	TopicName       string          `gorm:"size:255;not null" json:"topicName"`
	DifficultyScore float64         `gorm:"type:decimal(4,2);not null" json:"difficultyScore"`
	DifficultyClass DifficultyClass `gorm:"size:10;not null" json:"difficultyClass"`
	Summary         string          `gorm:"type:text" json:"summary"`
	SequenceNumber  int             `gorm:"not null;uniqueIndex:idx_topic_material_sequence" json:"sequenceNumber"`
}

func (Topic) TableName() string {
	return "topics"
}
