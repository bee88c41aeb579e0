package repository

import (
	"study_assistant_backend/internal/model"

	"gorm.io/gorm"
)

type TopicRepository struct {
	DB *gorm.DB
}

func NewTopicRepository(db *gorm.DB) *TopicRepository {
	return &TopicRepository{DB: db}
}

// ReplaceForMaterial 删除资料的全部旧主题后批量写入新主题，在同一事务中完成。
// 新集合中序号重复时唯一索引报错，事务回滚，旧主题保持不变。
// 旧主题下的题目和测验记录一并删除。
func (r *TopicRepository) ReplaceForMaterial(materialID uint, topics []model.Topic) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		oldIDs := tx.Model(&model.Topic{}).Select("id").Where("material_id = ?", materialID)
		if err := tx.Where("topic_id IN (?)", oldIDs).Delete(&model.QuizQuestion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("topic_id IN (?)", oldIDs).Delete(&model.QuizResult{}).Error; err != nil {
			return err
		}
		if err := tx.Where("material_id = ?", materialID).Delete(&model.Topic{}).Error; err != nil {
			return err
		}

		if len(topics) == 0 {
			return nil
		}
		for i := range topics {
			topics[i].ID = 0
			topics[i].MaterialID = materialID
		}
		return tx.CreateInBatches(topics, 100).Error
	})
}

func (r *TopicRepository) ListByMaterial(materialID uint) ([]model.Topic, error) {
	var topics []model.Topic
	err := r.DB.Where("material_id = ?", materialID).Order("sequence_number ASC").Find(&topics).Error
	return topics, err
}

// ListByMaterials 预加载所属资料，按资料、序号排序
func (r *TopicRepository) ListByMaterials(materialIDs []uint) ([]model.Topic, error) {
	var topics []model.Topic
	if len(materialIDs) == 0 {
		return topics, nil
	}
	err := r.DB.Preload("Material").
		Where("material_id IN ?", materialIDs).
		Order("material_id ASC, sequence_number ASC").
		Find(&topics).Error
	return topics, err
}

func (r *TopicRepository) FindByID(id uint) (*model.Topic, error) {
	var topic model.Topic
	err := r.DB.Preload("Material").First(&topic, id).Error
	return &topic, err
}

func (r *TopicRepository) CountByMaterial(materialID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Topic{}).Where("material_id = ?", materialID).Count(&count).Error
	return count, err
}
