package repository

import (
	"study_assistant_backend/internal/model"

	"gorm.io/gorm"
)

type MaterialRepository struct {
	DB *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) *MaterialRepository {
	return &MaterialRepository{DB: db}
}

// Create 保存资料并授予上传者访问权限
func (r *MaterialRepository) Create(material *model.Material) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(material).Error; err != nil {
			return err
		}
		return tx.Create(&model.MaterialAccess{UserID: material.OwnerID, MaterialID: material.ID}).Error
	})
}

func (r *MaterialRepository) FindByID(id uint) (*model.Material, error) {
	var material model.Material
	err := r.DB.First(&material, id).Error
	return &material, err
}

// FindByIDs 返回存在的资料，不存在的 id 被忽略
func (r *MaterialRepository) FindByIDs(ids []uint) ([]model.Material, error) {
	var materials []model.Material
	if len(ids) == 0 {
		return materials, nil
	}
	err := r.DB.Where("id IN ?", ids).Order("id ASC").Find(&materials).Error
	return materials, err
}

// FindAccessible 返回用户有权访问的资料，最新上传在前
func (r *MaterialRepository) FindAccessible(userID uint) ([]model.Material, error) {
	var materials []model.Material
	err := r.DB.
		Joins("JOIN material_accesses ON material_accesses.material_id = materials.id").
		Where("material_accesses.user_id = ?", userID).
		Order("materials.created_at DESC, materials.id DESC").
		Find(&materials).Error
	return materials, err
}

// IDsByStatus 按状态筛选资料 ID，statuses 为空时返回全部
func (r *MaterialRepository) IDsByStatus(statuses ...model.AnalysisStatus) ([]uint, error) {
	var ids []uint
	query := r.DB.Model(&model.Material{}).Order("id ASC")
	if len(statuses) > 0 {
		query = query.Where("analysis_status IN ?", statuses)
	}
	err := query.Pluck("id", &ids).Error
	return ids, err
}

func (r *MaterialRepository) HasAccess(userID, materialID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.MaterialAccess{}).
		Where("user_id = ? AND material_id = ?", userID, materialID).
		Count(&count).Error
	return count > 0, err
}

func (r *MaterialRepository) UpdateMetadata(id uint, title, subject string) error {
	updates := map[string]interface{}{}
	if title != "" {
		updates["title"] = title
	}
	if subject != "" {
		updates["subject"] = subject
	}
	if len(updates) == 0 {
		return nil
	}
	return r.DB.Model(&model.Material{}).Where("id = ?", id).Updates(updates).Error
}

func (r *MaterialRepository) SetAnalysisStatus(id uint, status model.AnalysisStatus) error {
	return r.DB.Model(&model.Material{}).Where("id = ?", id).Update("analysis_status", status).Error
}

// Delete 删除资料及其派生数据：题目、测验记录、主题、授权
func (r *MaterialRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		topicIDs := tx.Model(&model.Topic{}).Select("id").Where("material_id = ?", id)
		if err := tx.Where("topic_id IN (?)", topicIDs).Delete(&model.QuizQuestion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("topic_id IN (?)", topicIDs).Delete(&model.QuizResult{}).Error; err != nil {
			return err
		}
		if err := tx.Where("material_id = ?", id).Delete(&model.Topic{}).Error; err != nil {
			return err
		}
		if err := tx.Where("material_id = ?", id).Delete(&model.MaterialAccess{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Material{}, id).Error
	})
}
