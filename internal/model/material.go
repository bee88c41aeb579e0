package model

type AnalysisStatus string

const (
	AnalysisPending   AnalysisStatus = "pending"
	AnalysisRunning   AnalysisStatus = "running"
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisFailed    AnalysisStatus = "failed"
	AnalysisEmpty     AnalysisStatus = "empty"
)

// Material 用户上传的学习资料（PDF），文件本体存放在外部存储
// swagger:model Material
type Material struct {
	BaseModel
	Title           string         `gorm:"size:255;not null" json:"title"`
	Subject         string         `gorm:"size:255;not null" json:"subject"`
	StorageKey      string         `gorm:"size:255;uniqueIndex;not null" json:"storageKey"`
	StorageProvider string         `gorm:"size:20" json:"storageProvider"`
	ContentType     string         `gorm:"size:100" json:"contentType"`
	Size            int64          `json:"size"`
	ViewURL         string         `gorm:"size:512" json:"viewUrl"`
	DownloadURL     string         `gorm:"size:512" json:"downloadUrl"`
	AnalysisStatus  AnalysisStatus `gorm:"size:20;default:'pending'" json:"analysisStatus"`
	OwnerID         uint           `gorm:"index" json:"ownerId"`
}

func (Material) TableName() string {
	return "materials"
}

// MaterialAccess 用户与资料的访问授权
type MaterialAccess struct {
	DerivedModel
	UserID     uint `gorm:"not null;uniqueIndex:idx_material_access_user_material" json:"userId"`
	MaterialID uint `gorm:"not null;uniqueIndex:idx_material_access_user_material" json:"materialId"`
}

func (MaterialAccess) TableName() string {
	return "material_accesses"
}
