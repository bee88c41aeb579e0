package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"study_assistant_backend/internal/model"
	"study_assistant_backend/internal/repository"
	"study_assistant_backend/internal/util"
	"study_assistant_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UploadInput 上传请求
type UploadInput struct {
	OwnerID  uint
	Filename string
	Subject  string
	Size     int64
	Reader   io.Reader
}

// UploadResult 上传结果，Job 为已排队的分析任务
type UploadResult struct {
	Material *model.Material    `json:"material"`
	Job      *model.AnalysisJob `json:"job,omitempty"`
}

// AnalysisEnqueuer 上传成功后触发分析
type AnalysisEnqueuer interface {
	Enqueue(ctx context.Context, userID, materialID uint) (*model.AnalysisJob, error)
}

type MaterialService struct {
	materials *repository.MaterialRepository
	storage   StorageProvider
	analysis  AnalysisEnqueuer
}

func NewMaterialService(materials *repository.MaterialRepository, storage StorageProvider, analysis AnalysisEnqueuer) *MaterialService {
	return &MaterialService{materials: materials, storage: storage, analysis: analysis}
}

// Upload 校验 PDF，存储文件，记录资料与访问授权，然后把分析任务入队
func (s *MaterialService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(in.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	head = head[:n]
	mimeType, err := util.ValidateMimeType(bytes.NewReader(head), []string{util.MimePDF})
	if err != nil || !util.IsPDF(mimeType) {
		return nil, util.ErrInvalidFileType
	}

	title := strings.TrimSpace(filepath.Base(in.Filename))
	if title == "" || title == "." {
		title = "material.pdf"
	}
	name := title
	if s.storage.Name() != util.StorageDrive {
		name = uuid.New().String() + ".pdf"
	}

	body := io.MultiReader(bytes.NewReader(head), in.Reader)
	obj, err := s.storage.Put(ctx, name, body, in.Size, util.MimePDF)
	if err != nil {
		return nil, &UpstreamError{Service: "storage", Err: err}
	}

	material := &model.Material{
		Title:           title,
		Subject:         strings.TrimSpace(in.Subject),
		StorageKey:      obj.Key,
		StorageProvider: s.storage.Name(),
		ContentType:     util.MimePDF,
		Size:            in.Size,
		ViewURL:         obj.ViewURL,
		DownloadURL:     obj.DownloadURL,
		AnalysisStatus:  model.AnalysisPending,
		OwnerID:         in.OwnerID,
	}
	if err := s.materials.Create(material); err != nil {
		// 数据库写入失败时清理已上传的文件
		if delErr := s.storage.Delete(ctx, obj.Key); delErr != nil {
			logger.Log.Warn("Failed to clean up stored file", zap.String("key", obj.Key), zap.Error(delErr))
		}
		return nil, err
	}

	logger.Log.Info("Material uploaded",
		zap.Uint("material_id", material.ID),
		zap.Uint("owner_id", in.OwnerID),
		zap.String("provider", material.StorageProvider),
	)

	result := &UploadResult{Material: material}
	job, err := s.analysis.Enqueue(ctx, in.OwnerID, material.ID)
	if err != nil {
		// 资料已保存，稍后可通过分析接口重新触发
		logger.Log.Error("Failed to enqueue analysis", zap.Uint("material_id", material.ID), zap.Error(err))
		return result, nil
	}
	result.Job = job
	return result, nil
}

func (s *MaterialService) ListForUser(userID uint) ([]model.Material, error) {
	return s.materials.FindAccessible(userID)
}

// Authorize 管理员可访问全部资料，其余用户需有访问授权
func (s *MaterialService) Authorize(userID uint, role model.UserRole, materialID uint) (*model.Material, error) {
	material, err := s.materials.FindByID(materialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrMaterialNotFound
		}
		return nil, err
	}
	if role == model.Admin {
		return material, nil
	}
	ok, err := s.materials.HasAccess(userID, materialID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrPermissionDenied
	}
	return material, nil
}

func (s *MaterialService) UpdateMetadata(userID uint, role model.UserRole, materialID uint, title, subject string) (*model.Material, error) {
	if _, err := s.Authorize(userID, role, materialID); err != nil {
		return nil, err
	}
	if err := s.materials.UpdateMetadata(materialID, strings.TrimSpace(title), strings.TrimSpace(subject)); err != nil {
		return nil, err
	}
	return s.materials.FindByID(materialID)
}

// Delete 先删除存储中的文件；除“文件不存在”外的存储错误会在任何本地删除之前中止
func (s *MaterialService) Delete(ctx context.Context, userID uint, role model.UserRole, materialID uint) error {
	material, err := s.Authorize(userID, role, materialID)
	if err != nil {
		return err
	}

	if material.StorageKey != "" {
		if err := s.storage.Delete(ctx, material.StorageKey); err != nil {
			if !errors.Is(err, util.ErrObjectNotFound) {
				return &UpstreamError{Service: "storage", Err: fmt.Errorf("delete %s: %w", material.StorageKey, err)}
			}
			logger.Log.Info("Stored file already gone, deleting record", zap.String("key", material.StorageKey))
		}
	}

	return s.materials.Delete(materialID)
}
