package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"study_assistant_backend/internal/model"
	"study_assistant_backend/internal/repository"
	"study_assistant_backend/internal/util"
	"study_assistant_backend/pkg/logger"
	"study_assistant_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TopicRecord 模型返回的单个主题（已通过校验）
type TopicRecord struct {
	TopicName       string  `json:"topic_name"`
	DifficultyScore float64 `json:"difficulty_score"`
	DifficultyClass string  `json:"difficulty_class"`
	Summary         string  `json:"summary"`
	SequenceNumber  int     `json:"sequence_number"`
}

// TopicAnalysis 一次分析调用的结果
type TopicAnalysis struct {
	Topics []TopicRecord
	// Received 回复中的记录总数，包括被跳过的
	Received int
	Skipped  int
	Raw      string
}

// TopicAnalyzer 把资料文本交给模型切分主题
type TopicAnalyzer struct {
	llm          LLMClient
	maxTextChars int
	timeout      time.Duration
}

func NewTopicAnalyzer(llm LLMClient, maxTextChars int, timeout time.Duration) *TopicAnalyzer {
	return &TopicAnalyzer{llm: llm, maxTextChars: maxTextChars, timeout: timeout}
}

func (a *TopicAnalyzer) buildPrompt(text, label string) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following text content extracted from an educational PDF document.\n")
	sb.WriteString("Identify the main topics discussed, evaluate their difficulty, and provide a brief summary for each.\n")
	if label != "" {
		fmt.Fprintf(&sb, "The material belongs to the subject %q.\n", label)
	}
	sb.WriteString(`
Return a single JSON array of objects and nothing else: no introductory text, no explanations, no markdown code fences.
Each object represents one topic and must have exactly these fields:
{
  "topic_name": "The name of the topic",
  "difficulty_score": a number between 1.0 and 10.0,
  "difficulty_class": one of "easy", "medium" or "hard",
  "summary": "A concise, 2-3 sentence summary of the topic's content.",
  "sequence_number": an integer giving the order in which the topic appears, starting at 1
}

Here is the text content to analyze:
---
`)
	sb.WriteString(Truncate(text, a.maxTextChars))
	sb.WriteString("\n---\n")
	return sb.String()
}

// Analyze 一次模型调用；整体无法解码时返回 *MalformedReplyError，单条不合格记录被跳过
func (a *TopicAnalyzer) Analyze(ctx context.Context, text, label string) (*TopicAnalysis, error) {
	raw, err := callModel(ctx, a.llm, a.timeout, "topic_analysis", a.buildPrompt(text, label))
	if err != nil {
		return nil, err
	}

	var records []map[string]interface{}
	if err := decodeJSONReply(raw, &records); err != nil {
		monitoring.MalformedReplies.WithLabelValues("topic_analysis").Inc()
		return nil, err
	}

	result := &TopicAnalysis{Received: len(records), Raw: raw}
	seen := make(map[int]bool, len(records))
	for i, rec := range records {
		topic, reason := validateTopicRecord(rec)
		if reason == "" && seen[topic.SequenceNumber] {
			reason = "duplicate sequence_number"
		}
		if reason != "" {
			result.Skipped++
			logger.Log.Warn("Skipping malformed topic record",
				zap.Int("index", i),
				zap.String("reason", reason),
			)
			continue
		}
		seen[topic.SequenceNumber] = true
		result.Topics = append(result.Topics, topic)
	}
	return result, nil
}

func validateTopicRecord(rec map[string]interface{}) (TopicRecord, string) {
	var t TopicRecord
	var ok bool

	if rec == nil {
		return t, "record is not an object"
	}
	if t.TopicName, ok = stringField(rec, "topic_name"); !ok || t.TopicName == "" {
		return t, "missing topic_name"
	}
	if t.DifficultyScore, ok = numberField(rec, "difficulty_score"); !ok {
		return t, "missing difficulty_score"
	}
	if t.DifficultyScore < model.MinDifficultyScore || t.DifficultyScore > model.MaxDifficultyScore {
		return t, "difficulty_score out of range"
	}
	class, ok := stringField(rec, "difficulty_class")
	if !ok {
		return t, "missing difficulty_class"
	}
	t.DifficultyClass = strings.ToLower(class)
	if !model.DifficultyClass(t.DifficultyClass).Valid() {
		return t, "unknown difficulty_class"
	}
	if t.Summary, ok = stringField(rec, "summary"); !ok {
		return t, "missing summary"
	}
	if t.SequenceNumber, ok = intField(rec, "sequence_number"); !ok {
		return t, "missing sequence_number"
	}
	return t, ""
}

// AnalysisOutcome 单份资料分析流水线的结果
type AnalysisOutcome struct {
	Status     model.JobStatus
	TopicCount int
	Skipped    int
	Raw        string
	Message    string
}

// TopicAnalysisService 下载 -> 提取 -> 分析 -> 同步主题
type TopicAnalysisService struct {
	materials *repository.MaterialRepository
	topics    *repository.TopicRepository
	jobs      *repository.AnalysisJobRepository
	storage   StorageProvider
	extractor *TextExtractor
	analyzer  *TopicAnalyzer
	queue     JobQueue
}

func NewTopicAnalysisService(
	materials *repository.MaterialRepository,
	topics *repository.TopicRepository,
	jobs *repository.AnalysisJobRepository,
	storage StorageProvider,
	extractor *TextExtractor,
	analyzer *TopicAnalyzer,
	queue JobQueue,
) *TopicAnalysisService {
	return &TopicAnalysisService{
		materials: materials,
		topics:    topics,
		jobs:      jobs,
		storage:   storage,
		extractor: extractor,
		analyzer:  analyzer,
		queue:     queue,
	}
}

// Enqueue 创建分析任务并放入队列
func (s *TopicAnalysisService) Enqueue(ctx context.Context, userID, materialID uint) (*model.AnalysisJob, error) {
	if _, err := s.materials.FindByID(materialID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrMaterialNotFound
		}
		return nil, err
	}

	job := &model.AnalysisJob{MaterialID: materialID, UserID: userID}
	if err := s.jobs.Create(job); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		s.jobs.Finish(job.ID, model.JobFailed, 0, err.Error(), "")
		return nil, err
	}
	s.materials.SetAnalysisStatus(materialID, model.AnalysisPending)

	logger.Log.Info("Analysis job queued",
		zap.String("job_id", job.ID),
		zap.Uint("material_id", materialID),
	)
	return job, nil
}

func (s *TopicAnalysisService) GetJob(id string) (*model.AnalysisJob, error) {
	job, err := s.jobs.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

func (s *TopicAnalysisService) ListTopics(materialID uint) ([]model.Topic, error) {
	if _, err := s.materials.FindByID(materialID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrMaterialNotFound
		}
		return nil, err
	}
	return s.topics.ListByMaterial(materialID)
}

// RunJob 由后台 worker 调用，执行流水线并记录任务最终状态
func (s *TopicAnalysisService) RunJob(ctx context.Context, jobID string) error {
	job, err := s.GetJob(jobID)
	if err != nil {
		return err
	}
	if job.Finished() {
		return nil
	}
	if err := s.jobs.MarkRunning(jobID); err != nil {
		return err
	}

	outcome, err := s.AnalyzeMaterial(ctx, job.MaterialID)
	if err != nil {
		raw := ""
		var malformed *MalformedReplyError
		if errors.As(err, &malformed) {
			raw = malformed.Raw
		}
		logger.Log.Error("Analysis job failed",
			zap.String("job_id", jobID),
			zap.Uint("material_id", job.MaterialID),
			zap.Error(err),
		)
		monitoring.AnalysisJobs.WithLabelValues(string(model.JobFailed)).Inc()
		return s.jobs.Finish(jobID, model.JobFailed, 0, err.Error(), raw)
	}

	monitoring.AnalysisJobs.WithLabelValues(string(outcome.Status)).Inc()
	logger.Log.Info("Analysis job finished",
		zap.String("job_id", jobID),
		zap.String("status", string(outcome.Status)),
		zap.Int("topics", outcome.TopicCount),
		zap.Int("skipped", outcome.Skipped),
	)
	return s.jobs.Finish(jobID, outcome.Status, outcome.TopicCount, outcome.Message, "")
}

// AnalyzeMaterial 完整流水线。文本为空或模型未给出任何主题时不改动已有主题。
func (s *TopicAnalysisService) AnalyzeMaterial(ctx context.Context, materialID uint) (*AnalysisOutcome, error) {
	material, err := s.materials.FindByID(materialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrMaterialNotFound
		}
		return nil, err
	}
	if material.StorageKey == "" {
		return nil, util.ErrNoDownloadURL
	}

	s.materials.SetAnalysisStatus(materialID, model.AnalysisRunning)
	outcome, err := s.analyze(ctx, material)
	switch {
	case err != nil:
		s.materials.SetAnalysisStatus(materialID, model.AnalysisFailed)
	case outcome.Status == model.JobSkipped:
		s.materials.SetAnalysisStatus(materialID, model.AnalysisEmpty)
	default:
		s.materials.SetAnalysisStatus(materialID, model.AnalysisCompleted)
	}
	return outcome, err
}

func (s *TopicAnalysisService) analyze(ctx context.Context, material *model.Material) (*AnalysisOutcome, error) {
	data, err := downloadObject(ctx, s.storage, material.StorageKey)
	if err != nil {
		return nil, err
	}

	text := s.extractor.Extract(data)
	if text == "" {
		logger.Log.Info("Extracted text is empty, skipping analysis", zap.Uint("material_id", material.ID))
		return &AnalysisOutcome{Status: model.JobSkipped, Message: "no extractable text"}, nil
	}

	analysis, err := s.analyzer.Analyze(ctx, text, material.Subject)
	if err != nil {
		return nil, err
	}
	if analysis.Received == 0 {
		return &AnalysisOutcome{Status: model.JobSkipped, Raw: analysis.Raw, Message: "model returned no topics"}, nil
	}

	topics := make([]model.Topic, 0, len(analysis.Topics))
	for _, rec := range analysis.Topics {
		topics = append(topics, model.Topic{
			TopicName:       rec.TopicName,
			DifficultyScore: rec.DifficultyScore,
			DifficultyClass: model.DifficultyClass(rec.DifficultyClass),
			Summary:         rec.Summary,
			SequenceNumber:  rec.SequenceNumber,
		})
	}
	if err := s.topics.ReplaceForMaterial(material.ID, topics); err != nil {
		return nil, fmt.Errorf("sync topics: %w", err)
	}

	return &AnalysisOutcome{
		Status:     model.JobSucceeded,
		TopicCount: len(topics),
		Skipped:    analysis.Skipped,
		Raw:        analysis.Raw,
	}, nil
}

// RecoverJobs 进程启动时重新入队未完成的任务。
// redis 队列中排队的任务仍在，只需补回执行中断的任务。
func (s *TopicAnalysisService) RecoverJobs(ctx context.Context, includeQueued bool) (int, error) {
	jobs, err := s.jobs.ListUnfinished()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, job := range jobs {
		if job.Status == model.JobQueued && !includeQueued {
			continue
		}
		if err := s.queue.Enqueue(ctx, job.ID); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func downloadObject(ctx context.Context, storage StorageProvider, key string) ([]byte, error) {
	rc, err := storage.Open(ctx, key)
	if err != nil {
		return nil, &UpstreamError{Service: "storage", Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, util.MaxUploadSize+1))
	if err != nil {
		return nil, &UpstreamError{Service: "storage", Err: err}
	}
	return data, nil
}
