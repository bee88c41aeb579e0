package service

import (
	"context"
	"errors"
	"fmt"
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

// QuizGeneration 生成题目的返回
type QuizGeneration struct {
	Topic            string               `json:"topic"`
	QuestionsCreated int                  `json:"questions_created"`
	Skipped          int                  `json:"skipped"`
	Questions        []model.QuizQuestion `json:"questions"`
}

type QuizService struct {
	quizzes      *repository.QuizRepository
	topics       *repository.TopicRepository
	storage      StorageProvider
	extractor    *TextExtractor
	llm          LLMClient
	maxTextChars int
	timeout      time.Duration
}

func NewQuizService(
	quizzes *repository.QuizRepository,
	topics *repository.TopicRepository,
	storage StorageProvider,
	extractor *TextExtractor,
	llm LLMClient,
	maxTextChars int,
	timeout time.Duration,
) *QuizService {
	return &QuizService{
		quizzes:      quizzes,
		topics:       topics,
		storage:      storage,
		extractor:    extractor,
		llm:          llm,
		maxTextChars: maxTextChars,
		timeout:      timeout,
	}
}

// Generate 为主题生成 count 道单选题；count 为 0 时取默认值
func (s *QuizService) Generate(ctx context.Context, topicID uint, count int) (*QuizGeneration, error) {
	if count <= 0 {
		count = util.DefaultQuizQuestions
	}
	if count > util.MaxQuizQuestions {
		count = util.MaxQuizQuestions
	}

	topic, err := s.topics.FindByID(topicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTopicNotFound
		}
		return nil, err
	}
	if topic.Material == nil || topic.Material.StorageKey == "" {
		return nil, util.ErrNoDownloadURL
	}

	data, err := downloadObject(ctx, s.storage, topic.Material.StorageKey)
	if err != nil {
		return nil, err
	}
	text := s.extractor.Extract(data)

	raw, err := callModel(ctx, s.llm, s.timeout, "quiz", s.buildPrompt(topic, text, count))
	if err != nil {
		return nil, err
	}

	var records []map[string]interface{}
	if err := decodeJSONReply(raw, &records); err != nil {
		monitoring.MalformedReplies.WithLabelValues("quiz").Inc()
		return nil, err
	}

	result := &QuizGeneration{Topic: topic.TopicName}
	questions := make([]model.QuizQuestion, 0, len(records))
	for i, rec := range records {
		q, reason := validateQuestionRecord(rec)
		if reason != "" {
			result.Skipped++
			logger.Log.Warn("Skipping malformed quiz question", zap.Int("index", i), zap.String("reason", reason))
			continue
		}
		q.TopicID = topic.ID
		q.Difficulty = string(topic.DifficultyClass)
		questions = append(questions, q)
	}

	if err := s.quizzes.CreateQuestions(questions); err != nil {
		return nil, fmt.Errorf("save quiz questions: %w", err)
	}

	result.QuestionsCreated = len(questions)
	result.Questions = questions
	return result, nil
}

func (s *QuizService) buildPrompt(topic *model.Topic, text string, count int) string {
	return fmt.Sprintf(`You are a quiz generator.

Generate %d multiple choice questions strictly about the topic %q.
Use the following study material for context.

%s

Rules:
- Each question has exactly four options labeled A, B, C and D.
- Exactly one option is correct.
- Do not repeat questions.

Return the output strictly as a JSON array, with no markdown and no extra text:
[
  {
    "question_text": "...",
    "option_a": "...",
    "option_b": "...",
    "option_c": "...",
    "option_d": "...",
    "correct_option": "A"
  }
]
`, count, topic.TopicName, Truncate(text, s.maxTextChars))
}

func validateQuestionRecord(rec map[string]interface{}) (model.QuizQuestion, string) {
	var q model.QuizQuestion
	if rec == nil {
		return q, "record is not an object"
	}

	fields := []struct {
		key string
		dst *string
	}{
		{"question_text", &q.QuestionText},
		{"option_a", &q.OptionA},
		{"option_b", &q.OptionB},
		{"option_c", &q.OptionC},
		{"option_d", &q.OptionD},
	}
	for _, f := range fields {
		v, ok := stringField(rec, f.key)
		if !ok || v == "" {
			return q, "missing " + f.key
		}
		*f.dst = v
	}

	correct, _ := stringField(rec, "correct_option")
	correct = strings.ToUpper(strings.TrimSpace(correct))
	switch correct {
	case "A", "B", "C", "D":
	default:
		return q, "correct_option must be one of A-D"
	}
	q.CorrectOption = correct
	q.QuestionType = model.QuestionTypeMCQ
	return q, ""
}

func (s *QuizService) ListByTopic(topicID uint) ([]model.QuizQuestion, error) {
	if _, err := s.topics.FindByID(topicID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTopicNotFound
		}
		return nil, err
	}
	return s.quizzes.QuestionsByTopic(topicID)
}

// SubmitResult 追加一条测验结果
func (s *QuizService) SubmitResult(userID, topicID uint, score, totalQuestions int) (*model.QuizResult, error) {
	if totalQuestions <= 0 || score < 0 || score > totalQuestions {
		return nil, util.ErrInvalidQuizScore
	}
	if _, err := s.topics.FindByID(topicID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTopicNotFound
		}
		return nil, err
	}

	result := &model.QuizResult{
		UserID:         userID,
		TopicID:        topicID,
		Score:          score,
		TotalQuestions: totalQuestions,
	}
	if err := s.quizzes.AddResult(result); err != nil {
		return nil, err
	}
	return result, nil
}
