package service

import (
	"math"
	"sort"
	"strings"
	"study_assistant_backend/internal/model"
	"study_assistant_backend/internal/repository"
	"study_assistant_backend/internal/util"
	"time"
	"unicode"
)

// ChartPoint 成绩走势图上的一个点
type ChartPoint struct {
	Day        string  `json:"day"`
	Percentage float64 `json:"percentage"`
	Subject    string  `json:"subject"`
	Topic      string  `json:"topic"`
}

type PerformanceSummary struct {
	LearningRate float64      `json:"learning_rate"`
	Subjects     []string     `json:"subjects"`
	ChartData    []ChartPoint `json:"chart_data"`
}

type QuizHistoryItem struct {
	ID             uint    `json:"id"`
	Date           string  `json:"date"`
	Subject        string  `json:"subject"`
	Topic          string  `json:"topic"`
	Score          int     `json:"score"`
	TotalQuestions int     `json:"total_questions"`
	Percentage     float64 `json:"percentage"`
}

// UserStats 管理员统计
type UserStats struct {
	TotalUsers   int64 `json:"total_users"`
	ActiveUsers  int64 `json:"active_users"`
	PassiveUsers int64 `json:"passive_users"`
}

type ReportService struct {
	quizzes *repository.QuizRepository
	users   *repository.UserRepository
	now     func() time.Time
}

func NewReportService(quizzes *repository.QuizRepository, users *repository.UserRepository) *ReportService {
	return &ReportService{quizzes: quizzes, users: users, now: time.Now}
}

// PerformanceSummary 学习率 = Σscore / Σtotal × 100，走势点按时间从旧到新
func (s *ReportService) PerformanceSummary(userID uint) (*PerformanceSummary, error) {
	results, err := s.quizzes.ResultsForUser(userID, false)
	if err != nil {
		return nil, err
	}

	summary := &PerformanceSummary{Subjects: []string{}, ChartData: []ChartPoint{}}
	if len(results) == 0 {
		return summary, nil
	}

	totalScore, totalQuestions := 0, 0
	subjects := map[string]bool{}
	for _, r := range results {
		totalScore += r.Score
		totalQuestions += r.TotalQuestions

		subject := resultSubject(r, "Unnamed")
		if subject != "Unnamed" {
			subjects[subject] = true
		}
		summary.ChartData = append(summary.ChartData, ChartPoint{
			Day:        r.CreatedAt.Format(util.DateFormat),
			Percentage: util.Percentage(r.Score, r.TotalQuestions),
			Subject:    subject,
			Topic:      resultTopic(r),
		})
	}

	summary.LearningRate = util.Percentage(totalScore, totalQuestions)
	for subject := range subjects {
		summary.Subjects = append(summary.Subjects, subject)
	}
	sort.Strings(summary.Subjects)
	return summary, nil
}

// QuizHistory 最新的在前，百分比保留一位小数
func (s *ReportService) QuizHistory(userID uint) ([]QuizHistoryItem, error) {
	results, err := s.quizzes.ResultsForUser(userID, true)
	if err != nil {
		return nil, err
	}

	items := make([]QuizHistoryItem, 0, len(results))
	for _, r := range results {
		items = append(items, QuizHistoryItem{
			ID:             r.ID,
			Date:           r.CreatedAt.Format(util.HistoryTimeFormat),
			Subject:        resultSubject(r, "N/A"),
			Topic:          resultTopic(r),
			Score:          r.Score,
			TotalQuestions: r.TotalQuestions,
			Percentage:     math.Round(util.Percentage(r.Score, r.TotalQuestions)*10) / 10,
		})
	}
	return items, nil
}

// UserStats 活跃用户：最近 30 天内登录过
func (s *ReportService) UserStats() (*UserStats, error) {
	total, err := s.users.Count()
	if err != nil {
		return nil, err
	}
	since := s.now().AddDate(0, 0, -util.ActiveUserWindowDays)
	active, err := s.users.CountLoggedInSince(since)
	if err != nil {
		return nil, err
	}
	return &UserStats{TotalUsers: total, ActiveUsers: active, PassiveUsers: total - active}, nil
}

func resultSubject(r model.QuizResult, fallback string) string {
	if r.Topic == nil || r.Topic.Material == nil {
		return fallback
	}
	subject := titleCase(r.Topic.Material.Subject)
	if subject == "" {
		return fallback
	}
	return subject
}

func resultTopic(r model.QuizResult) string {
	if r.Topic == nil {
		return ""
	}
	return r.Topic.TopicName
}

// titleCase 去掉首尾空白，每个单词首字母大写、其余小写
func titleCase(s string) string {
	s = strings.TrimSpace(s)
	var sb strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				sb.WriteRune(unicode.ToLower(r))
			} else {
				sb.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		sb.WriteRune(r)
	}
	return sb.String()
}
