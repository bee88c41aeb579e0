package service

import (
	"context"
	"encoding/json"
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

const (
	MsgNoPlanToRevise   = "No study plan found. No update needed."
	MsgTopicOutsidePlan = "Quiz topic not part of the current study plan. No update needed."
)

// PlanTask 计划中的单个任务
type PlanTask struct {
	Duration string `json:"duration"`
	Subject  string `json:"subject"`
	Topics   string `json:"topics"`
	Notes    string `json:"notes"`
}

// PlanDay 一天的任务
type PlanDay struct {
	Day   int        `json:"day"`
	Tasks []PlanTask `json:"tasks"`
}

// PlanResponse 生成或读取计划的返回
type PlanResponse struct {
	PlanID         uint      `json:"plan_id"`
	TotalDays      int       `json:"total_days"`
	HoursPerDay    int       `json:"hours_per_day"`
	StudyPlan      []PlanDay `json:"study_plan"`
	BudgetWarnings []string  `json:"budget_warnings,omitempty"`
}

// PlanRevision 根据测验结果修订计划的返回；Updated 为 false 时计划未改动
type PlanRevision struct {
	Updated bool          `json:"updated"`
	Message string        `json:"message"`
	Plan    *PlanResponse `json:"plan,omitempty"`
}

type StudyPlanService struct {
	plans     *repository.StudyPlanRepository
	materials *repository.MaterialRepository
	topics    *repository.TopicRepository
	llm       LLMClient
	timeout   time.Duration
}

func NewStudyPlanService(
	plans *repository.StudyPlanRepository,
	materials *repository.MaterialRepository,
	topics *repository.TopicRepository,
	llm LLMClient,
	timeout time.Duration,
) *StudyPlanService {
	return &StudyPlanService{
		plans:     plans,
		materials: materials,
		topics:    topics,
		llm:       llm,
		timeout:   timeout,
	}
}

// Generate 为选中的资料生成新的学习计划。days/hours 为 0 时使用默认值。
func (s *StudyPlanService) Generate(ctx context.Context, userID uint, materialIDs []uint, totalDays, hoursPerDay int) (*PlanResponse, error) {
	if len(materialIDs) == 0 {
		return nil, util.ErrNoMaterialsSelected
	}
	if totalDays == 0 {
		totalDays = util.DefaultPlanDays
	}
	if hoursPerDay == 0 {
		hoursPerDay = util.DefaultPlanHoursPerDay
	}
	if totalDays < 1 || totalDays > util.MaxPlanDays || hoursPerDay < 1 || hoursPerDay > util.MaxPlanHoursPerDay {
		return nil, util.ErrInvalidPlanRange
	}

	materials, err := s.materials.FindByIDs(uniqueIDs(materialIDs))
	if err != nil {
		return nil, err
	}
	if len(materials) == 0 {
		return nil, util.ErrMaterialNotFound
	}

	topics, err := s.topics.ListByMaterials(materialIDList(materials))
	if err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		return nil, util.ErrNoTopics
	}

	prompt := buildPlanPrompt(totalDays, hoursPerDay, topics)
	raw, err := callModel(ctx, s.llm, s.timeout, "study_plan", prompt)
	if err != nil {
		return nil, err
	}

	days, err := parsePlanReply(raw)
	if err != nil {
		monitoring.MalformedReplies.WithLabelValues("study_plan").Inc()
		return nil, err
	}

	req := &model.StudyPlanRequest{
		UserID:      userID,
		TotalDays:   totalDays,
		HoursPerDay: hoursPerDay,
		Materials:   materials,
	}
	plan, err := s.plans.Create(req, replyJSON(days), flattenPlan(days))
	if err != nil {
		return nil, fmt.Errorf("persist study plan: %w", err)
	}

	logger.Log.Info("Study plan generated",
		zap.Uint("user_id", userID),
		zap.Uint("plan_id", plan.ID),
		zap.Int("days", len(days)),
	)
	return s.planResponse(plan.ID, totalDays, hoursPerDay, days), nil
}

// Revise 根据测验成绩重新生成最近一次计划的全部任务。
// 没有计划，或主题所属资料不在该计划内时不做任何修改。
func (s *StudyPlanService) Revise(ctx context.Context, userID, topicID uint, score, totalQuestions int) (*PlanRevision, error) {
	topic, err := s.topics.FindByID(topicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTopicNotFound
		}
		return nil, err
	}

	plan, err := s.plans.LatestForUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &PlanRevision{Updated: false, Message: MsgNoPlanToRevise}, nil
		}
		return nil, err
	}

	planMaterialIDs := materialIDList(plan.Request.Materials)
	inScope := false
	for _, id := range planMaterialIDs {
		if id == topic.MaterialID {
			inScope = true
			break
		}
	}
	if !inScope {
		return &PlanRevision{Updated: false, Message: MsgTopicOutsidePlan}, nil
	}

	topics, err := s.topics.ListByMaterials(planMaterialIDs)
	if err != nil {
		return nil, err
	}

	req := plan.Request
	prompt := buildRevisionPrompt(req.TotalDays, req.HoursPerDay, topics, topic.TopicName, score, totalQuestions)
	raw, err := callModel(ctx, s.llm, s.timeout, "plan_revision", prompt)
	if err != nil {
		return nil, err
	}

	days, err := parsePlanReply(raw)
	if err != nil {
		monitoring.MalformedReplies.WithLabelValues("plan_revision").Inc()
		return nil, err
	}

	if err := s.plans.ReplaceTasks(plan.ID, replyJSON(days), flattenPlan(days)); err != nil {
		return nil, fmt.Errorf("replace plan tasks: %w", err)
	}

	logger.Log.Info("Study plan revised",
		zap.Uint("user_id", userID),
		zap.Uint("plan_id", plan.ID),
		zap.Uint("topic_id", topicID),
	)
	return &PlanRevision{
		Updated: true,
		Message: "Study plan updated.",
		Plan:    s.planResponse(plan.ID, req.TotalDays, req.HoursPerDay, days),
	}, nil
}

// GetLatest 按天分组返回用户最近的计划
func (s *StudyPlanService) GetLatest(ctx context.Context, userID uint) (*PlanResponse, error) {
	plan, err := s.plans.LatestForUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrPlanNotFound
		}
		return nil, err
	}

	tasks, err := s.plans.Tasks(plan.ID)
	if err != nil {
		return nil, err
	}

	return &PlanResponse{
		PlanID:      plan.ID,
		TotalDays:   plan.Request.TotalDays,
		HoursPerDay: plan.Request.HoursPerDay,
		StudyPlan:   groupTasks(tasks),
	}, nil
}

func (s *StudyPlanService) planResponse(planID uint, totalDays, hoursPerDay int, days []PlanDay) *PlanResponse {
	resp := &PlanResponse{
		PlanID:      planID,
		TotalDays:   totalDays,
		HoursPerDay: hoursPerDay,
		StudyPlan:   days,
	}
	for _, m := range ValidateDailyBudget(days, hoursPerDay) {
		logger.Log.Warn("Study plan day does not match daily budget",
			zap.Uint("plan_id", planID),
			zap.Int("day", m.Day),
			zap.Float64("hours", m.Hours),
			zap.Int("budget", hoursPerDay),
		)
		resp.BudgetWarnings = append(resp.BudgetWarnings, m.String())
	}
	return resp
}

// parsePlanReply 解析 {"study_plan":[{"day":1,"tasks":[...]}]}。
// day 缺失或 <= 0 的条目被跳过，任务字段缺失时取默认值；没有任何可用任务视为格式错误。
func parsePlanReply(raw string) ([]PlanDay, error) {
	var reply map[string]interface{}
	if err := decodeJSONReply(raw, &reply); err != nil {
		return nil, err
	}

	entries, ok := reply["study_plan"].([]interface{})
	if !ok {
		return nil, &MalformedReplyError{Reason: "missing study_plan array", Raw: raw}
	}

	days := make([]PlanDay, 0, len(entries))
	taskCount := 0
	for _, entry := range entries {
		rec, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		day, ok := intField(rec, "day")
		if !ok || day <= 0 {
			continue
		}

		rawTasks, _ := rec["tasks"].([]interface{})
		pd := PlanDay{Day: day, Tasks: make([]PlanTask, 0, len(rawTasks))}
		for _, rt := range rawTasks {
			taskRec, ok := rt.(map[string]interface{})
			if !ok {
				continue
			}
			pd.Tasks = append(pd.Tasks, PlanTask{
				Duration: fieldOr(taskRec, "duration", "N/A"),
				Subject:  fieldOr(taskRec, "subject", "N/A"),
				Topics:   fieldOr(taskRec, "topics", ""),
				Notes:    fieldOr(taskRec, "notes", ""),
			})
		}
		taskCount += len(pd.Tasks)
		days = append(days, pd)
	}

	if taskCount == 0 {
		return nil, &MalformedReplyError{Reason: "study_plan has no usable tasks", Raw: raw}
	}
	return days, nil
}

func fieldOr(rec map[string]interface{}, key, def string) string {
	if v, ok := stringField(rec, key); ok && v != "" {
		return v
	}
	return def
}

func flattenPlan(days []PlanDay) []model.ScheduleTask {
	var tasks []model.ScheduleTask
	for _, d := range days {
		for _, t := range d.Tasks {
			tasks = append(tasks, model.ScheduleTask{
				Day:      d.Day,
				Duration: t.Duration,
				Subject:  t.Subject,
				Topics:   t.Topics,
				Notes:    t.Notes,
			})
		}
	}
	return tasks
}

// groupTasks 任务已按 (day, id) 排序
func groupTasks(tasks []model.ScheduleTask) []PlanDay {
	days := []PlanDay{}
	for _, t := range tasks {
		if len(days) == 0 || days[len(days)-1].Day != t.Day {
			days = append(days, PlanDay{Day: t.Day})
		}
		last := &days[len(days)-1]
		last.Tasks = append(last.Tasks, PlanTask{
			Duration: t.Duration,
			Subject:  t.Subject,
			Topics:   t.Topics,
			Notes:    t.Notes,
		})
	}
	return days
}

func replyJSON(days []PlanDay) []byte {
	data, err := json.Marshal(map[string]interface{}{"study_plan": days})
	if err != nil {
		return nil
	}
	return data
}

func buildTopicOutline(topics []model.Topic) string {
	var sb strings.Builder
	var current uint
	for _, t := range topics {
		if t.MaterialID != current || sb.Len() == 0 {
			current = t.MaterialID
			subject, title := "", ""
			if t.Material != nil {
				subject, title = t.Material.Subject, t.Material.Title
			}
			fmt.Fprintf(&sb, "\nSubject: %s\n  Material Title: %s\n    Topics to cover:\n", subject, title)
		}
		fmt.Fprintf(&sb, "      - %s (Difficulty: %s, Summary: %s)\n", t.TopicName, t.DifficultyClass, t.Summary)
	}
	return sb.String()
}

func buildPlanPrompt(totalDays, hoursPerDay int, topics []model.Topic) string {
	return fmt.Sprintf(`You are an expert academic planner. Create a detailed %[1]d-day study plan
for a student who studies %[2]d hours per day.

Here are the student's materials and the specific topics to cover:
%[3]s
Instructions:
1. Assign a duration to each task (e.g. "2 hours", "1.5 hours", "30 minutes"). The durations of one day must add up to exactly %[2]d hours.
2. Allocate time by difficulty: hard topics get longer durations than easy topics.
3. If the daily budget is 3 hours or more, mix different subjects within a day.
4. Every topic in the list must appear at least once across the %[1]d days.
5. The "notes" field must contain specific advice about the topics of that task, not generic motivation.

Output strictly as JSON, with no markdown and no explanations:
{
  "study_plan": [
    {
      "day": 1,
      "tasks": [
        {"duration": "2 hours", "subject": "Subject name", "topics": "Topic names only", "notes": "Topic-specific advice"}
      ]
    }
  ]
}
The "topics" field must contain only topic names.
`, totalDays, hoursPerDay, buildTopicOutline(topics))
}

func buildRevisionPrompt(totalDays, hoursPerDay int, topics []model.Topic, weakTopic string, score, total int) string {
	return fmt.Sprintf(`You are an expert academic planner revising a student's study plan.

The plan covers %[1]d days with %[2]d hours of study per day.
The materials and topics to cover are:
%[3]s
Performance feedback: the student scored %[5]d out of %[6]d on a quiz about %[4]q. This topic needs more focus.

Regenerate the entire %[1]d-day plan from scratch. Give noticeably more time to %[4]q and to closely related topics,
keep every other topic covered at least once, and keep each day's durations summing to exactly %[2]d hours.

Output strictly as JSON in the same format as before, with no markdown and no explanations:
{
  "study_plan": [
    {
      "day": 1,
      "tasks": [
        {"duration": "2 hours", "subject": "Subject name", "topics": "Topic names only", "notes": "Specific advice"}
      ]
    }
  ]
}
`, totalDays, hoursPerDay, buildTopicOutline(topics), weakTopic, score, total)
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func materialIDList(materials []model.Material) []uint {
	ids := make([]uint, 0, len(materials))
	for _, m := range materials {
		ids = append(ids, m.ID)
	}
	return ids
}
