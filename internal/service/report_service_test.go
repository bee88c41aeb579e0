package service

import (
	"study_assistant_backend/internal/model"
	"study_assistant_backend/internal/repository"
	"study_assistant_backend/internal/testutil"
	"testing"
	"time"
)

func TestReports(t *testing.T) {
	db := testutil.DB(t)
	materials := repository.NewMaterialRepository(db)
	topics := repository.NewTopicRepository(db)
	quizzes := repository.NewQuizRepository(db)
	svc := NewReportService(quizzes, repository.NewUserRepository(db))

	seed := func(key, subject, topicName string) uint {
		m := &model.Material{Title: key, Subject: subject, StorageKey: key, OwnerID: 1}
		if err := materials.Create(m); err != nil {
			t.Fatalf("create material: %v", err)
		}
		topics.ReplaceForMaterial(m.ID, []model.Topic{{TopicName: topicName, DifficultyScore: 3, DifficultyClass: model.DifficultyEasy, SequenceNumber: 1}})
		list, _ := topics.ListByMaterial(m.ID)
		return list[0].ID
	}
	physics := seed("phy", "  physics ", "Motion")
	blank := seed("misc", "", "Misc")

	day1 := time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 15, 30, 0, 0, time.UTC)
	for _, r := range []model.QuizResult{
		{UserID: 1, TopicID: physics, Score: 1, TotalQuestions: 3, CreatedAt: day1},
		{UserID: 1, TopicID: blank, Score: 4, TotalQuestions: 5, CreatedAt: day2},
		{UserID: 2, TopicID: physics, Score: 5, TotalQuestions: 5, CreatedAt: day2},
	} {
		r := r
		if err := quizzes.AddResult(&r); err != nil {
			t.Fatalf("add result: %v", err)
		}
	}

	summary, err := svc.PerformanceSummary(1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.LearningRate != 62.5 {
		t.Fatalf("learning rate = %v, want 62.5", summary.LearningRate)
	}
	if len(summary.Subjects) != 1 || summary.Subjects[0] != "Physics" {
		t.Fatalf("subjects = %v", summary.Subjects)
	}
	if len(summary.ChartData) != 2 || summary.ChartData[0].Day != "2024-03-01" || summary.ChartData[1].Subject != "Unnamed" {
		t.Fatalf("chart = %+v", summary.ChartData)
	}

	history, err := svc.QuizHistory(1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d history items", len(history))
	}
	if history[0].Date != "02 Mar 2024, 03:30 PM" || history[0].Subject != "N/A" {
		t.Fatalf("newest item = %+v", history[0])
	}
	if history[1].Percentage != 33.3 || history[1].Topic != "Motion" {
		t.Fatalf("oldest item = %+v", history[1])
	}

	empty, err := svc.PerformanceSummary(42)
	if err != nil || empty.LearningRate != 0 || len(empty.Subjects) != 0 {
		t.Fatalf("empty summary = %+v, %v", empty, err)
	}
}

func TestUserStats(t *testing.T) {
	db := testutil.DB(t)
	users := repository.NewUserRepository(db)
	svc := NewReportService(repository.NewQuizRepository(db), users)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	recent := now.AddDate(0, 0, -3)
	old := now.AddDate(0, 0, -45)
	for i, last := range []*time.Time{&recent, &old, nil} {
		u := &model.User{Username: string(rune('a' + i)), Email: string(rune('a'+i)) + "@x.io", Password: "x", LastLogin: last}
		if err := users.Create(u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	stats, err := svc.UserStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalUsers != 3 || stats.ActiveUsers != 1 || stats.PassiveUsers != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"  physics ":       "Physics",
		"COMPUTER science": "Computer Science",
		"o'neil-smith":     "O'Neil-Smith",
		"":                 "",
	}
	for in, want := range cases {
		if got := titleCase(in); got != want {
			t.Fatalf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}
