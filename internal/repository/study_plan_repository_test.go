package repository

import (
	"study_assistant_backend/internal/model"
	"study_assistant_backend/internal/testutil"
	"testing"
	"time"
)

func TestStudyPlanCreateAndReplaceTasks(t *testing.T) {
	db := testutil.DB(t)
	repo := NewStudyPlanRepository(db)
	m := seedMaterial(t, db, 7, "a.pdf")

	req := &model.StudyPlanRequest{UserID: 7, TotalDays: 2, HoursPerDay: 2, Materials: []model.Material{*m}}
	tasks := []model.ScheduleTask{
		{Day: 2, Duration: "2 hours", Subject: "Python", Topics: "Loops"},
		{Day: 1, Duration: "1 hour", Subject: "Python", Topics: "Variables"},
		{Day: 1, Duration: "1 hour", Subject: "Python", Topics: "Types"},
	}
	plan, err := repo.Create(req, []byte(`{"study_plan":[]}`), tasks)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Tasks(plan.ID)
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if len(got) != 3 || got[0].Topics != "Variables" || got[1].Topics != "Types" || got[2].Day != 2 {
		t.Fatalf("unexpected order: %+v", got)
	}

	latest, err := repo.LatestForUser(7)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != plan.ID || len(latest.Request.Materials) != 1 {
		t.Fatalf("latest plan mismatch: %+v", latest)
	}

	oldIDs := map[uint]bool{}
	for _, task := range got {
		oldIDs[task.ID] = true
	}

	replacement := []model.ScheduleTask{{Day: 1, Duration: "2 hours", Subject: "Python", Topics: "Loops"}}
	if err := repo.ReplaceTasks(plan.ID, []byte(`{}`), replacement); err != nil {
		t.Fatalf("replace: %v", err)
	}
	after, _ := repo.Tasks(plan.ID)
	if len(after) != 1 || after[0].Topics != "Loops" {
		t.Fatalf("unexpected tasks after replace: %+v", after)
	}
	if oldIDs[after[0].ID] {
		t.Fatalf("old task row survived replacement")
	}
}

func TestLatestForUserPicksNewestPlan(t *testing.T) {
	db := testutil.DB(t)
	repo := NewStudyPlanRepository(db)
	m := seedMaterial(t, db, 3, "a.pdf")

	first, _ := repo.Create(&model.StudyPlanRequest{UserID: 3, TotalDays: 1, HoursPerDay: 1, Materials: []model.Material{*m}}, nil, nil)
	time.Sleep(5 * time.Millisecond)
	second, _ := repo.Create(&model.StudyPlanRequest{UserID: 3, TotalDays: 1, HoursPerDay: 1, Materials: []model.Material{*m}}, nil, nil)
	repo.Create(&model.StudyPlanRequest{UserID: 4, TotalDays: 1, HoursPerDay: 1}, nil, nil)

	latest, err := repo.LatestForUser(3)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != second.ID || latest.ID == first.ID {
		t.Fatalf("latest = %d, want %d", latest.ID, second.ID)
	}
}
