package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"study_assistant_backend/internal/model"
	"study_assistant_backend/internal/repository"
	"study_assistant_backend/internal/testutil"
	"testing"
	"time"
)

type pipeline struct {
	materials *repository.MaterialRepository
	topics    *repository.TopicRepository
	jobs      *repository.AnalysisJobRepository
	storage   *memStorage
	llm       *scriptedLLM
	queue     *MemoryJobQueue
	analysis  *TopicAnalysisService
	uploads   *MaterialService
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	db := testutil.DB(t)
	p := &pipeline{
		materials: repository.NewMaterialRepository(db),
		topics:    repository.NewTopicRepository(db),
		jobs:      repository.NewAnalysisJobRepository(db),
		storage:   newMemStorage(),
		llm:       &scriptedLLM{},
		queue:     NewMemoryJobQueue(8),
	}
	analyzer := NewTopicAnalyzer(p.llm, 12000, time.Second)
	p.analysis = NewTopicAnalysisService(p.materials, p.topics, p.jobs, p.storage, NewTextExtractor(), analyzer, p.queue)
	p.uploads = NewMaterialService(p.materials, p.storage, p.analysis)
	return p
}

// runQueued 取出一个排队任务并同步执行
func (p *pipeline) runQueued(t *testing.T) *model.AnalysisJob {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	id, err := p.queue.Dequeue(ctx)
	if err != nil {
		t.Fatalf("no queued job: %v", err)
	}
	if err := p.analysis.RunJob(context.Background(), id); err != nil {
		t.Fatalf("run job: %v", err)
	}
	job, err := p.analysis.GetJob(id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	return job
}

const threeTopics = "```json\n" + `[
  {"topic_name":"Variables","difficulty_score":2,"difficulty_class":"easy","summary":"Names for values.","sequence_number":1},
  {"topic_name":"Loops","difficulty_score":5.5,"difficulty_class":"Medium","summary":"Repetition.","sequence_number":2},
  {"topic_name":"Recursion","difficulty_score":8,"difficulty_class":"hard","summary":"Self reference.","sequence_number":3}
]` + "\n```"

const twoTopics = `[
  {"topic_name":"Classes","difficulty_score":6,"difficulty_class":"medium","summary":"Objects.","sequence_number":1},
  {"topic_name":"Modules","difficulty_score":3,"difficulty_class":"easy","summary":"Packages.","sequence_number":2}
]`

func TestUploadAnalyzeAndReanalyze(t *testing.T) {
	p := newPipeline(t)
	p.llm.replies = []string{threeTopics, twoTopics}

	pdf := buildPDF("Variables and loops", "Recursion basics")
	res, err := p.uploads.Upload(context.Background(), UploadInput{
		OwnerID:  1,
		Filename: "intro.pdf",
		Subject:  "Python",
		Size:     int64(len(pdf)),
		Reader:   bytes.NewReader(pdf),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.Job == nil || res.Job.Status != model.JobQueued {
		t.Fatalf("expected a queued job, got %+v", res.Job)
	}

	job := p.runQueued(t)
	if job.Status != model.JobSucceeded || job.TopicCount != 3 {
		t.Fatalf("unexpected job: %+v", job)
	}
	topics, _ := p.topics.ListByMaterial(res.Material.ID)
	if len(topics) != 3 {
		t.Fatalf("got %d topics, want 3", len(topics))
	}
	for i, topic := range topics {
		if topic.SequenceNumber != i+1 {
			t.Fatalf("sequence numbers = %v", topics)
		}
	}
	if topics[1].DifficultyClass != model.DifficultyMedium {
		t.Fatalf("difficulty class should be normalised, got %q", topics[1].DifficultyClass)
	}
	if !strings.Contains(p.llm.prompts[0], "Variables") || !strings.Contains(p.llm.prompts[0], `"Python"`) {
		t.Fatalf("prompt should embed extracted text and subject")
	}

	if _, err := p.analysis.Enqueue(context.Background(), 1, res.Material.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	p.runQueued(t)
	topics, _ = p.topics.ListByMaterial(res.Material.ID)
	if len(topics) != 2 || topics[0].TopicName != "Classes" {
		t.Fatalf("after re-analysis got %+v", topics)
	}

	m, _ := p.materials.FindByID(res.Material.ID)
	if m.AnalysisStatus != model.AnalysisCompleted {
		t.Fatalf("material status = %q", m.AnalysisStatus)
	}
}

func TestAnalysisSkippedWithoutText(t *testing.T) {
	p := newPipeline(t)
	p.llm.replies = []string{threeTopics}

	pdf := buildPDF("", "")
	res, err := p.uploads.Upload(context.Background(), UploadInput{OwnerID: 1, Filename: "blank.pdf", Subject: "x", Size: int64(len(pdf)), Reader: bytes.NewReader(pdf)})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	job := p.runQueued(t)
	if job.Status != model.JobSkipped {
		t.Fatalf("status = %q, want skipped", job.Status)
	}
	if p.llm.calls() != 0 {
		t.Fatalf("model should not be called for empty text")
	}
	if n, _ := p.topics.CountByMaterial(res.Material.ID); n != 0 {
		t.Fatalf("no topics should be written, got %d", n)
	}
}

func TestMalformedAnalysisReplyFailsJobAndKeepsTopics(t *testing.T) {
	p := newPipeline(t)
	p.llm.replies = []string{threeTopics, "I could not find any topics, sorry."}

	pdf := buildPDF("Some text")
	res, _ := p.uploads.Upload(context.Background(), UploadInput{OwnerID: 1, Filename: "a.pdf", Subject: "x", Size: int64(len(pdf)), Reader: bytes.NewReader(pdf)})
	p.runQueued(t)

	p.analysis.Enqueue(context.Background(), 1, res.Material.ID)
	job := p.runQueued(t)
	if job.Status != model.JobFailed || !strings.Contains(job.RawReply, "sorry") {
		t.Fatalf("unexpected job: %+v", job)
	}
	if n, _ := p.topics.CountByMaterial(res.Material.ID); n != 3 {
		t.Fatalf("previous topics should remain, got %d", n)
	}
}

func TestAnalyzerSkipsInvalidRecords(t *testing.T) {
	llm := &scriptedLLM{replies: []string{`[
	  {"topic_name":"Good","difficulty_score":3,"difficulty_class":"easy","summary":"ok","sequence_number":1},
	  {"topic_name":"No class","difficulty_score":3,"summary":"x","sequence_number":2},
	  {"topic_name":"Bad class","difficulty_score":3,"difficulty_class":"extreme","summary":"x","sequence_number":3},
	  {"topic_name":"Too hard","difficulty_score":11,"difficulty_class":"hard","summary":"x","sequence_number":4},
	  {"topic_name":"Dup","difficulty_score":3,"difficulty_class":"easy","summary":"x","sequence_number":1},
	  {"topic_name":"","difficulty_score":3,"difficulty_class":"easy","summary":"x","sequence_number":5},
	  {"topic_name":"Fraction seq","difficulty_score":3,"difficulty_class":"easy","summary":"x","sequence_number":1.5},
	  {"topic_name":"Also good","difficulty_score":"9.5","difficulty_class":"HARD","summary":"ok","sequence_number":6}
	]`}}

	res, err := NewTopicAnalyzer(llm, 100, time.Second).Analyze(context.Background(), "text", "")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(res.Topics) != 2 || res.Skipped != 6 || res.Received != 8 {
		t.Fatalf("topics=%d skipped=%d received=%d", len(res.Topics), res.Skipped, res.Received)
	}
	if res.Topics[1].DifficultyClass != "hard" || res.Topics[1].DifficultyScore != 9.5 {
		t.Fatalf("unexpected record: %+v", res.Topics[1])
	}
}

func TestAnalyzerPromptTruncatesText(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"[]"}}
	long := strings.Repeat("a", 50) + "TAIL"
	if _, err := NewTopicAnalyzer(llm, 50, time.Second).Analyze(context.Background(), long, ""); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if strings.Contains(llm.prompts[0], "TAIL") {
		t.Fatalf("prompt should only carry the first 50 characters")
	}
}

func TestAnalyzerUpstreamError(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("connection refused")}
	_, err := NewTopicAnalyzer(llm, 100, time.Second).Analyze(context.Background(), "text", "")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
}

func TestEnqueueUnknownMaterial(t *testing.T) {
	p := newPipeline(t)
	if _, err := p.analysis.Enqueue(context.Background(), 1, 999); err == nil {
		t.Fatalf("expected error for unknown material")
	}
}
