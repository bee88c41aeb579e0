package service

import (
	"context"
	"errors"
	"strings"
	"study_assistant_backend/internal/model"
	"study_assistant_backend/internal/repository"
	"study_assistant_backend/internal/testutil"
	"study_assistant_backend/internal/util"
	"testing"
	"time"
)

type quizFixture struct {
	quizzes *repository.QuizRepository
	topic   model.Topic
	llm     *scriptedLLM
	svc     *QuizService
}

func newQuizFixture(t *testing.T) *quizFixture {
	t.Helper()
	db := testutil.DB(t)
	materials := repository.NewMaterialRepository(db)
	topics := repository.NewTopicRepository(db)
	storage := newMemStorage()

	obj, _ := storage.Put(context.Background(), "bio.pdf", strings.NewReader(string(buildPDF("Cells are the basic unit of life"))), 0, util.MimePDF)
	m := &model.Material{Title: "bio.pdf", Subject: "Biology", StorageKey: obj.Key, OwnerID: 1}
	if err := materials.Create(m); err != nil {
		t.Fatalf("create material: %v", err)
	}
	if err := topics.ReplaceForMaterial(m.ID, []model.Topic{{
		TopicName: "Cells", DifficultyScore: 8, DifficultyClass: model.DifficultyHard, Summary: "Cell biology", SequenceNumber: 1,
	}}); err != nil {
		t.Fatalf("seed topic: %v", err)
	}
	list, _ := topics.ListByMaterial(m.ID)

	f := &quizFixture{quizzes: repository.NewQuizRepository(db), topic: list[0], llm: &scriptedLLM{}}
	f.svc = NewQuizService(f.quizzes, topics, storage, NewTextExtractor(), f.llm, 1000, time.Second)
	return f
}

func TestGenerateQuizSkipsMalformedQuestions(t *testing.T) {
	f := newQuizFixture(t)
	f.llm.replies = []string{`[
	  {"question_text":"What is a cell?","option_a":"A unit of life","option_b":"A rock","option_c":"A star","option_d":"A song","correct_option":"a"},
	  {"question_text":"Missing option","option_a":"x","option_b":"y","option_c":"z","correct_option":"A"},
	  {"question_text":"Bad answer","option_a":"x","option_b":"y","option_c":"z","option_d":"w","correct_option":"E"}
	]`}

	gen, err := f.svc.Generate(context.Background(), f.topic.ID, 3)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gen.QuestionsCreated != 1 || gen.Skipped != 2 || gen.Topic != "Cells" {
		t.Fatalf("unexpected result: %+v", gen)
	}
	q := gen.Questions[0]
	if q.CorrectOption != "A" || q.Difficulty != "hard" || q.QuestionType != model.QuestionTypeMCQ {
		t.Fatalf("unexpected question: %+v", q)
	}
	if !strings.Contains(f.llm.prompts[0], "Generate 3 multiple choice") || !strings.Contains(f.llm.prompts[0], "Cells are") {
		t.Fatalf("prompt should carry the count and material text:\n%s", f.llm.prompts[0])
	}

	stored, _ := f.svc.ListByTopic(f.topic.ID)
	if len(stored) != 1 {
		t.Fatalf("got %d stored questions, want 1", len(stored))
	}
}

func TestGenerateQuizCapsCount(t *testing.T) {
	f := newQuizFixture(t)
	f.llm.replies = []string{"[]"}
	if _, err := f.svc.Generate(context.Background(), f.topic.ID, 500); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(f.llm.prompts[0], "Generate 20 multiple choice") {
		t.Fatalf("count should be capped")
	}
}

func TestGenerateQuizMalformedReply(t *testing.T) {
	f := newQuizFixture(t)
	f.llm.replies = []string{`{"questions": "not an array"}`}
	_, err := f.svc.Generate(context.Background(), f.topic.ID, 0)
	var malformed *MalformedReplyError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %v, want MalformedReplyError", err)
	}
}

func TestGenerateQuizUnknownTopic(t *testing.T) {
	f := newQuizFixture(t)
	if _, err := f.svc.Generate(context.Background(), 999, 0); !errors.Is(err, util.ErrTopicNotFound) {
		t.Fatalf("err = %v, want ErrTopicNotFound", err)
	}
}

func TestSubmitResultValidation(t *testing.T) {
	f := newQuizFixture(t)

	bad := [][2]int{{-1, 5}, {6, 5}, {0, 0}}
	for _, b := range bad {
		if _, err := f.svc.SubmitResult(1, f.topic.ID, b[0], b[1]); !errors.Is(err, util.ErrInvalidQuizScore) {
			t.Fatalf("score %d/%d: err = %v", b[0], b[1], err)
		}
	}
	if _, err := f.svc.SubmitResult(1, 999, 1, 5); !errors.Is(err, util.ErrTopicNotFound) {
		t.Fatalf("err = %v, want ErrTopicNotFound", err)
	}

	res, err := f.svc.SubmitResult(1, f.topic.ID, 4, 5)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.ID == 0 || res.Score != 4 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
