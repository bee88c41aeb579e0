package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"study_assistant_backend/internal/config"
	"study_assistant_backend/internal/middleware"
	"study_assistant_backend/internal/model"
	"study_assistant_backend/internal/repository"
	"study_assistant_backend/internal/service"
	"study_assistant_backend/internal/testutil"
	"study_assistant_backend/internal/util"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type stubLLM struct {
	mu    sync.Mutex
	reply string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reply, nil
}

type mapStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *mapStorage) Name() string { return "memory" }

func (m *mapStorage) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (*service.StoredObject, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = data
	return &service.StoredObject{Key: name, ViewURL: "mem://" + name, DownloadURL: "mem://" + name}, nil
}

func (m *mapStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, util.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mapStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return util.ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

type testServer struct {
	router *gin.Engine
	cfg    *config.Config
	users  *repository.UserRepository
	llm    *stubLLM
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.DB(t)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "controller-test-secret", ExpireTime: time.Hour, RefreshExpireTime: time.Hour}}
	llm := &stubLLM{}
	storage := &mapStorage{objects: map[string][]byte{}}

	users := repository.NewUserRepository(db)
	materials := repository.NewMaterialRepository(db)
	topics := repository.NewTopicRepository(db)
	quizzes := repository.NewQuizRepository(db)

	analysis := service.NewTopicAnalysisService(materials, topics, repository.NewAnalysisJobRepository(db), storage,
		service.NewTextExtractor(), service.NewTopicAnalyzer(llm, 1000, time.Second), service.NewMemoryJobQueue(8))
	materialSvc := service.NewMaterialService(materials, storage, analysis)

	auth := NewAuthController(service.NewAuthService(users, cfg, service.LogMailer{}))
	material := NewMaterialController(materialSvc)
	topicCtl := NewTopicAnalysisController(analysis, materialSvc)
	plan := NewStudyPlanController(service.NewStudyPlanService(repository.NewStudyPlanRepository(db), materials, topics, llm, time.Second))
	quiz := NewQuizController(service.NewQuizService(quizzes, topics, storage, service.NewTextExtractor(), llm, 1000, time.Second))
	report := NewReportController(service.NewReportService(quizzes, users))

	r := gin.New()
	api := r.Group("/api")
	api.POST("/auth/signup", auth.Signup)
	api.POST("/auth/login", auth.Login)
	api.POST("/auth/token/refresh", auth.Refresh)

	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(cfg))
	authed.GET("/auth/profile", auth.GetProfile)
	authed.POST("/upload", material.Upload)
	authed.GET("/materials/:id", material.Get)
	authed.DELETE("/materials/:id", material.Delete)
	authed.POST("/topic-analysis/analyze/:materialId", topicCtl.Analyze)
	authed.GET("/topic-analysis/topics/:materialId", topicCtl.Topics)
	authed.GET("/topic-analysis/jobs/:jobId", topicCtl.Job)
	authed.POST("/timetable/generate-plan", plan.Generate)
	authed.POST("/timetable/update-plan", plan.Update)
	authed.POST("/quiz/submit-response", quiz.Submit)
	authed.GET("/reports/quiz-history", report.QuizHistory)
	authed.GET("/admin/user-stats", middleware.RoleMiddleware(model.Admin), report.UserStats)

	return &testServer{router: r, cfg: cfg, users: users, llm: llm}
}

// token 创建用户并返回访问令牌
func (s *testServer) token(t *testing.T, username string, role model.UserRole) string {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", Password: "x", Role: role, IsActive: true}
	if err := s.users.Create(u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	tok, err := util.GenerateJWT(u, s.cfg.JWT.Secret, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, util.Response) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, util.Response) {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var resp util.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w, resp
}

func (s *testServer) upload(t *testing.T, token, filename string, content []byte, subject string) (*httptest.ResponseRecorder, util.Response) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if subject != "" {
		mw.WriteField("subject", subject)
	}
	part, _ := mw.CreateFormFile("file", filename)
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return s.serve(t, req)
}

func dataMap(t *testing.T, resp util.Response) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("response data is %T, want object", resp.Data)
	}
	return m
}

func TestSignupLoginAndRefresh(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{"username": "amy", "email": "amy@example.com", "password": "password1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d: %s", w.Code, w.Body.String())
	}
	tokens := dataMap(t, resp)["tokens"].(map[string]interface{})

	w, _ = s.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{"username": "amy", "email": "amy2@example.com", "password": "password1"})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d", w.Code)
	}

	w, _ = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "amy", "password": "wrong-pass"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", w.Code)
	}
	w, _ = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "amy@example.com", "password": "password1"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d", w.Code)
	}

	w, _ = s.do(t, http.MethodGet, "/api/auth/profile", tokens["refresh"].(string), nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh token must not authorize requests, status = %d", w.Code)
	}
	w, resp = s.do(t, http.MethodPost, "/api/auth/token/refresh", "", gin.H{"refresh": tokens["refresh"]})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d", w.Code)
	}
	access := dataMap(t, resp)["access"].(string)
	if w, _ = s.do(t, http.MethodGet, "/api/auth/profile", access, nil); w.Code != http.StatusOK {
		t.Fatalf("profile status = %d", w.Code)
	}
}

func TestUploadAndAnalysisEndpoints(t *testing.T) {
	s := newTestServer(t)
	owner := s.token(t, "owner", model.Student)
	other := s.token(t, "other", model.Student)

	w, _ := s.upload(t, owner, "notes.txt", []byte("plain text, not a pdf"), "Math")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("non-pdf upload status = %d", w.Code)
	}
	w, _ = s.upload(t, owner, "notes.pdf", []byte("%PDF-1.4\n%%EOF\n"), "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("upload without subject status = %d", w.Code)
	}

	w, resp := s.upload(t, owner, "notes.pdf", []byte("%PDF-1.4\n%%EOF\n"), "Math")
	if w.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d: %s", w.Code, w.Body.String())
	}
	data := dataMap(t, resp)
	materialID := uint(data["material"].(map[string]interface{})["id"].(float64))
	jobID := data["job"].(map[string]interface{})["id"].(string)

	if w, _ = s.do(t, http.MethodGet, "/api/topic-analysis/jobs/"+jobID, owner, nil); w.Code != http.StatusOK {
		t.Fatalf("job status = %d", w.Code)
	}
	if w, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/materials/%d", materialID), other, nil); w.Code != http.StatusForbidden {
		t.Fatalf("foreign material status = %d", w.Code)
	}
	if w, _ = s.do(t, http.MethodGet, "/api/topic-analysis/topics/999", owner, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown material status = %d", w.Code)
	}
	if w, _ = s.do(t, http.MethodPost, "/api/topic-analysis/analyze/999", owner, nil); w.Code != http.StatusNotFound {
		t.Fatalf("analyze unknown material status = %d", w.Code)
	}
	if w, _ = s.do(t, http.MethodPost, fmt.Sprintf("/api/topic-analysis/analyze/%d", materialID), owner, nil); w.Code != http.StatusAccepted {
		t.Fatalf("analyze status = %d", w.Code)
	}
	if w, _ = s.do(t, http.MethodGet, "/api/topic-analysis/jobs/missing", owner, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing job status = %d", w.Code)
	}
	if w, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/api/materials/%d", materialID), owner, nil); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
}

func TestPlanEndpoints(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, "planner", model.Student)

	w, _ := s.do(t, http.MethodPost, "/api/timetable/generate-plan", tok, gin.H{"material_ids": []uint{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty selection status = %d", w.Code)
	}

	w, _ = s.upload(t, tok, "bio.pdf", []byte("%PDF-1.4\n%%EOF\n"), "Biology")
	if w.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d", w.Code)
	}
	w, _ = s.do(t, http.MethodPost, "/api/timetable/generate-plan", tok, gin.H{"material_ids": []uint{1}})
	if w.Code != http.StatusNotFound {
		t.Fatalf("material without topics status = %d", w.Code)
	}

	w, resp := s.do(t, http.MethodPost, "/api/timetable/update-plan", tok, gin.H{"topic_id": 1, "score": 1, "total_questions": 5})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown topic status = %d (%s)", w.Code, resp.Message)
	}
}

func TestMalformedReplyReturnsRawOutput(t *testing.T) {
	gin.SetMode(gin.TestMode)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = req
	respondError(ctx, &service.MalformedReplyError{Reason: "bad json", Raw: "not json at all"})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"raw_response":"not json at all"`) {
		t.Fatalf("body should carry the raw output: %s", w.Body.String())
	}
}

func TestAdminStatsRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	student := s.token(t, "stu", model.Student)
	admin := s.token(t, "boss", model.Admin)

	if w, _ := s.do(t, http.MethodGet, "/api/admin/user-stats", student, nil); w.Code != http.StatusForbidden {
		t.Fatalf("student status = %d", w.Code)
	}
	w, resp := s.do(t, http.MethodGet, "/api/admin/user-stats", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin status = %d", w.Code)
	}
	if dataMap(t, resp)["total_users"].(float64) != 2 {
		t.Fatalf("stats = %v", resp.Data)
	}
}

func TestQuizSubmitValidation(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, "quizzer", model.Student)

	if w, _ := s.do(t, http.MethodPost, "/api/quiz/submit-response", tok, gin.H{"topic_id": 1, "score": 9, "total_questions": 5}); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid score status = %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodPost, "/api/quiz/submit-response", tok, gin.H{"topic_id": 1, "score": 3, "total_questions": 5}); w.Code != http.StatusNotFound {
		t.Fatalf("unknown topic status = %d", w.Code)
	}
	w, resp := s.do(t, http.MethodGet, "/api/reports/quiz-history", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}
	if items, ok := resp.Data.([]interface{}); !ok || len(items) != 0 {
		t.Fatalf("history = %v", resp.Data)
	}
}
