package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"study_assistant_backend/internal/model"
	"study_assistant_backend/internal/util"
	"sync"
)

// scriptedLLM 依次返回预设回复并记录收到的提示
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

func (f *scriptedLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("no scripted reply left")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *scriptedLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// memStorage 内存存储
type memStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleteErr error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Name() string { return "memory" }

func (m *memStorage) Put(ctx context.Context, name string, reader io.Reader, size int64, contentType string) (*StoredObject, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = data
	return &StoredObject{Key: name, ViewURL: "mem://" + name, DownloadURL: "mem://" + name}, nil
}

func (m *memStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, util.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.objects[key]; !ok {
		return util.ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

// noopEnqueuer 记录入队请求但不执行
type noopEnqueuer struct {
	calls []uint
}

func (n *noopEnqueuer) Enqueue(ctx context.Context, userID, materialID uint) (*model.AnalysisJob, error) {
	n.calls = append(n.calls, materialID)
	return &model.AnalysisJob{ID: "job", MaterialID: materialID, Status: model.JobQueued}, nil
}
