package service

import (
	"context"
	"errors"
	"study_assistant_backend/internal/util"
	"study_assistant_backend/pkg/logger"
	"study_assistant_backend/pkg/monitoring"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// JobQueue 分析任务 ID 的队列
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
	// Dequeue 阻塞直到取到任务或 ctx 结束
	Dequeue(ctx context.Context) (string, error)
}

// MemoryJobQueue 进程内有界队列，满时拒绝入队
type MemoryJobQueue struct {
	ch chan string
}

func NewMemoryJobQueue(size int) *MemoryJobQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryJobQueue{ch: make(chan string, size)}
}

func (q *MemoryJobQueue) Enqueue(ctx context.Context, jobID string) error {
	select {
	case q.ch <- jobID:
		monitoring.AnalysisQueueDepth.Set(float64(len(q.ch)))
		return nil
	default:
		return util.ErrQueueFull
	}
}

func (q *MemoryJobQueue) Dequeue(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case id := <-q.ch:
		monitoring.AnalysisQueueDepth.Set(float64(len(q.ch)))
		return id, nil
	}
}

// RedisJobQueue LPUSH 入队，BRPOP 出队，多实例共享
type RedisJobQueue struct {
	client *redis.Client
	key    string
	// 单次 BRPOP 阻塞时长，到期后重新检查 ctx
	poll time.Duration
}

func NewRedisJobQueue(client *redis.Client, key string) *RedisJobQueue {
	return &RedisJobQueue{client: client, key: key, poll: 5 * time.Second}
}

func (q *RedisJobQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.client.LPush(ctx, q.key, jobID).Err()
}

func (q *RedisJobQueue) Dequeue(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		res, err := q.client.BRPop(ctx, q.poll, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", err
		}
		// res = [key, value]
		if len(res) == 2 {
			return res[1], nil
		}
	}
}

// JobRunner 执行一个任务
type JobRunner func(ctx context.Context, jobID string) error

// AnalysisWorker 固定数量的 goroutine 消费队列
type AnalysisWorker struct {
	queue       JobQueue
	run         JobRunner
	concurrency int

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

func NewAnalysisWorker(queue JobQueue, run JobRunner, concurrency int) *AnalysisWorker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &AnalysisWorker{queue: queue, run: run, concurrency: concurrency}
}

// Start 启动消费协程，重复调用无效
func (w *AnalysisWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.group != nil {
		return
	}

	ctx, w.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	w.group = g

	for i := 0; i < w.concurrency; i++ {
		workerID := i
		g.Go(func() error {
			w.loop(gctx, workerID)
			return nil
		})
	}
	logger.Log.Info("Analysis worker started", zap.Int("concurrency", w.concurrency))
}

func (w *AnalysisWorker) loop(ctx context.Context, workerID int) {
	for {
		jobID, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log.Error("Failed to dequeue analysis job", zap.Int("worker", workerID), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		w.runOne(ctx, workerID, jobID)
	}
}

func (w *AnalysisWorker) runOne(ctx context.Context, workerID int, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Analysis job panicked",
				zap.Int("worker", workerID),
				zap.String("job_id", jobID),
				zap.Any("panic", r),
			)
		}
	}()

	// 停止时让进行中的任务跑完，模型调用自带超时
	if err := w.run(context.WithoutCancel(ctx), jobID); err != nil {
		logger.Log.Error("Analysis job error",
			zap.Int("worker", workerID),
			zap.String("job_id", jobID),
			zap.Error(err),
		)
	}
}

// Stop 取消消费并等待进行中的任务返回
func (w *AnalysisWorker) Stop() {
	w.mu.Lock()
	cancel, group := w.cancel, w.group
	w.cancel, w.group = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	group.Wait()
	logger.Log.Info("Analysis worker stopped")
}
