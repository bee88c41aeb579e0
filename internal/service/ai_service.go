package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"study_assistant_backend/internal/config"
	"study_assistant_backend/pkg/monitoring"
	"study_assistant_backend/pkg/tracing"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"
)

// LLMClient 托管模型的最小调用接口：一次提示，一次文本回复
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const systemPrompt = "You are a precise study assistant. Reply with JSON only, exactly in the requested shape."

// OpenAIClient 兼容 OpenAI Chat Completions 的服务
type OpenAIClient struct {
	client *openai.Client
	mu     sync.RWMutex
	model  string
}

func NewOpenAIClient(cfg config.AIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai.api_key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

func (c *OpenAIClient) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.mu.RLock()
	model := c.model
	c.mu.RUnlock()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GeminiClient Google Gemini
type GeminiClient struct {
	client *genai.Client
	mu     sync.RWMutex
	model  string
}

func NewGeminiClient(ctx context.Context, cfg config.AIConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai.api_key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model}, nil
}

func (c *GeminiClient) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.mu.RLock()
	name := c.model
	c.mu.RUnlock()

	model := c.client.GenerativeModel(name)
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
		// 只取第一个候选
		break
	}
	if sb.Len() == 0 {
		return "", errors.New("model returned no text")
	}
	return sb.String(), nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// modelSetter 支持配置热更新模型名
type modelSetter interface {
	SetModel(model string)
}

// NewLLMClient 按 ai.provider 构造客户端，进程启动时调用一次
func NewLLMClient(ctx context.Context, cfg config.AIConfig) (LLMClient, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(cfg)
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}

// SetLLMModel 更新模型名，不支持的客户端返回 false
func SetLLMModel(client LLMClient, model string) bool {
	if s, ok := client.(modelSetter); ok && model != "" {
		s.SetModel(model)
		return true
	}
	return false
}

// callModel 带超时、链路追踪和指标的一次模型调用；失败包装为 UpstreamError
func callModel(ctx context.Context, client LLMClient, timeout time.Duration, operation, prompt string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, span := tracing.StartSpan(ctx, "llm."+operation,
		attribute.String("llm.operation", operation),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)
	start := time.Now()
	reply, err := client.Generate(ctx, prompt)
	monitoring.ObserveLLMCall(operation, start, err)
	tracing.EndSpan(span, err)

	if err != nil {
		return "", &UpstreamError{Service: "hosted model", Err: err}
	}
	return reply, nil
}
