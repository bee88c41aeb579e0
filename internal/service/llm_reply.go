package service

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MalformedReplyError 模型回复无法按约定的 JSON 结构解码
type MalformedReplyError struct {
	Reason string
	Raw    string
}

func (e *MalformedReplyError) Error() string {
	return "malformed model reply: " + e.Reason
}

// UpstreamError 存储或模型服务调用失败，不做重试
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// StripCodeFence 去掉模型常见的 ```json ... ``` 包裹
func StripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// 语言标记到行尾为止
		if idx := strings.IndexByte(text, '\n'); idx >= 0 && !strings.ContainsAny(text[:idx], "[{") {
			text = text[idx+1:]
		} else {
			text = strings.TrimPrefix(text, "json")
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// decodeJSONReply 严格解码：去掉代码块后必须是单个合法 JSON 值
func decodeJSONReply(raw string, v interface{}) error {
	text := StripCodeFence(raw)
	if text == "" {
		return &MalformedReplyError{Reason: "empty reply", Raw: raw}
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &MalformedReplyError{Reason: err.Error(), Raw: raw}
	}
	if dec.More() {
		return &MalformedReplyError{Reason: "trailing data after JSON value", Raw: raw}
	}
	return nil
}

// 以下辅助函数从 map[string]interface{} 记录中读取字段

func stringField(rec map[string]interface{}, key string) (string, bool) {
	v, ok := rec[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), true
	case json.Number:
		return s.String(), true
	case []interface{}:
		parts := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				parts = append(parts, strings.TrimSpace(str))
			}
		}
		return strings.Join(parts, ", "), true
	}
	return "", false
}

func numberField(rec map[string]interface{}, key string) (float64, bool) {
	v, ok := rec[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func intField(rec map[string]interface{}, key string) (int, bool) {
	f, ok := numberField(rec, key)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
