package service

import (
	"bytes"
	"fmt"
	"strings"
	"study_assistant_backend/pkg/logger"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// TextExtractor 从 PDF 字节中提取纯文本
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract 按页序拼接文本，页之间用换行分隔。
// 单页失败只记录日志并跳过；整份文档无法解析时返回空串。
func (e *TextExtractor) Extract(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		logger.Log.Warn("Failed to open pdf", zap.Error(err))
		return ""
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		text, err := pageText(reader, i)
		if err != nil {
			logger.Log.Warn("Skipping unreadable pdf page", zap.Int("page", i), zap.Error(err))
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, text)
	}

	return strings.TrimSpace(strings.Join(pages, "\n"))
}

func pageText(reader *pdf.Reader, num int) (text string, err error) {
	// pdf 库在损坏的页面上可能 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", num, r)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// Truncate 按字符截断，避免切断多字节字符
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
