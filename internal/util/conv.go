package util

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ParseIDParam 读取路径中的数字 ID，非法或为 0 时直接返回 400
func ParseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// Percentage 计算得分百分比，总数为 0 时返回 0
func Percentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(score) / float64(total) * 100
}
