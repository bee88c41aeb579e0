package service

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var durationPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?|m)\b`)

// ParseDurationHours 解析 "2 hours"、"1.5 hours"、"30 minutes"、"1 hour 30 minutes" 等标签
func ParseDurationHours(label string) (float64, bool) {
	matches := durationPattern.FindAllStringSubmatch(strings.ToLower(label), -1)
	if len(matches) == 0 {
		return 0, false
	}

	total := 0.0
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		if strings.HasPrefix(m[2], "m") {
			v /= 60
		}
		total += v
	}
	return total, true
}

// BudgetMismatch 某天的任务时长之和与每日预算不一致
type BudgetMismatch struct {
	Day   int
	Hours float64
	// Unparsed 无法解析的时长标签数
	Unparsed int
}

func (m BudgetMismatch) String() string {
	if m.Unparsed > 0 {
		return fmt.Sprintf("day %d: %d duration label(s) could not be parsed", m.Day, m.Unparsed)
	}
	return fmt.Sprintf("day %d: tasks add up to %.2f hours", m.Day, m.Hours)
}

// ValidateDailyBudget 检查每天的任务时长之和等于 hoursPerDay
func ValidateDailyBudget(days []PlanDay, hoursPerDay int) []BudgetMismatch {
	var mismatches []BudgetMismatch
	for _, d := range days {
		sum := 0.0
		unparsed := 0
		for _, t := range d.Tasks {
			h, ok := ParseDurationHours(t.Duration)
			if !ok {
				unparsed++
				continue
			}
			sum += h
		}
		if unparsed > 0 || math.Abs(sum-float64(hoursPerDay)) > 0.01 {
			mismatches = append(mismatches, BudgetMismatch{Day: d.Day, Hours: sum, Unparsed: unparsed})
		}
	}
	return mismatches
}
