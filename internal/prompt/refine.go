// Package prompt 为文生图、文生视频生成并提纯提示词。
package prompt

import (
	"strings"

	"lessonmedia/internal/lesson"
)

const (
	Begin = "【提示词开始】"
	End   = "【提示词结束】"
)

// Refine 取第一对提示词标记之间的内容；没有标记时返回去除首尾空白的整段输入
func Refine(raw string) string {
	if p, ok := lesson.Between(raw, Begin, End); ok {
		return p
	}
	return strings.TrimSpace(raw)
}
