// Package lesson 从模型生成的教案文本中提取课文与生词。
//
// 提取过程是纯字符串扫描：先找显式标记，再退回到固定的小标题，
// 两者都找不到时返回空字符串，从不报错。
package lesson

import (
	"strings"

	"lessonmedia/internal/model"
)

// 教案中约定的标记与小标题
const (
	LessonBegin = "【课文开始】"
	LessonEnd   = "【课文结束】"

	HeadingVocabulary = "（一）生词"
	HeadingLesson     = "（二）课文"
	HeadingGrammar    = "（三）语法"
)

// Between 返回open与其后第一个close之间的内容（已去除首尾空白）。
// 只取最左侧的一对；open之后没有close时ok为false。
func Between(raw, open, close string) (string, bool) {
	if open == "" || close == "" {
		return "", false
	}
	start := strings.Index(raw, open)
	if start < 0 {
		return "", false
	}
	start += len(open)
	end := strings.Index(raw[start:], close)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(raw[start : start+end]), true
}

// ExtractLessonText 提取纯净课文：优先使用课文标记，其次使用"课文"到"语法"两个小标题之间的内容
func ExtractLessonText(raw string) string {
	if text, ok := Between(raw, LessonBegin, LessonEnd); ok {
		return text
	}
	text, _ := Between(raw, HeadingLesson, HeadingGrammar)
	return text
}

// ExtractVocabulary 提取生词部分
func ExtractVocabulary(raw string) string {
	text, _ := Between(raw, HeadingVocabulary, HeadingLesson)
	return text
}

// Extract 解析教案的全部字段
func Extract(raw string) model.Fields {
	return model.Fields{
		LessonText: ExtractLessonText(raw),
		Vocabulary: ExtractVocabulary(raw),
	}
}
