package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskType 提示词任务类型
type TaskType string

const (
	TaskImage TaskType = "image"
	TaskVideo TaskType = "video"
)

// Valid 判断任务类型是否受支持
func (t TaskType) Valid() bool {
	return t == TaskImage || t == TaskVideo
}

// Fields 教案解析结果
type Fields struct {
	LessonText string `json:"lesson_text"` // 纯净课文
	Vocabulary string `json:"vocabulary"`  // 生词部分
}

// Usage 模型调用的token消耗
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LessonPlan 教案记录，同时也是教案库中JSON文件的结构
type LessonPlan struct {
	Success      bool   `json:"success"`
	StudentLevel string `json:"student_level"`
	InputContent string `json:"input_content"`
	TeachingPlan string `json:"teaching_plan"`
	Usage        Usage  `json:"usage"`
	Model        string `json:"model"`
	CreatedTime  string `json:"created_time"`
}

// PromptMetadata 提示词记录元信息
type PromptMetadata struct {
	CreatedAt    string   `json:"created_at"`
	StudentLevel string   `json:"student_level"`
	Task         TaskType `json:"task"`
	Engine       string   `json:"engine"`
}

// PromptPayload 提示词记录内容
type PromptPayload struct {
	LessonSource string `json:"lesson_source"`
	Prompt       string `json:"prompt"`
}

// PromptRecord 提示词库中JSON文件的结构
type PromptRecord struct {
	Metadata PromptMetadata `json:"metadata"`
	Payload  PromptPayload  `json:"payload"`
}

// StageResult 单个阶段的执行结果。
// 只能通过Succeeded或Failed构造，成功时必有Payload，失败时必有Reason。
type StageResult struct {
	ok      bool
	payload string
	reason  string
}

// Succeeded 构造成功结果
func Succeeded(payload string) StageResult {
	return StageResult{ok: true, payload: payload}
}

const unknownReason = "unknown error"

// Failed 构造失败结果，空原因会被替换为"unknown error"
func Failed(reason string) StageResult {
	if strings.TrimSpace(reason) == "" {
		reason = unknownReason
	}
	return StageResult{reason: reason}
}

// FromError 根据error构造结果
func FromError(payload string, err error) StageResult {
	if err != nil {
		return Failed(err.Error())
	}
	return Succeeded(payload)
}

func (r StageResult) OK() bool { return r.ok }

// Payload 仅在成功时有意义
func (r StageResult) Payload() (string, bool) { return r.payload, r.ok }

// Reason 仅在失败时有意义；零值视为原因未知的失败
func (r StageResult) Reason() (string, bool) {
	if r.ok {
		return "", false
	}
	if r.reason == "" {
		return unknownReason, true
	}
	return r.reason, true
}

// Match 按结果分支执行，两个分支必须同时给出
func Match[T any](r StageResult, onSuccess func(payload string) T, onFailure func(reason string) T) T {
	if r.ok {
		return onSuccess(r.payload)
	}
	reason, _ := r.Reason()
	return onFailure(reason)
}

// MarshalJSON 序列化为 {success, payload?, error?}
func (r StageResult) MarshalJSON() ([]byte, error) {
	type wire struct {
		Success bool   `json:"success"`
		Payload string `json:"payload,omitempty"`
		Error   string `json:"error,omitempty"`
	}
	reason, _ := r.Reason()
	return json.Marshal(wire{Success: r.ok, Payload: r.payload, Error: reason})
}

// Artifact 媒体素材类型
type Artifact string

const (
	ArtifactImage Artifact = "image"
	ArtifactAudio Artifact = "audio"
	ArtifactVideo Artifact = "video"
)

// Artifacts 按生成顺序排列的全部素材类型
var Artifacts = []Artifact{ArtifactImage, ArtifactAudio, ArtifactVideo}

// PipelineRun 一次完整流水线运行的聚合结果
type PipelineRun struct {
	ID        string                   `json:"id"`
	Level     string                   `json:"level"`
	Topic     string                   `json:"topic"`
	StartedAt time.Time                `json:"started_at"`
	Plan      *LessonPlan              `json:"plan,omitempty"`
	Fields    Fields                   `json:"fields"`
	Prompts   map[TaskType]StageResult `json:"prompts"`
	Saved     map[TaskType]StageResult `json:"saved_prompts"`
	OutputDir string                   `json:"output_dir"`
	Media     map[Artifact]StageResult `json:"media"`
}

// NewPipelineRun 创建空的运行记录
func NewPipelineRun(id, level, topic string, startedAt time.Time) *PipelineRun {
	return &PipelineRun{
		ID:        id,
		Level:     level,
		Topic:     topic,
		StartedAt: startedAt,
		Prompts:   make(map[TaskType]StageResult),
		Saved:     make(map[TaskType]StageResult),
		Media:     make(map[Artifact]StageResult),
	}
}

// Prompt 返回指定任务的可用提示词，失败时返回空字符串
func (r *PipelineRun) Prompt(task TaskType) string {
	p, _ := r.Prompts[task].Payload()
	return p
}

// Path 返回素材路径，未生成时ok为false
func (r *PipelineRun) Path(a Artifact) (string, bool) {
	res, exists := r.Media[a]
	if !exists {
		return "", false
	}
	return res.Payload()
}

// Produced 已生成的素材数量
func (r *PipelineRun) Produced() int {
	n := 0
	for _, res := range r.Media {
		if res.OK() {
			n++
		}
	}
	return n
}

// Summary 生成给用户看的运行摘要
func (r *PipelineRun) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "运行ID：%s\n", r.ID)
	fmt.Fprintf(&b, "学生等级：%s，主题：%s\n", r.Level, r.Topic)
	if r.Fields.LessonText == "" {
		b.WriteString("⚠️ 未能从教案中提取课文，后续素材基于空课文生成\n")
	}
	for _, task := range []TaskType{TaskImage, TaskVideo} {
		res, exists := r.Prompts[task]
		if !exists {
			continue
		}
		b.WriteString(Match(res,
			func(string) string { return fmt.Sprintf("✅ %s提示词已生成\n", task) },
			func(reason string) string { return fmt.Sprintf("❌ %s提示词生成失败：%s\n", task, reason) },
		))
	}
	fmt.Fprintf(&b, "🎬 素材目录：%s\n", r.OutputDir)
	for _, a := range Artifacts {
		res, exists := r.Media[a]
		if !exists {
			fmt.Fprintf(&b, "⏭️ %s：未执行\n", a)
			continue
		}
		b.WriteString(Match(res,
			func(path string) string { return fmt.Sprintf("✅ %s：%s\n", a, path) },
			func(reason string) string { return fmt.Sprintf("❌ %s：已跳过（%s）\n", a, reason) },
		))
	}
	return b.String()
}
